// Package callconv assigns the arguments of a method to registers and stack
// slots for the two calling roles of the RISC-V backend: managed calls between
// compiled methods, and native (JNI) calls out of the runtime.
//
// The two roles classify arguments differently and are kept as separate
// procedures: the managed role reserves A0 for the method pointer and lets
// floating point arguments overflow into free integer registers, while the
// native role reserves nothing and never crosses banks.
package callconv

import (
	"fmt"

	"github.com/samber/lo"

	asm "github.com/riscv-android-src/platform-art/internal/asm/riscv64"
)

const (
	// framePointerSize is the size of a stack slot and of a native pointer.
	framePointerSize = 8
	// stackAlignment is the alignment of SP at call boundaries.
	stackAlignment = 16
	// heapReferenceSize is the size of a compressed managed reference.
	heapReferenceSize = 4
	// vregSize is the size of one managed virtual register slot.
	vregSize = 4

	maxIntLikeArgumentRegisters       = 8
	maxFloatOrDoubleArgumentRegisters = 8
)

var (
	xArgumentRegisters = [maxIntLikeArgumentRegisters]asm.XReg{
		asm.A0, asm.A1, asm.A2, asm.A3, asm.A4, asm.A5, asm.A6, asm.A7,
	}
	fArgumentRegisters = [maxFloatOrDoubleArgumentRegisters]asm.FReg{
		asm.FA0, asm.FA1, asm.FA2, asm.FA3, asm.FA4, asm.FA5, asm.FA6, asm.FA7,
	}
	calleeSaveRegisters = []asm.XReg{
		asm.S2, asm.S3, asm.S4, asm.S5, asm.S6, asm.S7, asm.S8, asm.S9, asm.S10, asm.S0,
	}
)

// Kind is where an argument is passed.
type Kind byte

const (
	// KindGPR is an integer register.
	KindGPR Kind = iota
	// KindFPR is a floating point register.
	KindFPR
	// KindStack is a stack slot.
	KindStack
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindGPR:
		return "gpr"
	case KindFPR:
		return "fpr"
	case KindStack:
		return "stack"
	default:
		panic("BUG")
	}
}

// ArgLocation is the location assigned to one argument.
type ArgLocation struct {
	Kind Kind
	// Reg is valid unless Kind == KindStack.
	Reg asm.ManagedRegister
	// Offset is the stack offset of the argument, valid only for KindStack.
	// Stack arguments take consecutive 8-byte slots.
	Offset int32
	// Home is the managed vreg slot of the argument, one 4-byte slot per
	// 32 bits after the method pointer. Unused in the native role.
	Home int32
	// Size is the size of the value in bytes.
	Size     int
	Category Category
}

// String implements fmt.Stringer.
func (l ArgLocation) String() string {
	if l.Kind == KindStack {
		return fmt.Sprintf("%s@[sp%+d]/%d", l.Category, l.Offset, l.Size)
	}
	return fmt.Sprintf("%s@%s/%d", l.Category, l.Reg, l.Size)
}

// ArgumentLocation converts l for the assembler's MoveArguments.
func (l ArgLocation) ArgumentLocation() asm.ArgumentLocation {
	if l.Kind == KindStack {
		return asm.ArgumentLocation{Reg: asm.NoRegister, FrameOffset: l.Offset, Size: l.Size}
	}
	return asm.ArgumentLocation{Reg: l.Reg, Size: l.Size}
}

// ArgumentLocations converts locs for the assembler's MoveArguments.
func ArgumentLocations(locs []ArgLocation) []asm.ArgumentLocation {
	return lo.Map(locs, func(l ArgLocation, _ int) asm.ArgumentLocation {
		return l.ArgumentLocation()
	})
}

// iterator walks a classified argument vector.
type iterator struct {
	shorty       Shorty
	isStatic     bool
	displacement int32
	locs         []ArgLocation
	itr          int
}

func newIterator(shorty string, isStatic bool) iterator {
	if err := ValidateShorty(shorty); err != nil {
		panic("BUG: " + err.Error())
	}
	return iterator{shorty: Shorty(shorty), isStatic: isStatic}
}

// Shorty returns the signature being classified.
func (it *iterator) Shorty() Shorty { return it.shorty }

// IsStatic returns true if the method has no implicit receiver.
func (it *iterator) IsStatic() bool { return it.isStatic }

// HasNext returns true if there is a current argument.
func (it *iterator) HasNext() bool { return it.itr < len(it.locs) }

// Next advances to the next argument.
func (it *iterator) Next() {
	if !it.HasNext() {
		panic("BUG: Next past the last argument")
	}
	it.itr++
}

// Locations returns the locations of all arguments for the current
// displacement.
func (it *iterator) Locations() []ArgLocation {
	return append([]ArgLocation(nil), it.locs...)
}

func (it *iterator) current() *ArgLocation {
	if !it.HasNext() {
		panic("BUG: no current argument")
	}
	return &it.locs[it.itr]
}

// IsCurrentParamInRegister returns true if the current argument is passed in a register.
func (it *iterator) IsCurrentParamInRegister() bool { return it.current().Kind != KindStack }

// IsCurrentParamOnStack returns true if the current argument is passed on the stack.
func (it *iterator) IsCurrentParamOnStack() bool { return it.current().Kind == KindStack }

// IsCurrentParamReference returns true if the current argument is a reference.
func (it *iterator) IsCurrentParamReference() bool {
	return it.current().Category == CategoryReference
}

// IsCurrentParamFloatOrDouble returns true for F and D arguments.
func (it *iterator) IsCurrentParamFloatOrDouble() bool {
	return it.current().Category.IsFloatOrDouble()
}

// IsCurrentParamLong returns true for J arguments.
func (it *iterator) IsCurrentParamLong() bool { return it.current().Category == CategoryLong }

// CurrentParamSize returns the size of the current argument in bytes.
func (it *iterator) CurrentParamSize() int { return it.current().Size }

// CurrentParamRegister returns the register of the current argument.
func (it *iterator) CurrentParamRegister() asm.ManagedRegister {
	l := it.current()
	if l.Kind == KindStack {
		panic(fmt.Sprintf("BUG: argument %d is on the stack", it.itr))
	}
	return l.Reg
}

// CurrentParamStackOffset returns the stack offset of the current argument.
func (it *iterator) CurrentParamStackOffset() int32 {
	l := it.current()
	if l.Kind != KindStack {
		panic(fmt.Sprintf("BUG: argument %d is in %s", it.itr, l.Reg))
	}
	return l.Offset
}

// NumArgs returns the number of classified arguments, including the
// implicit ones.
func (it *iterator) NumArgs() int { return len(it.locs) }

// NumStackArgs returns the number of arguments passed on the stack.
func (it *iterator) NumStackArgs() int {
	return lo.CountBy(it.locs, func(l ArgLocation) bool { return l.Kind == KindStack })
}

// NumReferenceArgs returns the number of reference arguments, including the
// implicit receiver and jclass.
func (it *iterator) NumReferenceArgs() int {
	return lo.CountBy(it.locs, func(l ArgLocation) bool { return l.Category == CategoryReference })
}

// ReturnRegister returns the register holding the return value:
// FA0 for F and D, no register for V, A0 otherwise.
func (it *iterator) ReturnRegister() asm.ManagedRegister {
	switch it.shorty.ReturnCategory() {
	case CategoryFloat, CategoryDouble:
		return asm.F(asm.FA0)
	case CategoryVoid:
		return asm.NoRegister
	default:
		return asm.X(asm.A0)
	}
}

// IntReturnRegister returns the integer return register.
func (it *iterator) IntReturnRegister() asm.ManagedRegister { return asm.X(asm.A0) }

// CalleeSaveRegisters returns the callee saved core registers, excluding RA.
func CalleeSaveRegisters() []asm.ManagedRegister {
	return lo.Map(calleeSaveRegisters, func(r asm.XReg, _ int) asm.ManagedRegister { return asm.X(r) })
}

// CoreSpillMask is the bit set of core registers spilled in a native frame:
// the callee saves and RA.
func CoreSpillMask() uint32 {
	mask := uint32(1) << asm.RA
	for _, r := range calleeSaveRegisters {
		mask |= 1 << r
	}
	return mask
}

// FpSpillMask is empty: no floating point register is callee saved for
// native calls out of managed code.
func FpSpillMask() uint32 { return 0 }

// ReturnScratchRegister is free after the native call returns.
func ReturnScratchRegister() asm.ManagedRegister { return asm.X(asm.AT) }

// ManagedRuntimeCallingConvention classifies arguments of managed-to-managed calls.
type ManagedRuntimeCallingConvention struct {
	iterator
	isSynchronized bool
}

// NewManagedRuntimeCallingConvention classifies shorty with a zero displacement.
// The implicit receiver of instance methods is the first argument.
func NewManagedRuntimeCallingConvention(shorty string, isStatic, isSynchronized bool) *ManagedRuntimeCallingConvention {
	c := &ManagedRuntimeCallingConvention{iterator: newIterator(shorty, isStatic), isSynchronized: isSynchronized}
	c.Reset(0)
	return c
}

// IsSynchronized returns true for synchronized methods.
func (c *ManagedRuntimeCallingConvention) IsSynchronized() bool { return c.isSynchronized }

// MethodRegister holds the method pointer on entry.
func (c *ManagedRuntimeCallingConvention) MethodRegister() asm.ManagedRegister { return asm.X(asm.A0) }

// CurrentParamHome returns the vreg slot offset of the current argument,
// which register arguments have as well.
func (c *ManagedRuntimeCallingConvention) CurrentParamHome() int32 { return c.current().Home }

// Reset restarts the iteration with stack offsets relative to displacement,
// the distance from SP to the caller's out arguments.
func (c *ManagedRuntimeCallingConvention) Reset(displacement int32) {
	c.displacement = displacement
	c.itr = 0
	c.locs = classifyManaged(c.locs[:0], c.shorty, c.isStatic, displacement)
}

// classifyManaged assigns integer-like and reference arguments to A1..A7 and
// floating point arguments to FA0..FA7. Floating point arguments overflowing
// their bank take the next free integer register before going to the stack.
func classifyManaged(locs []ArgLocation, shorty Shorty, isStatic bool, displacement int32) []ArgLocation {
	cats := shorty.ArgCategories()
	if !isStatic {
		cats = append([]Category{CategoryReference}, cats...)
	}

	gpr, fpr := 1, 0 // A0 holds the method pointer.
	var slot, onStack int32
	for _, cat := range cats {
		l := ArgLocation{
			Category: cat,
			Size:     lo.Ternary(cat.IsWide(), 8, 4),
			Home:     displacement + framePointerSize + slot*vregSize,
		}
		switch {
		case cat.IsFloatOrDouble() && fpr < maxFloatOrDoubleArgumentRegisters:
			l.Kind, l.Reg = KindFPR, asm.F(fArgumentRegisters[fpr])
			fpr++
		case gpr < maxIntLikeArgumentRegisters:
			l.Kind, l.Reg = KindGPR, asm.X(xArgumentRegisters[gpr])
			gpr++
		default:
			l.Kind = KindStack
			l.Offset = displacement + onStack*framePointerSize
			onStack++
		}
		locs = append(locs, l)
		slot += lo.Ternary[int32](cat.IsWide(), 2, 1)
	}
	return locs
}

// JNICallingConvention classifies arguments of calls from a managed stub
// into a native method.
type JNICallingConvention struct {
	iterator
	isSynchronized, isCriticalNative bool
}

// NewJNICallingConvention classifies shorty for a native call. Unless the
// method is critical native, the arguments are prefixed by JNIEnv* and, for
// static methods, the jclass. Critical native methods must be static.
func NewJNICallingConvention(shorty string, isStatic, isSynchronized, isCriticalNative bool) *JNICallingConvention {
	if isCriticalNative && (!isStatic || isSynchronized) {
		panic("BUG: critical native methods must be static and not synchronized")
	}
	c := &JNICallingConvention{
		iterator:         newIterator(shorty, isStatic),
		isSynchronized:   isSynchronized,
		isCriticalNative: isCriticalNative,
	}
	c.Reset(int32(c.OutFrameSize()))
	return c
}

// IsCriticalNative returns true for @CriticalNative methods.
func (c *JNICallingConvention) IsCriticalNative() bool { return c.isCriticalNative }

// IsSynchronized returns true for synchronized methods.
func (c *JNICallingConvention) IsSynchronized() bool { return c.isSynchronized }

// NumExtraArgs is the number of implicit leading native arguments.
func (c *JNICallingConvention) NumExtraArgs() int {
	switch {
	case c.isCriticalNative:
		return 0
	case c.isStatic:
		return 2
	default:
		return 1
	}
}

// Reset restarts the iteration. Stack offsets are relative to SP after the
// out frame was allocated when displacement is OutFrameSize.
func (c *JNICallingConvention) Reset(displacement int32) {
	c.displacement = displacement
	c.itr = 0
	c.locs = classifyNative(c.locs[:0], c.categories(), displacement, int32(c.OutFrameSize()))
}

func (c *JNICallingConvention) categories() []Category {
	var cats []Category
	if !c.isCriticalNative {
		cats = append(cats, CategoryPointer)
		if c.isStatic {
			cats = append(cats, CategoryReference)
		}
	}
	if !c.isStatic {
		cats = append(cats, CategoryReference)
	}
	return append(cats, c.shorty.ArgCategories()...)
}

func nativeSize(cat Category) int {
	switch cat {
	case CategoryInt, CategoryFloat:
		return 4
	default:
		return 8
	}
}

// classifyNative assigns floating point arguments to FA0..FA7 and all others
// to A0..A7 without crossing banks. Arguments that find no register take
// consecutive 8-byte slots at the bottom of the out frame.
func classifyNative(locs []ArgLocation, cats []Category, displacement, outFrameSize int32) []ArgLocation {
	var floats int
	for itr, cat := range cats {
		l := ArgLocation{Category: cat, Size: nativeSize(cat)}
		ints := itr - floats
		switch {
		case cat.IsFloatOrDouble() && floats < maxFloatOrDoubleArgumentRegisters:
			l.Kind, l.Reg = KindFPR, asm.F(fArgumentRegisters[floats])
		case !cat.IsFloatOrDouble() && ints < maxIntLikeArgumentRegisters:
			l.Kind, l.Reg = KindGPR, asm.X(xArgumentRegisters[ints])
		default:
			argsOnStack := itr - min(maxFloatOrDoubleArgumentRegisters, floats) - min(maxIntLikeArgumentRegisters, ints)
			l.Kind = KindStack
			l.Offset = displacement - outFrameSize + int32(argsOnStack*framePointerSize)
		}
		if cat.IsFloatOrDouble() {
			floats++
		}
		locs = append(locs, l)
	}
	return locs
}

// stackArgs returns the stack arguments paired with their index.
func (c *JNICallingConvention) stackArgs() []lo.Tuple2[int, ArgLocation] {
	var ret []lo.Tuple2[int, ArgLocation]
	for i, l := range c.locs {
		if l.Kind == KindStack {
			ret = append(ret, lo.Tuple2[int, ArgLocation]{A: i, B: l})
		}
	}
	return ret
}

// numStackArgs counts stack arguments without depending on the current
// locations, which OutFrameSize needs before the first Reset.
func (c *JNICallingConvention) numStackArgs() int {
	var floats, ints int
	for _, cat := range c.categories() {
		if cat.IsFloatOrDouble() {
			floats++
		} else {
			ints++
		}
	}
	return max(0, floats-maxFloatOrDoubleArgumentRegisters) + max(0, ints-maxIntLikeArgumentRegisters)
}

// UseTailCall returns true if a critical native method can be tail called:
// nothing is passed on the stack and the result needs no extension.
func (c *JNICallingConvention) UseTailCall() bool {
	return c.isCriticalNative && c.numStackArgs() == 0 && !c.shorty.HasSmallReturnType()
}

// FrameSize is the size of the managed frame of the native stub: the method
// pointer, RA and the callee saves, the local reference segment cookie, the
// handle scope and the return value spill. Critical native stubs have no frame.
func (c *JNICallingConvention) FrameSize() int {
	if c.isCriticalNative {
		return 0
	}
	const localReferenceCookieSize = 4
	size := framePointerSize + // Method*
		(len(calleeSaveRegisters)+1)*framePointerSize +
		localReferenceCookieSize +
		handleScopeSize(c.NumReferenceArgs()) +
		c.shorty.sizeOfReturnValue()
	return roundUp(size, stackAlignment)
}

// handleScopeSize is the size of a scope holding refs references behind the
// link pointer and the reference count.
func handleScopeSize(refs int) int {
	return framePointerSize + 4 + refs*heapReferenceSize
}

// OutFrameSize is the size of the outgoing argument area. For critical
// native methods it holds the stack arguments and RA unless the call is a
// tail call. Otherwise it reserves a slot for every native argument.
func (c *JNICallingConvention) OutFrameSize() int {
	if c.isCriticalNative {
		size := c.numStackArgs() * framePointerSize
		if !c.UseTailCall() {
			size += framePointerSize
		}
		return roundUp(size, stackAlignment)
	}
	return roundUp((c.NumExtraArgs()+c.numManagedArgs())*framePointerSize, stackAlignment)
}

func (c *JNICallingConvention) numManagedArgs() int {
	return c.shorty.NumArgs() + lo.Ternary(c.isStatic, 0, 1)
}

// StackArgIndices returns the indices of the arguments passed on the stack.
func (c *JNICallingConvention) StackArgIndices() []int {
	return lo.Map(c.stackArgs(), func(t lo.Tuple2[int, ArgLocation], _ int) int { return t.A })
}

func roundUp(v, align int) int {
	return (v + align - 1) &^ (align - 1)
}
