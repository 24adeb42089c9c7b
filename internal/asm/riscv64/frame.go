package asm_riscv64

import (
	"fmt"

	"github.com/riscv-android-src/platform-art/internal/cfi"
)

// framePointerSize is the size of a spilled register or pointer.
const framePointerSize = 8

type regKind byte

const (
	regKindNone regKind = iota
	regKindX
	regKindF
)

// ManagedRegister is an integer register, a floating point register or no register.
//
// The zero value is no register.
type ManagedRegister struct {
	kind regKind
	num  uint8
}

// NoRegister is the absent ManagedRegister.
var NoRegister = ManagedRegister{}

// X returns the ManagedRegister of an integer register.
func X(r XReg) ManagedRegister {
	x(r)
	return ManagedRegister{kind: regKindX, num: uint8(r)}
}

// F returns the ManagedRegister of a floating point register.
func F(r FReg) ManagedRegister {
	f(r)
	return ManagedRegister{kind: regKindF, num: uint8(r)}
}

func (r ManagedRegister) IsNoRegister() bool { return r.kind == regKindNone }
func (r ManagedRegister) IsXReg() bool       { return r.kind == regKindX }
func (r ManagedRegister) IsFReg() bool       { return r.kind == regKindF }

// XReg returns the integer register, panicking for any other kind.
func (r ManagedRegister) XReg() XReg {
	if r.kind != regKindX {
		panic(fmt.Sprintf("BUG: %s is not an integer register", r))
	}
	return XReg(r.num)
}

// FReg returns the floating point register, panicking for any other kind.
func (r ManagedRegister) FReg() FReg {
	if r.kind != regKindF {
		panic(fmt.Sprintf("BUG: %s is not a floating point register", r))
	}
	return FReg(r.num)
}

// mask is the bit of the register in a 64-bit set: integer registers use the
// low 32 bits and floating point registers the high 32 bits.
func (r ManagedRegister) mask() uint64 {
	switch r.kind {
	case regKindX:
		return 1 << r.num
	case regKindF:
		return 1 << 32 << r.num
	default:
		panic("BUG: mask of no register")
	}
}

// String implements fmt.Stringer.
func (r ManagedRegister) String() string {
	switch r.kind {
	case regKindX:
		return XReg(r.num).String()
	case regKindF:
		return FReg(r.num).String()
	default:
		return "noreg"
	}
}

func (r ManagedRegister) dwarf() cfi.Reg {
	if r.kind == regKindF {
		return cfi.FReg(r.num)
	}
	return cfi.XReg(r.num)
}

// ArgumentLocation is where an argument lives: a register, or a frame offset
// from SP when Reg is NoRegister.
type ArgumentLocation struct {
	Reg         ManagedRegister
	FrameOffset int32
	Size        int
}

// IsRegister returns true if the argument is in a register.
func (l ArgumentLocation) IsRegister() bool { return !l.Reg.IsNoRegister() }

// String implements fmt.Stringer.
func (l ArgumentLocation) String() string {
	if l.IsRegister() {
		return fmt.Sprintf("%s/%d", l.Reg, l.Size)
	}
	return fmt.Sprintf("[sp%+d]/%d", l.FrameOffset, l.Size)
}

func (a *Assembler) cfiAdvance() {
	a.cfi.AdvancePC(uint32(a.buf.Len()))
}

// BuildFrame allocates a frame of frameSize bytes, spills RA to its top slot,
// then calleeSaves below it in reverse order, and stores methodReg at SP+0
// unless it is NoRegister. Without callee saves RA is not spilled either.
func (a *Assembler) BuildFrame(frameSize uint32, methodReg ManagedRegister, calleeSaves []ManagedRegister) {
	if frameSize%stackAlignment != 0 {
		panic(fmt.Sprintf("BUG: frame size %d is not %d-byte aligned", frameSize, stackAlignment))
	}
	a.IncreaseFrameSize(frameSize)

	if len(calleeSaves) > 0 {
		off := int32(frameSize) - framePointerSize
		a.StoreToOffset(StoreDoubleword, RA, SP, off)
		a.cfiAdvance()
		a.cfi.RelOffset(cfi.XReg(uint8(RA)), int(off))
		for i := len(calleeSaves) - 1; i >= 0; i-- {
			r := calleeSaves[i]
			if r.IsXReg() && r.XReg() == RA {
				continue
			}
			off -= framePointerSize
			a.storeRegister(r, off)
			a.cfiAdvance()
			a.cfi.RelOffset(r.dwarf(), int(off))
		}
	}

	if !methodReg.IsNoRegister() {
		a.StoreToOffset(StoreDoubleword, methodReg.XReg(), SP, 0)
	}
}

// RemoveFrame reloads what BuildFrame spilled, frees the frame and returns.
// The CFI state after the return is the one of the frame body, for code that
// follows the exit block.
func (a *Assembler) RemoveFrame(frameSize uint32, calleeSaves []ManagedRegister) {
	if frameSize%stackAlignment != 0 {
		panic(fmt.Sprintf("BUG: frame size %d is not %d-byte aligned", frameSize, stackAlignment))
	}
	a.cfiAdvance()
	a.cfi.RememberState()

	if len(calleeSaves) > 0 {
		spilled := 0
		for _, r := range calleeSaves {
			if !(r.IsXReg() && r.XReg() == RA) {
				spilled++
			}
		}
		off := int32(frameSize) - framePointerSize - int32(spilled)*framePointerSize
		for _, r := range calleeSaves {
			if r.IsXReg() && r.XReg() == RA {
				continue
			}
			a.loadRegister(r, off)
			a.cfiAdvance()
			a.cfi.Restore(r.dwarf())
			off += framePointerSize
		}
		a.LoadFromOffset(LoadDoublewordOperand, RA, SP, off)
		a.cfiAdvance()
		a.cfi.Restore(cfi.XReg(uint8(RA)))
	}

	a.DecreaseFrameSize(frameSize)
	a.Ret()

	a.cfiAdvance()
	a.cfi.RestoreState()
	a.cfi.DefCFAOffset(int(frameSize))
}

// IncreaseFrameSize moves SP down by adjust bytes.
func (a *Assembler) IncreaseFrameSize(adjust uint32) {
	if adjust%framePointerSize != 0 {
		panic(fmt.Sprintf("BUG: frame adjustment %d is not %d-byte aligned", adjust, framePointerSize))
	}
	a.Addi64(SP, SP, -int64(adjust))
	a.cfiAdvance()
	a.cfi.AdjustCFAOffset(int(adjust))
}

// DecreaseFrameSize moves SP up by adjust bytes.
func (a *Assembler) DecreaseFrameSize(adjust uint32) {
	if adjust%framePointerSize != 0 {
		panic(fmt.Sprintf("BUG: frame adjustment %d is not %d-byte aligned", adjust, framePointerSize))
	}
	a.Addi64(SP, SP, int64(adjust))
	a.cfiAdvance()
	a.cfi.AdjustCFAOffset(-int(adjust))
}

func (a *Assembler) storeRegister(r ManagedRegister, off int32) {
	if r.IsXReg() {
		a.StoreToOffset(StoreDoubleword, r.XReg(), SP, off)
	} else {
		a.StoreFpuToOffset(StoreDoubleword, r.FReg(), SP, off)
	}
}

func (a *Assembler) loadRegister(r ManagedRegister, off int32) {
	if r.IsXReg() {
		a.LoadFromOffset(LoadDoublewordOperand, r.XReg(), SP, off)
	} else {
		a.LoadFpuFromOffset(LoadDoublewordOperand, r.FReg(), SP, off)
	}
}

// Frame and register transfers.

// Store spills src to SP+off. size is 4 or 8.
func (a *Assembler) Store(off int32, src ManagedRegister, size int) {
	switch {
	case src.IsNoRegister():
		if size != 0 {
			panic(fmt.Sprintf("BUG: store of %d bytes from no register", size))
		}
	case src.IsXReg() && size == 4:
		a.StoreToOffset(StoreWord, src.XReg(), SP, off)
	case src.IsXReg() && size == 8:
		a.StoreToOffset(StoreDoubleword, src.XReg(), SP, off)
	case src.IsFReg() && size == 4:
		a.StoreFpuToOffset(StoreWord, src.FReg(), SP, off)
	case src.IsFReg() && size == 8:
		a.StoreFpuToOffset(StoreDoubleword, src.FReg(), SP, off)
	default:
		panic(fmt.Sprintf("unimplemented: store of %d bytes", size))
	}
}

// Load fills dst from base+off. size is 4 or 8.
func (a *Assembler) Load(dst ManagedRegister, base XReg, off int32, size int) {
	switch {
	case dst.IsNoRegister():
		if size != 0 {
			panic(fmt.Sprintf("BUG: load of %d bytes into no register", size))
		}
	case dst.IsXReg() && size == 4:
		a.LoadFromOffset(LoadSignedWord, dst.XReg(), base, off)
	case dst.IsXReg() && size == 8:
		a.LoadFromOffset(LoadDoublewordOperand, dst.XReg(), base, off)
	case dst.IsFReg() && size == 4:
		a.LoadFpuFromOffset(LoadSignedWord, dst.FReg(), base, off)
	case dst.IsFReg() && size == 8:
		a.LoadFpuFromOffset(LoadDoublewordOperand, dst.FReg(), base, off)
	default:
		panic(fmt.Sprintf("unimplemented: load of %d bytes", size))
	}
}

// Move copies src to dst, which must be registers of the same kind.
func (a *Assembler) Move(dst, src ManagedRegister, size int) {
	if dst == src {
		return
	}
	switch {
	case dst.IsXReg() && src.IsXReg():
		a.Mv(dst.XReg(), src.XReg())
	case dst.IsFReg() && src.IsFReg() && size == 4:
		a.FmvS(dst.FReg(), src.FReg())
	case dst.IsFReg() && src.IsFReg() && size == 8:
		a.FmvD(dst.FReg(), src.FReg())
	default:
		panic(fmt.Sprintf("unimplemented: move of %d bytes from %s to %s", size, src, dst))
	}
}

// Copy copies size bytes between two frame slots through TMP2.
func (a *Assembler) Copy(dst, src int32, size int) {
	switch size {
	case 4:
		a.LoadFromOffset(LoadSignedWord, TMP2, SP, src)
		a.StoreToOffset(StoreWord, TMP2, SP, dst)
	case 8:
		a.LoadFromOffset(LoadDoublewordOperand, TMP2, SP, src)
		a.StoreToOffset(StoreDoubleword, TMP2, SP, dst)
	default:
		panic(fmt.Sprintf("unimplemented: copy of %d bytes", size))
	}
}

// SignExtend is never needed on this target.
func (a *Assembler) SignExtend(ManagedRegister, int) {
	panic("unimplemented: no sign extension necessary for riscv64")
}

// ZeroExtend is never needed on this target.
func (a *Assembler) ZeroExtend(ManagedRegister, int) {
	panic("unimplemented: no zero extension necessary for riscv64")
}

// MoveArguments moves arguments from srcs to dests. Stack destinations are
// written first; register destinations are then filled in an order that
// never clobbers a pending source. A cycle between registers is a bug.
func (a *Assembler) MoveArguments(dests, srcs []ArgumentLocation) {
	if len(dests) != len(srcs) {
		panic(fmt.Sprintf("BUG: %d destinations for %d arguments", len(dests), len(srcs)))
	}
	var srcRegs, destRegs uint64
	for i := range srcs {
		src, dest := srcs[i], dests[i]
		if src.Size != dest.Size {
			panic(fmt.Sprintf("BUG: argument %d moves %s to %s", i, src, dest))
		}
		switch {
		case dest.IsRegister():
			if src.IsRegister() && src.Reg == dest.Reg {
				continue
			}
			if src.IsRegister() {
				srcRegs |= src.Reg.mask()
			}
			destRegs |= dest.Reg.mask()
		case src.IsRegister():
			a.Store(dest.FrameOffset, src.Reg, dest.Size)
		default:
			a.Copy(dest.FrameOffset, src.FrameOffset, dest.Size)
		}
	}

	for destRegs != 0 {
		before := destRegs
		for i := range srcs {
			src, dest := srcs[i], dests[i]
			if !dest.IsRegister() {
				continue
			}
			m := dest.Reg.mask()
			if m&destRegs == 0 || m&srcRegs != 0 {
				// Already filled, or still needed as a source.
				continue
			}
			if src.IsRegister() {
				a.Move(dest.Reg, src.Reg, dest.Size)
				srcRegs &^= src.Reg.mask()
			} else {
				a.Load(dest.Reg, SP, src.FrameOffset, dest.Size)
			}
			destRegs &^= m
		}
		if destRegs == before {
			panic(fmt.Sprintf("BUG: cyclic argument moves, pending registers %#x", destRegs))
		}
	}
}

// Thread register helpers.

// LoadFromThread loads size bytes at TR+off into dst.
func (a *Assembler) LoadFromThread(dst ManagedRegister, off int32, size int) {
	a.Load(dst, TR, off, size)
}

// LoadRawPtrFromThread loads the pointer at TR+off.
func (a *Assembler) LoadRawPtrFromThread(rd XReg, off int32) {
	a.LoadFromOffset(LoadDoublewordOperand, rd, TR, off)
}

// StoreToThread stores the pointer in rs to TR+off.
func (a *Assembler) StoreToThread(off int32, rs XReg) {
	a.StoreToOffset(StoreDoubleword, rs, TR, off)
}

// StoreStackPointerToThread stores SP to TR+off.
func (a *Assembler) StoreStackPointerToThread(off int32) {
	a.StoreToThread(off, SP)
}

// StoreStackOffsetToThread stores SP+frameOff to TR+off.
func (a *Assembler) StoreStackOffsetToThread(off, frameOff int32) {
	a.Addi64(TMP2, SP, int64(frameOff))
	a.StoreToThread(off, TMP2)
}

// GetCurrentThread copies TR to rd.
func (a *Assembler) GetCurrentThread(rd XReg) { a.Mv(rd, TR) }

// GetCurrentThreadToFrame stores TR to SP+off.
func (a *Assembler) GetCurrentThreadToFrame(off int32) {
	a.StoreToOffset(StoreDoubleword, TR, SP, off)
}

// CallFromThread calls the entrypoint stored at TR+off.
func (a *Assembler) CallFromThread(off int32) {
	a.CallIndirect(TR, off)
}

// CallIndirect calls the code address stored at base+off through TMP2.
func (a *Assembler) CallIndirect(base XReg, off int32) {
	a.LoadFromOffset(LoadDoublewordOperand, TMP2, base, off)
	a.Jalrr(TMP2)
}

// Heap reference poisoning.

// PoisonHeapReference negates the 32-bit reference in reg, zero extended.
func (a *Assembler) PoisonHeapReference(reg XReg) {
	a.Sub(reg, ZERO, reg)
	a.ZextW(reg, reg)
}

// UnpoisonHeapReference reverts PoisonHeapReference. Negation is its own inverse.
func (a *Assembler) UnpoisonHeapReference(reg XReg) {
	a.PoisonHeapReference(reg)
}

// MaybePoisonHeapReference poisons reg if heap poisoning is enabled.
func (a *Assembler) MaybePoisonHeapReference(reg XReg) {
	if a.opts.HeapPoisoning {
		a.PoisonHeapReference(reg)
	}
}

// MaybeUnpoisonHeapReference unpoisons reg if heap poisoning is enabled.
func (a *Assembler) MaybeUnpoisonHeapReference(reg XReg) {
	if a.opts.HeapPoisoning {
		a.UnpoisonHeapReference(reg)
	}
}

// LoadRef loads the 32-bit reference at base+off into rd, unpoisoning it if requested.
func (a *Assembler) LoadRef(rd, base XReg, off int32, unpoison bool) {
	a.LoadFromOffset(LoadUnsignedWordOperand, rd, base, off)
	if unpoison {
		a.MaybeUnpoisonHeapReference(rd)
	}
}

// Native transition helpers.

// CreateJObject sets out to the address of the reference spilled at
// SP+spillOffset, or to null if the reference is null and nullAllowed. in holds
// the reference, or is NoXReg when it must be loaded from the spill slot.
func (a *Assembler) CreateJObject(out XReg, spillOffset int32, in XReg, nullAllowed bool) {
	if !nullAllowed {
		a.Addi64(out, SP, int64(spillOffset))
		return
	}
	if in == NoXReg {
		a.LoadFromOffset(LoadUnsignedWordOperand, out, SP, spillOffset)
		in = out
	}
	if out != in {
		nonNull := NewLabel()
		a.Bnez(in, nonNull)
		a.Clear(out)
		a.Bind(nonNull)
	}
	null := NewLabel()
	a.Beqz(in, null)
	a.Addi64(out, SP, int64(spillOffset))
	a.Bind(null)
}

// CreateJObjectInFrame is CreateJObject with the result stored to SP+outOffset.
func (a *Assembler) CreateJObjectInFrame(outOffset, spillOffset int32, nullAllowed bool) {
	a.CreateJObject(TMP, spillOffset, NoXReg, nullAllowed)
	a.StoreToOffset(StoreDoubleword, TMP, SP, outOffset)
}

// UnaryCondition is the condition of TestGcMarking.
type UnaryCondition byte

const (
	UnaryZero UnaryCondition = iota
	UnaryNotZero
)

// TestGcMarking branches to l if the thread's GC marking flag matches cond.
func (a *Assembler) TestGcMarking(l *Label, cond UnaryCondition) {
	a.LoadFromOffset(LoadSignedWord, TMP, TR, a.opts.Thread.IsGcMarking)
	switch cond {
	case UnaryZero:
		a.Beqz(TMP, l)
	case UnaryNotZero:
		a.Bnez(TMP, l)
	default:
		panic(fmt.Sprintf("unimplemented: unary condition %d", cond))
	}
}

// exceptionBlock is the deferred slow path of one ExceptionPoll.
type exceptionBlock struct {
	entry       *Label
	scratch     XReg
	stackAdjust uint32
}

// ExceptionPoll branches to a slow path emitted by FinalizeCode if the thread
// has a pending exception. The slow path drops stackAdjust bytes of frame and
// delivers the exception; it never returns.
func (a *Assembler) ExceptionPoll(stackAdjust uint32) {
	blk := exceptionBlock{entry: NewLabel(), scratch: TMP2, stackAdjust: stackAdjust}
	a.exceptionBlocks = append(a.exceptionBlocks, blk)
	a.LoadFromOffset(LoadDoublewordOperand, blk.scratch, TR, a.opts.Thread.Exception)
	a.Bnez(blk.scratch, blk.entry)
}

func (a *Assembler) emitExceptionBlocks() {
	for _, blk := range a.exceptionBlocks {
		a.Bind(blk.entry)
		if blk.stackAdjust != 0 {
			a.DecreaseFrameSize(blk.stackAdjust)
		}
		a.Mv(A0, blk.scratch)
		a.LoadFromOffset(LoadDoublewordOperand, TMP, TR, a.opts.Thread.DeliverException)
		a.Jr(TMP)
		a.Ebreak()
	}
}
