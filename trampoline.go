package art

import (
	"fmt"

	asm "github.com/riscv-android-src/platform-art/internal/asm/riscv64"
	"github.com/riscv-android-src/platform-art/internal/callconv"
)

// entryRegister holds the native entrypoint while the arguments move. It is
// neither an argument register nor used by the assembler's macros.
const entryRegister = asm.T0

// CriticalNativeTrampoline assembles the stub called with the managed calling
// convention for a static @CriticalNative method of the given shorty. The stub
// loads the native entrypoint from the method at A0+entryOffset, moves the
// arguments to their native locations and calls the entrypoint, as a tail
// call when the native calling convention allows it.
func CriticalNativeTrampoline(cfg *AssemblerConfig, shorty string, entryOffset int32) (*Routine, error) {
	if err := callconv.ValidateShorty(shorty); err != nil {
		return nil, fmt.Errorf("critical native trampoline: %w", err)
	}
	managed := callconv.NewManagedRuntimeCallingConvention(shorty, true, false)
	native := callconv.NewJNICallingConvention(shorty, true, false, true)
	if n := managed.NumReferenceArgs(); n != 0 {
		return nil, fmt.Errorf("critical native trampoline: %q has %d reference arguments", shorty, n)
	}

	outFrameSize := native.OutFrameSize()
	managed.Reset(int32(outFrameSize))
	native.Reset(int32(outFrameSize))
	srcs := callconv.ArgumentLocations(managed.Locations())
	dests := callconv.ArgumentLocations(native.Locations())
	for i := range srcs {
		src, dest := srcs[i], dests[i]
		if src.IsRegister() && dest.IsRegister() && src.Reg.IsXReg() != dest.Reg.IsXReg() {
			return nil, fmt.Errorf("critical native trampoline: %q argument %d moves %s to %s", shorty, i, src, dest)
		}
	}

	tailCall := native.UseTailCall()
	raOffset := int32(outFrameSize) - 8
	return Assemble(cfg, "critical_native_"+shorty, func(a *asm.Assembler) {
		a.LoadFromOffset(asm.LoadDoublewordOperand, entryRegister, asm.A0, entryOffset)
		if outFrameSize > 0 {
			a.IncreaseFrameSize(uint32(outFrameSize))
		}
		if !tailCall {
			a.StoreToOffset(asm.StoreDoubleword, asm.RA, asm.SP, raOffset)
		}
		a.MoveArguments(dests, srcs)
		if tailCall {
			a.Jr(entryRegister)
			return
		}

		a.Jalrr(entryRegister)
		extendResult(a, shorty[0])
		a.LoadFromOffset(asm.LoadDoublewordOperand, asm.RA, asm.SP, raOffset)
		a.DecreaseFrameSize(uint32(outFrameSize))
		a.Ret()
	})
}

// extendResult widens a narrow native result to what managed code expects.
func extendResult(a *asm.Assembler, ret byte) {
	switch ret {
	case 'Z':
		a.ZextB(asm.A0, asm.A0)
	case 'B':
		a.SextB(asm.A0, asm.A0)
	case 'C':
		a.ZextH(asm.A0, asm.A0)
	case 'S':
		a.SextH(asm.A0, asm.A0)
	}
}
