package asm_riscv64

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManagedRegister(t *testing.T) {
	require.True(t, NoRegister.IsNoRegister())
	require.Equal(t, "noreg", NoRegister.String())
	require.True(t, X(A0).IsXReg())
	require.Equal(t, A0, X(A0).XReg())
	require.True(t, F(FA0).IsFReg())
	require.Equal(t, FA0, F(FA0).FReg())
	require.NotEqual(t, X(A0).mask(), F(FA0).mask())
	require.PanicsWithValue(t, "BUG: fa0 is not an integer register", func() { F(FA0).XReg() })
	require.PanicsWithValue(t, "BUG: a0 is not a floating point register", func() { X(A0).FReg() })

	require.Equal(t, "a0/8", ArgumentLocation{Reg: X(A0), Size: 8}.String())
	require.Equal(t, "[sp+16]/4", ArgumentLocation{FrameOffset: 16, Size: 4}.String())
}

func TestAssembler_BuildFrame(t *testing.T) {
	calleeSaves := []ManagedRegister{X(S0), X(S2)}

	t.Run("with callee saves", func(t *testing.T) {
		opts := DefaultOptions()
		opts.CFI = true
		a := NewAssembler(opts)
		a.BuildFrame(32, X(A0), calleeSaves)
		a.RemoveFrame(32, calleeSaves)
		a.FinalizeCode()
		a.FinalizeInstructions()

		require.Equal(t, []string{
			"addi sp, sp, -32",
			"sd ra, 24(sp)",
			"sd s2, 16(sp)",
			"sd s0, 8(sp)",
			"sd a0, 0(sp)",
			"ld s0, 8(sp)",
			"ld s2, 16(sp)",
			"ld ra, 24(sp)",
			"addi sp, sp, 32",
			"jalr zero, 0(ra)",
		}, disasm(a.Bytes()))

		require.Equal(t, ""+
			// def_cfa_offset 32, ra at cfa-8, s2 at cfa-16, s0 at cfa-24.
			"440e20"+"448102"+"449204"+"448806"+
			// remember_state, restore s0, s2 and ra, def_cfa_offset 0.
			"440a"+"44c8"+"44d2"+"44c1"+"440e00"+
			// restore_state after ret, def_cfa_offset 32.
			"440b0e20",
			hex.EncodeToString(a.CFI().Data()))
		require.Equal(t, 32, a.CFI().CurrentCFAOffset())
	})

	t.Run("without callee saves", func(t *testing.T) {
		code := assemble(t, DefaultOptions(), func(a *Assembler) {
			a.BuildFrame(4096, NoRegister, nil)
			a.RemoveFrame(4096, nil)
		})
		require.Equal(t, []string{
			"lui t6, 0xfffff",
			"add sp, sp, t6",
			"lui t6, 0x1",
			"add sp, sp, t6",
			"jalr zero, 0(ra)",
		}, disasm(code))
	})

	t.Run("misaligned", func(t *testing.T) {
		a := NewAssembler(DefaultOptions())
		require.PanicsWithValue(t, "BUG: frame size 24 is not 16-byte aligned", func() { a.BuildFrame(24, NoRegister, nil) })
		require.PanicsWithValue(t, "BUG: frame size 8 is not 16-byte aligned", func() { a.RemoveFrame(8, nil) })
		require.PanicsWithValue(t, "BUG: frame adjustment 4 is not 8-byte aligned", func() { a.IncreaseFrameSize(4) })
		require.PanicsWithValue(t, "BUG: frame adjustment 12 is not 8-byte aligned", func() { a.DecreaseFrameSize(12) })
	})
}

func TestAssembler_transfers(t *testing.T) {
	runMacroCases(t, []macroCase{
		{name: "store word", emit: func(a *Assembler) { a.Store(8, X(A0), 4) }, exp: []string{"sw a0, 8(sp)"}},
		{name: "store double", emit: func(a *Assembler) { a.Store(8, F(FA0), 8) }, exp: []string{"fsd fa0, 8(sp)"}},
		{name: "store nothing", emit: func(a *Assembler) { a.Store(8, NoRegister, 0) }},
		{name: "load word", emit: func(a *Assembler) { a.Load(X(A0), SP, 8, 4) }, exp: []string{"lw a0, 8(sp)"}},
		{name: "load double", emit: func(a *Assembler) { a.Load(F(FA0), SP, 8, 8) }, exp: []string{"fld fa0, 8(sp)"}},
		{name: "load single", emit: func(a *Assembler) { a.Load(F(FA0), S2, 4, 4) }, exp: []string{"flw fa0, 4(s2)"}},
		{name: "move", emit: func(a *Assembler) { a.Move(X(A0), X(A1), 8) }, exp: []string{"or a0, a1, zero"}},
		{name: "move double", emit: func(a *Assembler) { a.Move(F(FA0), F(FA1), 8) }, exp: []string{"fsgnj.d fa0, fa1, fa1"}},
		{name: "move to itself", emit: func(a *Assembler) { a.Move(X(A0), X(A0), 8) }},
		{name: "copy", emit: func(a *Assembler) { a.Copy(16, 8, 4) }, exp: []string{"lw t4, 8(sp)", "sw t4, 16(sp)"}},
	})

	a := NewAssembler(DefaultOptions())
	require.PanicsWithValue(t, "unimplemented: no sign extension necessary for riscv64", func() { a.SignExtend(X(A0), 1) })
	require.PanicsWithValue(t, "unimplemented: no zero extension necessary for riscv64", func() { a.ZeroExtend(X(A0), 2) })
	require.PanicsWithValue(t, "unimplemented: store of 2 bytes", func() { a.Store(0, X(A0), 2) })
	require.PanicsWithValue(t, "unimplemented: move of 8 bytes from fa0 to a0", func() { a.Move(X(A0), F(FA0), 8) })
}

func TestAssembler_MoveArguments(t *testing.T) {
	reg := func(r ManagedRegister, size int) ArgumentLocation { return ArgumentLocation{Reg: r, Size: size} }
	stack := func(off int32, size int) ArgumentLocation { return ArgumentLocation{FrameOffset: off, Size: size} }

	t.Run("shift down", func(t *testing.T) {
		code := assemble(t, DefaultOptions(), func(a *Assembler) {
			a.MoveArguments(
				[]ArgumentLocation{reg(X(A0), 8), reg(X(A1), 8), stack(8, 8), reg(X(A2), 4)},
				[]ArgumentLocation{reg(X(A1), 8), reg(X(A2), 8), reg(X(A3), 8), stack(16, 4)},
			)
		})
		// a1 and a2 are read before they are overwritten.
		require.Equal(t, []string{
			"sd a3, 8(sp)",
			"or a0, a1, zero",
			"or a1, a2, zero",
			"lw a2, 16(sp)",
		}, disasm(code))
	})

	t.Run("shift up", func(t *testing.T) {
		code := assemble(t, DefaultOptions(), func(a *Assembler) {
			a.MoveArguments(
				[]ArgumentLocation{reg(X(A2), 8), reg(X(A1), 8)},
				[]ArgumentLocation{reg(X(A1), 8), reg(X(A0), 8)},
			)
		})
		require.Equal(t, []string{"or a2, a1, zero", "or a1, a0, zero"}, disasm(code))
	})

	t.Run("floating point and stack", func(t *testing.T) {
		code := assemble(t, DefaultOptions(), func(a *Assembler) {
			a.MoveArguments(
				[]ArgumentLocation{reg(F(FA0), 4), stack(0, 8), stack(24, 8), reg(X(A0), 8)},
				[]ArgumentLocation{reg(F(FA1), 4), reg(F(FA2), 8), stack(32, 8), reg(X(A0), 8)},
			)
		})
		require.Equal(t, []string{
			"fsd fa2, 0(sp)",
			"ld t4, 32(sp)",
			"sd t4, 24(sp)",
			"fsgnj.s fa0, fa1, fa1",
		}, disasm(code))
	})

	t.Run("invalid", func(t *testing.T) {
		a := NewAssembler(DefaultOptions())
		require.PanicsWithValue(t, "BUG: cyclic argument moves, pending registers 0xc00", func() {
			a.MoveArguments(
				[]ArgumentLocation{reg(X(A0), 8), reg(X(A1), 8)},
				[]ArgumentLocation{reg(X(A1), 8), reg(X(A0), 8)},
			)
		})
		require.PanicsWithValue(t, "BUG: argument 0 moves a1/8 to a0/4", func() {
			a.MoveArguments([]ArgumentLocation{reg(X(A0), 4)}, []ArgumentLocation{reg(X(A1), 8)})
		})
		require.PanicsWithValue(t, "BUG: 1 destinations for 0 arguments", func() {
			a.MoveArguments([]ArgumentLocation{reg(X(A0), 4)}, nil)
		})
	})
}

func TestAssembler_thread(t *testing.T) {
	runMacroCases(t, []macroCase{
		{name: "load", emit: func(a *Assembler) { a.LoadFromThread(X(A0), 16, 4) }, exp: []string{"lw a0, 16(s1)"}},
		{name: "load raw pointer", emit: func(a *Assembler) { a.LoadRawPtrFromThread(A0, 16) }, exp: []string{"ld a0, 16(s1)"}},
		{name: "store sp", emit: func(a *Assembler) { a.StoreStackPointerToThread(64) }, exp: []string{"sd sp, 64(s1)"}},
		{
			name: "store stack offset",
			emit: func(a *Assembler) { a.StoreStackOffsetToThread(100, 16) },
			exp:  []string{"addi t4, sp, 16", "sd t4, 100(s1)"},
		},
		{name: "current thread", emit: func(a *Assembler) { a.GetCurrentThread(A0) }, exp: []string{"or a0, s1, zero"}},
		{name: "current thread to frame", emit: func(a *Assembler) { a.GetCurrentThreadToFrame(8) }, exp: []string{"sd s1, 8(sp)"}},
		{name: "call", emit: func(a *Assembler) { a.CallFromThread(200) }, exp: []string{"ld t4, 200(s1)", "jalr ra, 0(t4)"}},
	})
}

func TestAssembler_heapPoisoning(t *testing.T) {
	poisoning := DefaultOptions()
	poisoning.HeapPoisoning = true
	emit := func(a *Assembler) {
		a.LoadRef(A0, A1, 8, true)
		a.MaybePoisonHeapReference(A2)
		a.LoadRef(A3, A1, 12, false)
	}

	require.Equal(t, []string{"lwu a0, 8(a1)", "lwu a3, 12(a1)"}, disasm(assemble(t, DefaultOptions(), emit)))
	require.Equal(t, []string{
		"lwu a0, 8(a1)",
		"sub a0, zero, a0",
		"slli a0, a0, 32",
		"srli a0, a0, 32",
		"sub a2, zero, a2",
		"slli a2, a2, 32",
		"srli a2, a2, 32",
		"lwu a3, 12(a1)",
	}, disasm(assemble(t, poisoning, emit)))
}

func TestAssembler_CreateJObject(t *testing.T) {
	runMacroCases(t, []macroCase{
		{
			name: "null not allowed",
			emit: func(a *Assembler) { a.CreateJObject(A0, 8, A1, false) },
			exp:  []string{"addi a0, sp, 8"},
		},
		{
			name: "loaded from the spill slot",
			emit: func(a *Assembler) { a.CreateJObject(A0, 8, NoXReg, true) },
			exp:  []string{"lwu a0, 8(sp)", "beq a0, zero, 8", "addi a0, sp, 8"},
		},
		{
			name: "different input register",
			emit: func(a *Assembler) { a.CreateJObject(A0, 8, A1, true) },
			exp:  []string{"bne a1, zero, 8", "or a0, zero, zero", "beq a1, zero, 8", "addi a0, sp, 8"},
		},
		{
			name: "in frame",
			emit: func(a *Assembler) { a.CreateJObjectInFrame(16, 8, true) },
			exp:  []string{"lwu t5, 8(sp)", "beq t5, zero, 8", "addi t5, sp, 8", "sd t5, 16(sp)"},
		},
	})
}

func TestAssembler_TestGcMarking(t *testing.T) {
	code := assemble(t, DefaultOptions(), func(a *Assembler) {
		marking, notMarking := NewLabel(), NewLabel()
		a.TestGcMarking(notMarking, UnaryZero)
		a.Nop()
		a.Bind(notMarking)
		a.TestGcMarking(marking, UnaryNotZero)
		a.Bind(marking)
	})
	require.Equal(t, []string{
		"lw t5, 52(s1)",
		"beq t5, zero, 8",
		"addi zero, zero, 0",
		"lw t5, 52(s1)",
		"bne t5, zero, 4",
	}, disasm(code))

	opts := DefaultOptions()
	opts.Thread.IsGcMarking = 2048
	code = assemble(t, opts, func(a *Assembler) {
		l := NewLabel()
		a.TestGcMarking(l, UnaryZero)
		a.Bind(l)
	})
	require.Equal(t, []string{"addi t6, s1, 2040", "lw t5, 8(t6)", "beq t5, zero, 4"}, disasm(code))
}

func TestAssembler_ExceptionPoll(t *testing.T) {
	code := assemble(t, DefaultOptions(), func(a *Assembler) {
		a.ExceptionPoll(16)
		a.Ret()
	})
	require.Equal(t, []string{
		"ld t4, 136(s1)",
		"bne t4, zero, 8",
		"jalr zero, 0(ra)",
		// Slow path.
		"addi sp, sp, 16",
		"or a0, t4, zero",
		"ld t5, 1192(s1)",
		"jalr zero, 0(t5)",
		"ebreak",
	}, disasm(code))

	code = assemble(t, DefaultOptions(), func(a *Assembler) {
		a.ExceptionPoll(0)
		a.ExceptionPoll(0)
	})
	require.Equal(t, []string{
		"ld t4, 136(s1)",
		"bne t4, zero, 12",
		"ld t4, 136(s1)",
		"bne t4, zero, 20",
		"or a0, t4, zero",
		"ld t5, 1192(s1)",
		"jalr zero, 0(t5)",
		"ebreak",
		"or a0, t4, zero",
		"ld t5, 1192(s1)",
		"jalr zero, 0(t5)",
		"ebreak",
	}, disasm(code))
}
