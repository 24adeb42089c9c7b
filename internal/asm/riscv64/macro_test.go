package asm_riscv64

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type macroCase struct {
	name   string
	xthead bool
	emit   func(a *Assembler)
	exp    []string
}

func runMacroCases(t *testing.T, cases []macroCase) {
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.XThead = tc.xthead
			require.Equal(t, tc.exp, disasm(assemble(t, opts, tc.emit)))
		})
	}
}

func TestAssembler_LoadConst(t *testing.T) {
	runMacroCases(t, []macroCase{
		{name: "zero", emit: func(a *Assembler) { a.LoadConst32(A0, 0) }, exp: []string{"addi a0, zero, 0"}},
		{name: "max int12", emit: func(a *Assembler) { a.LoadConst32(A0, 2047) }, exp: []string{"addi a0, zero, 2047"}},
		{name: "min int12", emit: func(a *Assembler) { a.LoadConst32(A0, -2048) }, exp: []string{"addi a0, zero, -2048"}},
		{name: "minus one", emit: func(a *Assembler) { a.LoadConst32(A0, -1) }, exp: []string{"addi a0, zero, -1"}},
		{name: "upper only", emit: func(a *Assembler) { a.LoadConst32(A0, 0x1000) }, exp: []string{"lui a0, 0x1"}},
		{
			name: "positive low part",
			emit: func(a *Assembler) { a.LoadConst32(A0, 0x12345678) },
			exp:  []string{"lui a0, 0x12345", "addiw a0, a0, 1656"},
		},
		{
			name: "negative low part",
			emit: func(a *Assembler) { a.LoadConst32(A0, 0x12345800) },
			exp:  []string{"lui a0, 0x12346", "addiw a0, a0, -2048"},
		},
		{
			name: "upper wraps",
			emit: func(a *Assembler) { a.LoadConst32(A0, 0x7ffff800) },
			exp:  []string{"lui a0, 0x80000", "addiw a0, a0, -2048"},
		},
		{
			name: "64-bit in 32-bit range",
			emit: func(a *Assembler) { a.LoadConst64(A0, -0x80000000) },
			exp:  []string{"lui a0, 0x80000"},
		},
		{
			name: "64-bit",
			emit: func(a *Assembler) { a.Li(A0, 0x123456789abcdef0) },
			exp: []string{
				"lui t4, 0x9abce",
				"addiw t4, t4, -272",
				"lui a0, 0x12345",
				"addiw a0, a0, 1656",
				"slli a0, a0, 32",
				"slli t4, t4, 32",
				"srli t4, t4, 32",
				"or a0, a0, t4",
			},
		},
		{name: "addi64 small", emit: func(a *Assembler) { a.Addi64(A0, A1, 100) }, exp: []string{"addi a0, a1, 100"}},
		{
			name: "addi64 large",
			emit: func(a *Assembler) { a.Addi64(A0, A1, 0x10000) },
			exp:  []string{"lui t6, 0x10", "add a0, a1, t6"},
		},
	})

	a := NewAssembler(DefaultOptions())
	require.PanicsWithValue(t, "BUG: LoadConst64 into its own scratch register", func() { a.LoadConst64(TMP2, 1<<40) })
	require.PanicsWithValue(t, "BUG: Addi64 with AT as the source of a large immediate", func() { a.Addi64(A0, AT, 1<<20) })
}

func TestAssembler_bitManipulation(t *testing.T) {
	runMacroCases(t, []macroCase{
		{name: "srri", emit: func(a *Assembler) { a.Srri(A0, A1, 8) }, exp: []string{"srli t5, a1, 8", "slli a0, a1, 56", "or a0, a0, t5"}},
		{name: "srri zero", emit: func(a *Assembler) { a.Srri(A0, A1, 0) }, exp: []string{"or a0, a1, zero"}},
		{name: "srri xthead", xthead: true, emit: func(a *Assembler) { a.Srri(A0, A1, 8) }, exp: []string{"th.srri a0, a1, 8"}},
		{name: "srriw", emit: func(a *Assembler) { a.Srriw(A0, A1, 8) }, exp: []string{"srliw t5, a1, 8", "slliw a0, a1, 24", "or a0, a0, t5"}},
		{name: "srriw zero", emit: func(a *Assembler) { a.Srriw(A0, A1, 0) }, exp: []string{"addiw a0, a1, 0"}},
		{name: "srriw xthead", xthead: true, emit: func(a *Assembler) { a.Srriw(A0, A1, 8) }, exp: []string{"th.srriw a0, a1, 8"}},
		{name: "extb", emit: func(a *Assembler) { a.Extb(A0, A1, 8, 8) }, exp: []string{"slli a0, a1, 48", "srai a0, a0, 56"}},
		{name: "extub", emit: func(a *Assembler) { a.Extub(A0, A1, 0, 16) }, exp: []string{"slli a0, a1, 48", "srli a0, a0, 48"}},
		{name: "extb xthead", xthead: true, emit: func(a *Assembler) { a.Extb(A0, A1, 8, 8) }, exp: []string{"th.ext a0, a1, 15, 8"}},
		{name: "extub xthead", xthead: true, emit: func(a *Assembler) { a.Extub(A0, A1, 32, 32) }, exp: []string{"th.extu a0, a1, 63, 32"}},
		{name: "sextb", emit: func(a *Assembler) { a.SextB(A0, A1) }, exp: []string{"slli a0, a1, 56", "srai a0, a0, 56"}},
		{name: "zexth", emit: func(a *Assembler) { a.ZextH(A0, A1) }, exp: []string{"slli a0, a1, 48", "srli a0, a0, 48"}},
		{name: "zextb", emit: func(a *Assembler) { a.ZextB(A0, A1) }, exp: []string{"andi a0, a1, 255"}},
	})

	a := NewAssembler(DefaultOptions())
	require.PanicsWithValue(t, "BUG: bit field of 8 bits at 60", func() { a.Extb(A0, A1, 60, 8) })
	require.PanicsWithValue(t, "BUG: bit field of 0 bits at 0", func() { a.Extub(A0, A1, 0, 0) })
	require.PanicsWithValue(t, "BUG: Srri on its scratch register", func() { a.Srri(TMP, A1, 1) })
}

func TestAssembler_select(t *testing.T) {
	runMacroCases(t, []macroCase{
		{
			name: "seleqz",
			emit: func(a *Assembler) { a.Seleqz(A0, A1, A2) },
			exp:  []string{"or a0, a1, zero", "beq a2, zero, 8", "or a0, zero, zero"},
		},
		{
			name: "selnez",
			emit: func(a *Assembler) { a.Selnez(A0, A1, A2) },
			exp:  []string{"or a0, a1, zero", "bne a2, zero, 8", "or a0, zero, zero"},
		},
		{
			name: "selnez onto the condition",
			emit: func(a *Assembler) { a.Selnez(A0, A1, A0) },
			exp:  []string{"or t4, a0, zero", "or a0, a1, zero", "bne t4, zero, 8", "or a0, zero, zero"},
		},
		{
			name:   "seleqz xthead",
			xthead: true,
			emit:   func(a *Assembler) { a.Seleqz(A0, A1, A2) },
			exp:    []string{"or a0, zero, zero", "th.mveqz a0, a1, a2"},
		},
		{
			name:   "selnez xthead",
			xthead: true,
			emit:   func(a *Assembler) { a.Selnez(A0, A1, A2) },
			exp:    []string{"or a0, zero, zero", "th.mvnez a0, a1, a2"},
		},
	})
}

func TestAssembler_atomics(t *testing.T) {
	runMacroCases(t, []macroCase{
		{name: "ll", emit: func(a *Assembler) { a.Ll(A0, A1) }, exp: []string{"lr.w a0, (a1)"}},
		{name: "lld", emit: func(a *Assembler) { a.Lld(A0, A1) }, exp: []string{"lr.d a0, (a1)"}},
		{name: "sc", emit: func(a *Assembler) { a.Sc(A0, A1) }, exp: []string{"sc.w a0, a0, (a1)", "xori a0, a0, 1"}},
		{name: "scd", emit: func(a *Assembler) { a.Scd(A0, A1) }, exp: []string{"sc.d a0, a0, (a1)", "xori a0, a0, 1"}},
		{name: "memory barrier", emit: func(a *Assembler) { a.MemoryBarrier() }, exp: []string{"fence rw, rw"}},
	})
}

func TestAssembler_floatingPoint(t *testing.T) {
	runMacroCases(t, []macroCase{
		{
			name: "truncwd",
			emit: func(a *Assembler) { a.TruncWD(A0, FA0) },
			exp:  []string{"or a0, zero, zero", "feq.d t5, fa0, fa0", "beq t5, zero, 8", "fcvt.w.d a0, fa0, rtz"},
		},
		{
			name:   "truncls xthead",
			xthead: true,
			emit:   func(a *Assembler) { a.TruncLS(A0, FA0) },
			exp:    []string{"feq.s t5, fa0, fa0", "fcvt.l.s a0, fa0, rtz", "th.mveqz a0, zero, t5"},
		},
		{
			name: "min with NaN propagation",
			emit: func(a *Assembler) { a.FJMaxMinD(FA0, FA1, FA2, true) },
			exp: []string{
				"feq.d t5, fa1, fa1",
				"beq t5, zero, 20",
				"feq.d t5, fa2, fa2",
				"beq t5, zero, 20",
				"fmin.d fa0, fa1, fa2",
				"jal zero, 16",
				"fsgnj.d fa0, fa1, fa1",
				"jal zero, 8",
				"fsgnj.d fa0, fa2, fa2",
			},
		},
		{
			name: "max single",
			emit: func(a *Assembler) { a.FJMaxMinS(FA0, FA1, FA2, false) },
			exp: []string{
				"feq.s t5, fa1, fa1",
				"beq t5, zero, 20",
				"feq.s t5, fa2, fa2",
				"beq t5, zero, 20",
				"fmax.s fa0, fa1, fa2",
				"jal zero, 16",
				"fsgnj.s fa0, fa1, fa1",
				"jal zero, 8",
				"fsgnj.s fa0, fa2, fa2",
			},
		},
		{
			name: "unordered not equal",
			emit: func(a *Assembler) { a.CmpUneD(A0, FA0, FA1) },
			exp: []string{
				"fclass.d t5, fa0",
				"srli t5, t5, 8",
				"bne t5, zero, 28",
				"fclass.d t5, fa1",
				"srli t5, t5, 8",
				"bne t5, zero, 16",
				"feq.d a0, fa0, fa1",
				"xori a0, a0, 1",
				"jal zero, 8",
				"addi a0, zero, 1",
			},
		},
		{
			name: "ordered",
			emit: func(a *Assembler) { a.CmpOrS(A0, FA0, FA1) },
			exp: []string{
				"fclass.s t5, fa0",
				"srli t5, t5, 8",
				"bne t5, zero, 24",
				"fclass.s t5, fa1",
				"srli t5, t5, 8",
				"bne t5, zero, 12",
				"or a0, zero, zero",
				"jal zero, 8",
				"addi a0, zero, 1",
				"sltiu a0, a0, 1",
			},
		},
		{name: "ordered less than", emit: func(a *Assembler) { a.CmpLtD(A0, FA0, FA1) }, exp: []string{"flt.d a0, fa0, fa1"}},
	})

	a := NewAssembler(DefaultOptions())
	require.PanicsWithValue(t, "BUG: truncation into its scratch register", func() { a.TruncWS(TMP, FA0) })
	require.PanicsWithValue(t, "BUG: float comparison into its scratch register", func() { a.CmpUnD(TMP, FA0, FA1) })
}

func TestAssembler_offsets(t *testing.T) {
	runMacroCases(t, []macroCase{
		{
			name: "in range",
			emit: func(a *Assembler) { a.LoadFromOffset(LoadDoublewordOperand, A0, A1, 2040) },
			exp:  []string{"ld a0, 2040(a1)"},
		},
		{
			name: "split doubleword",
			emit: func(a *Assembler) { a.LoadFromOffset(LoadDoublewordOperand, A0, A1, 2044) },
			exp:  []string{"addi t6, a1, 2040", "ld a0, 4(t6)"},
		},
		{
			name: "simple positive adjustment",
			emit: func(a *Assembler) { a.LoadFromOffset(LoadSignedWord, A0, A1, 4000) },
			exp:  []string{"addi t6, a1, 2040", "lw a0, 1960(t6)"},
		},
		{
			name: "simple negative adjustment",
			emit: func(a *Assembler) { a.LoadFromOffset(LoadSignedWord, A0, A1, -3000) },
			exp:  []string{"addi t6, a1, -2040", "lw a0, -960(t6)"},
		},
		{
			name: "upper adjustment",
			emit: func(a *Assembler) { a.LoadFromOffset(LoadSignedWord, A0, A1, 0x12345) },
			exp:  []string{"lui t6, 0x12", "add t6, a1, t6", "lw a0, 837(t6)"},
		},
		{
			name: "negative upper adjustment",
			emit: func(a *Assembler) { a.LoadFromOffset(LoadUnsignedByte, A0, A1, -0x12345) },
			exp:  []string{"lui t6, 0xfffee", "add t6, a1, t6", "lbu a0, -837(t6)"},
		},
		{
			name: "upper adjustment of a split doubleword",
			emit: func(a *Assembler) { a.LoadFromOffset(LoadDoublewordOperand, A0, A1, 0x127fc) },
			exp:  []string{"lui t6, 0x12", "add t6, a1, t6", "addi t6, t6, 8", "ld a0, 2036(t6)"},
		},
		{
			name: "store word",
			emit: func(a *Assembler) { a.StoreToOffset(StoreWord, A0, SP, 2044) },
			exp:  []string{"sw a0, 2044(sp)"},
		},
		{
			name: "store double",
			emit: func(a *Assembler) { a.StoreFpuToOffset(StoreDoubleword, FA0, SP, 2044) },
			exp:  []string{"addi t6, sp, 2040", "fsd fa0, 4(t6)"},
		},
		{
			name: "load single",
			emit: func(a *Assembler) { a.LoadFpuFromOffset(LoadSignedWord, FA0, SP, 4096) },
			exp:  []string{"lui t6, 0x1", "add t6, sp, t6", "flw fa0, 0(t6)"},
		},
	})

	a := NewAssembler(DefaultOptions())
	require.PanicsWithValue(t, "BUG: StoreToOffset of AT", func() { a.StoreToOffset(StoreDoubleword, AT, SP, 0) })
	require.PanicsWithValue(t, "BUG: AdjustBaseAndOffset with AT as the base", func() { a.AdjustBaseAndOffset(AT, 0, false) })

	base, off := a.AdjustBaseAndOffset(S0, -8, true)
	require.Equal(t, S0, base)
	require.Equal(t, int32(-8), off)
}
