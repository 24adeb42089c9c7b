package asm_riscv64

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/riscv"

	"github.com/riscv-android-src/platform-art/internal/asm/golang_asm"
	"github.com/riscv-android-src/platform-art/internal/features"
)

// assemble runs build on a fresh Assembler and returns the finalized code.
func assemble(t *testing.T, opts Options, build func(a *Assembler)) []byte {
	t.Helper()
	a := NewAssembler(opts)
	build(a)
	a.FinalizeCode()
	a.FinalizeInstructions()
	return a.Bytes()
}

func words(code []byte) []uint32 {
	ret := make([]uint32, len(code)/wordSize)
	for i := range ret {
		ret[i] = binary.LittleEndian.Uint32(code[i*wordSize:])
	}
	return ret
}

// disasm renders code one instruction per line, with undecodable words as data.
func disasm(code []byte) []string {
	var ret []string
	for _, w := range words(code) {
		if in, err := Decode(w); err == nil {
			ret = append(ret, in.String())
		} else {
			ret = append(ret, fmt.Sprintf(".word %#08x", w))
		}
	}
	return ret
}

func TestAssembler_encoding(t *testing.T) {
	for _, tc := range []struct {
		name string
		emit func(a *Assembler)
		exp  uint32
		// dis is the disassembly when it differs from name.
		dis  string
	}{
		{name: "addi a0, a1, -1", emit: func(a *Assembler) { a.Addi(A0, A1, -1) }, exp: 0xfff58513},
		{name: "add a0, a1, a2", emit: func(a *Assembler) { a.Add(A0, A1, A2) }, exp: 0x00c58533},
		{name: "sub a0, a1, a2", emit: func(a *Assembler) { a.Sub(A0, A1, A2) }, exp: 0x40c58533},
		{name: "mul a0, a1, a2", emit: func(a *Assembler) { a.Mul(A0, A1, A2) }, exp: 0x02c58533},
		{name: "ld a0, 8(sp)", emit: func(a *Assembler) { a.Ld(A0, SP, 8) }, exp: 0x00813503},
		{name: "sd ra, 8(sp)", emit: func(a *Assembler) { a.Sd(RA, SP, 8) }, exp: 0x00113423},
		{name: "sw a1, -4(a0)", emit: func(a *Assembler) { a.Sw(A1, A0, -4) }, exp: 0xfeb52e23},
		{name: "lui a0, 0x12345", emit: func(a *Assembler) { a.Lui(A0, 0x12345) }, exp: 0x12345537},
		{name: "auipc t6, 0", emit: func(a *Assembler) { a.Auipc(T6, 0) }, exp: 0x00000f97, dis: "auipc t6, 0x0"},
		{name: "jal ra, 8", emit: func(a *Assembler) { a.Jal(RA, 8) }, exp: 0x008000ef},
		{name: "jal zero, -4", emit: func(a *Assembler) { a.Jal(ZERO, -4) }, exp: 0xffdff06f},
		{name: "ret", emit: func(a *Assembler) { a.Ret() }, exp: 0x00008067, dis: "jalr zero, 0(ra)"},
		{name: "beq a0, a1, 12", emit: func(a *Assembler) { a.Beq(A0, A1, 12) }, exp: 0x00b50663},
		{name: "bne a0, zero, -4", emit: func(a *Assembler) { a.Bne(A0, ZERO, -4) }, exp: 0xfe051ee3},
		{name: "slli a0, a0, 32", emit: func(a *Assembler) { a.Slli(A0, A0, 32) }, exp: 0x02051513},
		{name: "srai a0, a0, 3", emit: func(a *Assembler) { a.Srai(A0, A0, 3) }, exp: 0x40355513},
		{name: "sext.w a0, a0", emit: func(a *Assembler) { a.SextW(A0, A0) }, exp: 0x0005051b, dis: "addiw a0, a0, 0"},
		{name: "nop", emit: func(a *Assembler) { a.Nop() }, exp: 0x00000013, dis: "addi zero, zero, 0"},
		{name: "ecall", emit: func(a *Assembler) { a.Ecall() }, exp: 0x00000073},
		{name: "ebreak", emit: func(a *Assembler) { a.Ebreak() }, exp: 0x00100073},
		{name: "fence rw, rw", emit: func(a *Assembler) { a.MemoryBarrier() }, exp: 0x0330000f},
		{name: "fadd.d fa0, fa1, fa2, rne", emit: func(a *Assembler) { a.FaddD(FA0, FA1, FA2, RNE) }, exp: 0x02c58553},
		{name: "fadd.d fa0, fa1, fa2", emit: func(a *Assembler) { a.FaddD(FA0, FA1, FA2, DYN) }, exp: 0x02c5f553},
		{name: "fld fa0, 8(sp)", emit: func(a *Assembler) { a.Fld(FA0, SP, 8) }, exp: 0x00813507},
		{name: "fsd fa0, 8(sp)", emit: func(a *Assembler) { a.Fsd(FA0, SP, 8) }, exp: 0x00a13427},
		{name: "fmv.x.d a0, fa0", emit: func(a *Assembler) { a.FmvXD(A0, FA0) }, exp: 0xe2050553},
		{name: "fcvt.l.d a0, fa0, rtz", emit: func(a *Assembler) { a.FcvtLD(A0, FA0, RTZ) }, exp: 0xc2251553},
		{name: "lr.d a0, (a1)", emit: func(a *Assembler) { a.LrD(A0, A1, AMORelaxed) }, exp: 0x1005b52f},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			code := assemble(t, DefaultOptions(), tc.emit)
			require.Equal(t, []uint32{tc.exp}, words(code), "%#08x", words(code))
			dis := tc.dis
			if dis == "" {
				dis = tc.name
			}
			require.Equal(t, []string{dis}, disasm(code))
		})
	}
}

func TestAssembler_encodingPanics(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts Options
		emit func(a *Assembler)
		exp  string
	}{
		{
			name: "imm12 overflow",
			emit: func(a *Assembler) { a.Addi(A0, A0, 2048) },
			exp:  "BUG: immediate 2048 does not fit in 12 signed bits",
		},
		{
			name: "odd branch",
			emit: func(a *Assembler) { a.Beq(A0, A1, 3) },
			exp:  "BUG: odd branch offset 0x3",
		},
		{
			name: "branch out of range",
			emit: func(a *Assembler) { a.Bne(A0, A1, 4096) },
			exp:  "BUG: branch offset 4096 does not fit in 13 signed bits",
		},
		{
			name: "shift amount",
			emit: func(a *Assembler) { a.Slli(A0, A0, 64) },
			exp:  "BUG: shamt 0x40 does not fit in 6 bits",
		},
		{
			name: "invalid register",
			emit: func(a *Assembler) { a.Add(NoXReg, A0, A1) },
			exp:  "BUG: invalid integer register noreg",
		},
		{
			name: "missing M",
			opts: Options{ISA: features.ISAI},
			emit: func(a *Assembler) { a.Mul(A0, A1, A2) },
			exp:  "BUG: multiplication needs extension m, target has i",
		},
		{
			name: "missing XThead",
			opts: DefaultOptions(),
			emit: func(a *Assembler) { a.ThMula(A0, A1, A2) },
			exp:  "BUG: th.mula needs the XThead vendor extension",
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			a := NewAssembler(tc.opts)
			require.PanicsWithValue(t, tc.exp, func() { tc.emit(a) })
		})
	}
}

func TestAssembler_golangAsmAgreement(t *testing.T) {
	type rrr struct {
		as   obj.As
		emit func(a *Assembler, rd, rs1, rs2 XReg)
	}
	type rri struct {
		as   obj.As
		emit func(a *Assembler, rd, rs1 XReg, imm int32)
		imms []int64
	}

	// T6 is the scratch register of the Go toolchain and golang-asm treats
	// instructions using it specially, so it is left out of the register sets.
	regSets := [][3]XReg{{A0, A1, A2}, {ZERO, S11, T5}, {RA, SP, GP}, {T0, S1, A7}}
	shift := []int64{0, 1, 31, 32, 63}
	shiftW := []int64{0, 1, 17, 31}
	simm := []int64{-2048, -1, 0, 1, 0x555, 2047}

	t.Run("register register", func(t *testing.T) {
		for _, tc := range []rrr{
			{riscv.AADD, (*Assembler).Add}, {riscv.ASUB, (*Assembler).Sub},
			{riscv.ASLL, (*Assembler).Sll}, {riscv.ASLT, (*Assembler).Slt},
			{riscv.ASLTU, (*Assembler).Sltu}, {riscv.AXOR, (*Assembler).Xor},
			{riscv.ASRL, (*Assembler).Srl}, {riscv.ASRA, (*Assembler).Sra},
			{riscv.AOR, (*Assembler).Or}, {riscv.AAND, (*Assembler).And},
			{riscv.AADDW, (*Assembler).Addw}, {riscv.ASUBW, (*Assembler).Subw},
			{riscv.ASLLW, (*Assembler).Sllw}, {riscv.ASRLW, (*Assembler).Srlw},
			{riscv.ASRAW, (*Assembler).Sraw},
			{riscv.AMUL, (*Assembler).Mul}, {riscv.AMULH, (*Assembler).Mulh},
			{riscv.AMULHU, (*Assembler).Mulhu}, {riscv.AMULHSU, (*Assembler).Mulhsu},
			{riscv.ADIV, (*Assembler).Div}, {riscv.ADIVU, (*Assembler).Divu},
			{riscv.AREM, (*Assembler).Rem}, {riscv.AREMU, (*Assembler).Remu},
			{riscv.AMULW, (*Assembler).Mulw}, {riscv.ADIVW, (*Assembler).Divw},
			{riscv.ADIVUW, (*Assembler).Divuw}, {riscv.AREMW, (*Assembler).Remw},
			{riscv.AREMUW, (*Assembler).Remuw},
		} {
			tc := tc
			t.Run(tc.as.String(), func(t *testing.T) {
				ref, err := golang_asm.NewRISCV64Assembler()
				require.NoError(t, err)
				actual := assemble(t, DefaultOptions(), func(a *Assembler) {
					for _, regs := range regSets {
						tc.emit(a, regs[0], regs[1], regs[2])
						ref.CompileRegisterToRegister(tc.as, uint8(regs[1]), uint8(regs[2]), uint8(regs[0]))
					}
				})
				expected, err := ref.Assemble()
				require.NoError(t, err)
				require.Equal(t, words(expected), words(actual))
			})
		}
	})

	t.Run("register immediate", func(t *testing.T) {
		for _, tc := range []rri{
			{riscv.AADDI, (*Assembler).Addi, simm},
			{riscv.ASLTI, (*Assembler).Slti, simm},
			{riscv.ASLTIU, (*Assembler).Sltiu, simm},
			{riscv.AXORI, (*Assembler).Xori, simm},
			{riscv.AORI, (*Assembler).Ori, simm},
			{riscv.AANDI, (*Assembler).Andi, simm},
			{riscv.AADDIW, (*Assembler).Addiw, simm},
			{riscv.ASLLI, func(a *Assembler, rd, rs1 XReg, imm int32) { a.Slli(rd, rs1, uint32(imm)) }, shift},
			{riscv.ASRLI, func(a *Assembler, rd, rs1 XReg, imm int32) { a.Srli(rd, rs1, uint32(imm)) }, shift},
			{riscv.ASRAI, func(a *Assembler, rd, rs1 XReg, imm int32) { a.Srai(rd, rs1, uint32(imm)) }, shift},
			{riscv.ASLLIW, func(a *Assembler, rd, rs1 XReg, imm int32) { a.Slliw(rd, rs1, uint32(imm)) }, shiftW},
			{riscv.ASRLIW, func(a *Assembler, rd, rs1 XReg, imm int32) { a.Srliw(rd, rs1, uint32(imm)) }, shiftW},
			{riscv.ASRAIW, func(a *Assembler, rd, rs1 XReg, imm int32) { a.Sraiw(rd, rs1, uint32(imm)) }, shiftW},
		} {
			tc := tc
			t.Run(tc.as.String(), func(t *testing.T) {
				ref, err := golang_asm.NewRISCV64Assembler()
				require.NoError(t, err)
				actual := assemble(t, DefaultOptions(), func(a *Assembler) {
					for _, regs := range regSets {
						for _, imm := range tc.imms {
							tc.emit(a, regs[0], regs[1], int32(imm))
							ref.CompileConstToRegister(tc.as, imm, uint8(regs[1]), uint8(regs[0]))
						}
					}
				})
				expected, err := ref.Assemble()
				require.NoError(t, err)
				require.Equal(t, words(expected), words(actual))
			})
		}
	})

	t.Run("memory", func(t *testing.T) {
		loads := map[obj.As]func(a *Assembler, rd, rs1 XReg, off int32){
			riscv.ALB: (*Assembler).Lb, riscv.ALH: (*Assembler).Lh, riscv.ALW: (*Assembler).Lw,
			riscv.ALD: (*Assembler).Ld, riscv.ALBU: (*Assembler).Lbu, riscv.ALHU: (*Assembler).Lhu,
			riscv.ALWU: (*Assembler).Lwu,
		}
		stores := map[obj.As]func(a *Assembler, rs2, rs1 XReg, off int32){
			riscv.ASB: (*Assembler).Sb, riscv.ASH: (*Assembler).Sh,
			riscv.ASW: (*Assembler).Sw, riscv.ASD: (*Assembler).Sd,
		}
		for as, load := range loads {
			as, load := as, load
			t.Run(as.String(), func(t *testing.T) {
				ref, err := golang_asm.NewRISCV64Assembler()
				require.NoError(t, err)
				actual := assemble(t, DefaultOptions(), func(a *Assembler) {
					for _, regs := range regSets {
						for _, off := range simm {
							load(a, regs[0], regs[1], int32(off))
							ref.CompileMemoryToRegister(as, uint8(regs[1]), off, uint8(regs[0]))
						}
					}
				})
				expected, err := ref.Assemble()
				require.NoError(t, err)
				require.Equal(t, words(expected), words(actual))
			})
		}
		for as, store := range stores {
			as, store := as, store
			t.Run(as.String(), func(t *testing.T) {
				ref, err := golang_asm.NewRISCV64Assembler()
				require.NoError(t, err)
				actual := assemble(t, DefaultOptions(), func(a *Assembler) {
					for _, regs := range regSets {
						for _, off := range simm {
							store(a, regs[0], regs[1], int32(off))
							ref.CompileRegisterToMemory(as, uint8(regs[0]), uint8(regs[1]), off)
						}
					}
				})
				expected, err := ref.Assemble()
				require.NoError(t, err)
				require.Equal(t, words(expected), words(actual))
			})
		}
	})

	t.Run("upper immediate", func(t *testing.T) {
		ref, err := golang_asm.NewRISCV64Assembler()
		require.NoError(t, err)
		actual := assemble(t, DefaultOptions(), func(a *Assembler) {
			for _, imm := range []int64{-0x80000, -1, 0, 1, 0x12345, 0x7ffff} {
				a.Lui(A0, int32(imm))
				ref.CompileUpperImmediate(riscv.ALUI, imm, uint8(A0))
				a.Auipc(S11, int32(imm))
				ref.CompileUpperImmediate(riscv.AAUIPC, imm, uint8(S11))
			}
		})
		expected, err := ref.Assemble()
		require.NoError(t, err)
		require.Equal(t, words(expected), words(actual))
	})

	t.Run("branch", func(t *testing.T) {
		branches := []struct {
			as   obj.As
			emit func(a *Assembler, rs1, rs2 XReg, off int32)
		}{
			{riscv.ABEQ, (*Assembler).Beq}, {riscv.ABNE, (*Assembler).Bne},
			{riscv.ABLT, (*Assembler).Blt}, {riscv.ABGE, (*Assembler).Bge},
			{riscv.ABLTU, (*Assembler).Bltu}, {riscv.ABGEU, (*Assembler).Bgeu},
		}
		ref, err := golang_asm.NewRISCV64Assembler()
		require.NoError(t, err)
		actual := assemble(t, DefaultOptions(), func(a *Assembler) {
			for _, b := range branches {
				for _, off := range []int64{-4096, -2, 0, 2, 12, 2046, 4094} {
					b.emit(a, A0, S11, int32(off))
					ref.CompileBranch(b.as, uint8(A0), uint8(S11), off)
				}
			}
			for _, off := range []int64{-1 << 20, -4, 0, 8, 2048, 1<<20 - 2} {
				a.Jal(RA, int32(off))
				ref.CompileJump(uint8(RA), off)
				a.Jal(ZERO, int32(off))
				ref.CompileJump(uint8(ZERO), off)
			}
		})
		expected, err := ref.Assemble()
		require.NoError(t, err)
		require.Equal(t, words(expected), words(actual))
	})
}

func TestAssembler_Emit32(t *testing.T) {
	code := assemble(t, DefaultOptions(), func(a *Assembler) {
		a.Emit32(0xdeadbeef)
		require.Equal(t, 4, a.CodeSize())
	})
	require.Equal(t, []uint32{0xdeadbeef}, words(code))
}

func TestAssembler_Bytes_beforeFinalize(t *testing.T) {
	a := NewAssembler(DefaultOptions())
	a.Nop()
	require.PanicsWithValue(t, "BUG: Bytes called before FinalizeInstructions", func() { a.Bytes() })
	require.PanicsWithValue(t, "BUG: FinalizeInstructions before FinalizeCode", a.FinalizeInstructions)
	a.FinalizeCode()
	require.PanicsWithValue(t, "BUG: FinalizeCode called twice", a.FinalizeCode)
}

func TestNewAssembler_defaults(t *testing.T) {
	a := NewAssembler(Options{})
	require.Equal(t, features.DefaultISAFeatures, a.Options().ISA)
	require.Equal(t, DefaultThreadOffsets, a.Options().Thread)
	require.False(t, a.CFI().Enabled())
}
