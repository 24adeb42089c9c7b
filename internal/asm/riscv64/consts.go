package asm_riscv64

import "fmt"

// XReg is an integer register number, x0 to x31.
type XReg uint8

// FReg is a floating point register number, f0 to f31.
type FReg uint8

// Integer registers by ABI name.
// https://github.com/riscv-non-isa/riscv-elf-psabi-doc/blob/master/riscv-cc.adoc#register-convention
const (
	ZERO XReg = iota
	RA
	SP
	GP
	TP
	T0
	T1
	T2
	S0
	S1
	A0
	A1
	A2
	A3
	A4
	A5
	A6
	A7
	S2
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
	T3
	T4
	T5
	T6

	numXRegs = 32
)

// Registers reserved by the code generator.
const (
	// TR holds the current thread pointer.
	TR = S1
	// AT is the scratch register of macro instructions and long branches.
	AT = T6
	// TMP and TMP2 are scratch registers of macro instructions.
	TMP  = T5
	TMP2 = T4
	// FTMP is the floating point scratch register.
	FTMP = FT11

	// NoXReg marks an absent integer register operand.
	NoXReg XReg = 0xff
)

// Floating point registers by ABI name.
const (
	FT0 FReg = iota
	FT1
	FT2
	FT3
	FT4
	FT5
	FT6
	FT7
	FS0
	FS1
	FA0
	FA1
	FA2
	FA3
	FA4
	FA5
	FA6
	FA7
	FS2
	FS3
	FS4
	FS5
	FS6
	FS7
	FS8
	FS9
	FS10
	FS11
	FT8
	FT9
	FT10
	FT11

	numFRegs = 32
)

var xRegNames = [numXRegs]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

var fRegNames = [numFRegs]string{
	"ft0", "ft1", "ft2", "ft3", "ft4", "ft5", "ft6", "ft7",
	"fs0", "fs1", "fa0", "fa1", "fa2", "fa3", "fa4", "fa5",
	"fa6", "fa7", "fs2", "fs3", "fs4", "fs5", "fs6", "fs7",
	"fs8", "fs9", "fs10", "fs11", "ft8", "ft9", "ft10", "ft11",
}

// String implements fmt.Stringer.
func (r XReg) String() string {
	if r < numXRegs {
		return xRegNames[r]
	}
	if r == NoXReg {
		return "noreg"
	}
	return fmt.Sprintf("x?%d", r)
}

// String implements fmt.Stringer.
func (r FReg) String() string {
	if r < numFRegs {
		return fRegNames[r]
	}
	return fmt.Sprintf("f?%d", r)
}

// Major opcodes, bits [6:0] of every 32-bit instruction.
// https://github.com/riscv/riscv-isa-manual/releases/download/Ratified-IMAFDQC/riscv-spec-20191213.pdf (chapter 24)
const (
	opLoad    uint32 = 0b0000011
	opLoadFP  uint32 = 0b0000111
	opMiscMem uint32 = 0b0001111
	opOpImm   uint32 = 0b0010011
	opAUIPC   uint32 = 0b0010111
	opOpImm32 uint32 = 0b0011011
	opStore   uint32 = 0b0100011
	opStoreFP uint32 = 0b0100111
	opAMO     uint32 = 0b0101111
	opOp      uint32 = 0b0110011
	opLUI     uint32 = 0b0110111
	opOp32    uint32 = 0b0111011
	opMAdd    uint32 = 0b1000011
	opMSub    uint32 = 0b1000111
	opNMSub   uint32 = 0b1001011
	opNMAdd   uint32 = 0b1001111
	opOpFP    uint32 = 0b1010011
	opBranch  uint32 = 0b1100011
	opJALR    uint32 = 0b1100111
	opJAL     uint32 = 0b1101111
	opSystem  uint32 = 0b1110011
	// opCustom0 hosts the vendor (XThead) extension.
	opCustom0 uint32 = 0b0001011
)

// RoundingMode is the rm field of floating point instructions.
type RoundingMode uint8

const (
	// RNE rounds to nearest, ties to even.
	RNE RoundingMode = 0b000
	// RTZ rounds towards zero.
	RTZ RoundingMode = 0b001
	// RDN rounds down.
	RDN RoundingMode = 0b010
	// RUP rounds up.
	RUP RoundingMode = 0b011
	// RMM rounds to nearest, ties to max magnitude.
	RMM RoundingMode = 0b100
	// DYN uses the rounding mode of the fcsr register.
	DYN RoundingMode = 0b111
)

// String implements fmt.Stringer.
func (m RoundingMode) String() string {
	switch m {
	case RNE:
		return "rne"
	case RTZ:
		return "rtz"
	case RDN:
		return "rdn"
	case RUP:
		return "rup"
	case RMM:
		return "rmm"
	case DYN:
		return "dyn"
	default:
		return fmt.Sprintf("rm?%d", uint8(m))
	}
}

// Floating point formats in the fmt field.
const (
	fmtS uint32 = 0b00
	fmtD uint32 = 0b01
)

const (
	// nopInstruction is addi zero, zero, 0.
	nopInstruction uint32 = 0x00000013
	// jumpTableMarker fills jump table entries until their offsets are known.
	jumpTableMarker uint32 = 0x1abe1234

	wordSize       = 4
	doublewordSize = 8
	// stackAlignment is the psABI stack pointer alignment.
	stackAlignment = 16
)
