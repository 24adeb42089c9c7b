package asm_riscv64

import "fmt"

// The packers below produce one instruction word per format. Immediates are
// passed already truncated to their field width where the format says so, and
// every out of range field is a bug in the caller.
// https://github.com/riscv/riscv-isa-manual/releases/download/Ratified-IMAFDQC/riscv-spec-20191213.pdf (section 2.3)

func isInt(bits uint, v int64) bool {
	return -(int64(1)<<(bits-1)) <= v && v < int64(1)<<(bits-1)
}

func isUint(bits uint, v uint64) bool {
	return v < uint64(1)<<bits
}

func checkField(what string, bits uint, v uint32) {
	if !isUint(bits, uint64(v)) {
		panic(fmt.Sprintf("BUG: %s %#x does not fit in %d bits", what, v, bits))
	}
}

func checkReg(r uint32) {
	if r >= 32 {
		panic(fmt.Sprintf("BUG: invalid register number %d", r))
	}
}

// encodeR packs funct7 | rs2 | rs1 | funct3 | rd | opcode.
func encodeR(funct7, rs2, rs1, funct3, rd, opcode uint32) uint32 {
	checkField("funct7", 7, funct7)
	checkField("funct3", 3, funct3)
	checkReg(rs2)
	checkReg(rs1)
	checkReg(rd)
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

// encodeR4 packs rs3 | funct2 | rs2 | rs1 | funct3 | rd | opcode used by fused multiply-add.
func encodeR4(rs3, funct2, rs2, rs1, funct3, rd, opcode uint32) uint32 {
	checkField("funct2", 2, funct2)
	checkField("funct3", 3, funct3)
	checkReg(rs3)
	checkReg(rs2)
	checkReg(rs1)
	checkReg(rd)
	return rs3<<27 | funct2<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

// encodeI packs imm[11:0] | rs1 | funct3 | rd | opcode. imm is the raw 12 bit field.
func encodeI(imm, rs1, funct3, rd, opcode uint32) uint32 {
	checkField("imm12", 12, imm)
	checkField("funct3", 3, funct3)
	checkReg(rs1)
	checkReg(rd)
	return imm<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

// encodeI6 packs funct6 | shamt[5:0] | rs1 | funct3 | rd | opcode for 64-bit shifts.
func encodeI6(funct6, shamt, rs1, funct3, rd, opcode uint32) uint32 {
	checkField("funct6", 6, funct6)
	checkField("shamt", 6, shamt)
	checkField("funct3", 3, funct3)
	checkReg(rs1)
	checkReg(rd)
	return funct6<<26 | shamt<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

// encodeS packs imm[11:5] | rs2 | rs1 | funct3 | imm[4:0] | opcode.
func encodeS(imm, rs2, rs1, funct3, opcode uint32) uint32 {
	checkField("imm12", 12, imm)
	checkField("funct3", 3, funct3)
	checkReg(rs2)
	checkReg(rs1)
	return (imm>>5)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (imm&0x1f)<<7 | opcode
}

// encodeB packs a 13 bit even offset as imm[12|10:5] | rs2 | rs1 | funct3 | imm[4:1|11] | opcode.
func encodeB(imm, rs2, rs1, funct3, opcode uint32) uint32 {
	checkField("branch offset", 13, imm)
	if imm&1 != 0 {
		panic(fmt.Sprintf("BUG: odd branch offset %#x", imm))
	}
	checkField("funct3", 3, funct3)
	checkReg(rs2)
	checkReg(rs1)
	return (imm>>12&1)<<31 | (imm>>5&0x3f)<<25 | rs2<<20 | rs1<<15 | funct3<<12 |
		(imm>>1&0xf)<<8 | (imm>>11&1)<<7 | opcode
}

// encodeU packs imm[31:12] | rd | opcode. imm is the raw 20 bit field.
func encodeU(imm, rd, opcode uint32) uint32 {
	checkField("imm20", 20, imm)
	checkReg(rd)
	return imm<<12 | rd<<7 | opcode
}

// encodeJ packs a 21 bit even offset as imm[20|10:1|11|19:12] | rd | opcode.
func encodeJ(imm, rd, opcode uint32) uint32 {
	checkField("jump offset", 21, imm)
	if imm&1 != 0 {
		panic(fmt.Sprintf("BUG: odd jump offset %#x", imm))
	}
	checkReg(rd)
	return (imm>>20&1)<<31 | (imm>>1&0x3ff)<<21 | (imm>>11&1)<<20 | (imm>>12&0xff)<<12 | rd<<7 | opcode
}

// encodeRsd packs the vendor format funct5 | funct2 | rs | rs1 | funct3 | rd | opcode.
// Bit field extraction reuses rs and rs1 as the msb and lsb positions.
func encodeRsd(funct5, funct2, rs, rs1, funct3, rd, opcode uint32) uint32 {
	checkField("funct5", 5, funct5)
	checkField("funct2", 2, funct2)
	checkField("funct3", 3, funct3)
	checkReg(rs)
	checkReg(rs1)
	checkReg(rd)
	return funct5<<27 | funct2<<25 | rs<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

// imm12 truncates a signed 12 bit immediate to its field, panicking when it does not fit.
func imm12(v int32) uint32 {
	if !isInt(12, int64(v)) {
		panic(fmt.Sprintf("BUG: immediate %d does not fit in 12 signed bits", v))
	}
	return uint32(v) & 0xfff
}

// imm20 truncates a 20 bit upper immediate, accepting both signed and unsigned spellings.
func imm20(v int32) uint32 {
	if !isInt(20, int64(v)) && !isUint(20, uint64(uint32(v))) {
		panic(fmt.Sprintf("BUG: immediate %d does not fit in 20 bits", v))
	}
	return uint32(v) & 0xfffff
}

func branchOffset(v int32) uint32 {
	if !isInt(13, int64(v)) {
		panic(fmt.Sprintf("BUG: branch offset %d does not fit in 13 signed bits", v))
	}
	return uint32(v) & 0x1fff
}

func jumpOffset(v int32) uint32 {
	if !isInt(21, int64(v)) {
		panic(fmt.Sprintf("BUG: jump offset %d does not fit in 21 signed bits", v))
	}
	return uint32(v) & 0x1fffff
}
