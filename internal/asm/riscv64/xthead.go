package asm_riscv64

// XThead vendor extension, all in the custom-0 major opcode.
// https://github.com/T-head-Semi/thead-extension-spec

// ThAddsl emits th.addsl rd, rs1, rs2, uimm2: rd = rs1 + rs2<<uimm2.
func (a *Assembler) ThAddsl(rd, rs1, rs2 XReg, uimm2 uint32) {
	a.requireXThead("th.addsl")
	a.emit(encodeRsd(0b00000, uimm2, x(rs2), x(rs1), 0b001, x(rd), opCustom0))
}

// ThMula emits th.mula rd, rs1, rs2: rd += rs1 * rs2.
func (a *Assembler) ThMula(rd, rs1, rs2 XReg) {
	a.requireXThead("th.mula")
	a.emit(encodeRsd(0b00100, 0b00, x(rs2), x(rs1), 0b001, x(rd), opCustom0))
}

// ThMuls emits th.muls rd, rs1, rs2: rd -= rs1 * rs2.
func (a *Assembler) ThMuls(rd, rs1, rs2 XReg) {
	a.requireXThead("th.muls")
	a.emit(encodeRsd(0b00100, 0b01, x(rs2), x(rs1), 0b001, x(rd), opCustom0))
}

// ThMveqz emits th.mveqz rd, rs1, rs2: rd = rs1 if rs2 == 0.
func (a *Assembler) ThMveqz(rd, rs1, rs2 XReg) {
	a.requireXThead("th.mveqz")
	a.emit(encodeRsd(0b01000, 0b00, x(rs2), x(rs1), 0b001, x(rd), opCustom0))
}

// ThMvnez emits th.mvnez rd, rs1, rs2: rd = rs1 if rs2 != 0.
func (a *Assembler) ThMvnez(rd, rs1, rs2 XReg) {
	a.requireXThead("th.mvnez")
	a.emit(encodeRsd(0b01000, 0b01, x(rs2), x(rs1), 0b001, x(rd), opCustom0))
}

// ThSrri emits th.srri rd, rs1, uimm6, a 64-bit rotate right.
func (a *Assembler) ThSrri(rd, rs1 XReg, uimm6 uint32) {
	a.requireXThead("th.srri")
	a.emit(encodeI6(0b000100, uimm6, x(rs1), 0b001, x(rd), opCustom0))
}

// ThSrriw emits th.srriw rd, rs1, uimm5, a 32-bit rotate right.
func (a *Assembler) ThSrriw(rd, rs1 XReg, uimm5 uint32) {
	a.requireXThead("th.srriw")
	checkField("shamt", 5, uimm5)
	a.emit(encodeR(0b0001010, uimm5, x(rs1), 0b001, x(rd), opCustom0))
}

// ThExt emits th.ext rd, rs1, msb, lsb, a sign extending bit field extract.
func (a *Assembler) ThExt(rd, rs1 XReg, msb, lsb uint32) {
	a.requireXThead("th.ext")
	a.emit(encodeI6(msb, lsb, x(rs1), 0b010, x(rd), opCustom0))
}

// ThExtu emits th.extu rd, rs1, msb, lsb, a zero extending bit field extract.
func (a *Assembler) ThExtu(rd, rs1 XReg, msb, lsb uint32) {
	a.requireXThead("th.extu")
	a.emit(encodeI6(msb, lsb, x(rs1), 0b011, x(rd), opCustom0))
}

// ThFf0 finds the first zero bit from the most significant end.
func (a *Assembler) ThFf0(rd, rs1 XReg) {
	a.requireXThead("th.ff0")
	a.emit(encodeRsd(0b10000, 0b10, 0, x(rs1), 0b001, x(rd), opCustom0))
}

// ThFf1 counts leading zeros.
func (a *Assembler) ThFf1(rd, rs1 XReg) {
	a.requireXThead("th.ff1")
	a.emit(encodeRsd(0b10000, 0b11, 0, x(rs1), 0b001, x(rd), opCustom0))
}

// ThRev reverses the byte order of a doubleword.
func (a *Assembler) ThRev(rd, rs1 XReg) {
	a.requireXThead("th.rev")
	a.emit(encodeRsd(0b10000, 0b01, 0, x(rs1), 0b001, x(rd), opCustom0))
}

// ThRevw reverses the byte order of the low word and sign extends it.
func (a *Assembler) ThRevw(rd, rs1 XReg) {
	a.requireXThead("th.revw")
	a.emit(encodeRsd(0b10010, 0b00, 0, x(rs1), 0b001, x(rd), opCustom0))
}

// ThTst sets rd to bit uimm6 of rs1.
func (a *Assembler) ThTst(rd, rs1 XReg, uimm6 uint32) {
	a.requireXThead("th.tst")
	a.emit(encodeI6(0b100010, uimm6, x(rs1), 0b001, x(rd), opCustom0))
}

// Indexed loads: rd = mem[rs1 + rs2<<uimm2].
const (
	thIndexedB  uint32 = 0b00000
	thIndexedBU uint32 = 0b10000
	thIndexedW  uint32 = 0b01000
	thIndexedWU uint32 = 0b11000
	thIndexedD  uint32 = 0b01100
)

func (a *Assembler) thIndexed(funct5, funct3 uint32, rd, rs1, rs2 XReg, uimm2 uint32) {
	a.requireXThead("indexed memory access")
	a.emit(encodeRsd(funct5, uimm2, x(rs2), x(rs1), funct3, x(rd), opCustom0))
}

func (a *Assembler) ThLrb(rd, rs1, rs2 XReg, uimm2 uint32) {
	a.thIndexed(thIndexedB, 0b100, rd, rs1, rs2, uimm2)
}

func (a *Assembler) ThLrbu(rd, rs1, rs2 XReg, uimm2 uint32) {
	a.thIndexed(thIndexedBU, 0b100, rd, rs1, rs2, uimm2)
}

func (a *Assembler) ThLrw(rd, rs1, rs2 XReg, uimm2 uint32) {
	a.thIndexed(thIndexedW, 0b100, rd, rs1, rs2, uimm2)
}

func (a *Assembler) ThLrwu(rd, rs1, rs2 XReg, uimm2 uint32) {
	a.thIndexed(thIndexedWU, 0b100, rd, rs1, rs2, uimm2)
}

func (a *Assembler) ThLrd(rd, rs1, rs2 XReg, uimm2 uint32) {
	a.thIndexed(thIndexedD, 0b100, rd, rs1, rs2, uimm2)
}

// Indexed stores: mem[rs1 + rs2<<uimm2] = rd.

func (a *Assembler) ThSrb(rd, rs1, rs2 XReg, uimm2 uint32) {
	a.thIndexed(thIndexedB, 0b101, rd, rs1, rs2, uimm2)
}

func (a *Assembler) ThSrw(rd, rs1, rs2 XReg, uimm2 uint32) {
	a.thIndexed(thIndexedW, 0b101, rd, rs1, rs2, uimm2)
}

func (a *Assembler) ThSrd(rd, rs1, rs2 XReg, uimm2 uint32) {
	a.thIndexed(thIndexedD, 0b101, rd, rs1, rs2, uimm2)
}
