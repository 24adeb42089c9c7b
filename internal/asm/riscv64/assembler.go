package asm_riscv64

import (
	"fmt"

	"github.com/riscv-android-src/platform-art/internal/asm"
	"github.com/riscv-android-src/platform-art/internal/cfi"
	"github.com/riscv-android-src/platform-art/internal/features"
)

// ThreadOffsets locates the thread fields and entrypoints that generated code
// reaches through TR.
type ThreadOffsets struct {
	// Exception is the offset of the pending exception reference.
	Exception int32
	// DeliverException is the offset of the exception delivery entrypoint.
	DeliverException int32
	// IsGcMarking is the offset of the 32-bit GC marking flag.
	IsGcMarking int32
}

// DefaultThreadOffsets matches the thread layout of the runtime this backend targets.
var DefaultThreadOffsets = ThreadOffsets{
	Exception:        136,
	DeliverException: 1192,
	IsGcMarking:      52,
}

// Options configures one Assembler.
type Options struct {
	// ISA is the set of extensions the generated code may use.
	ISA features.ISAFeatures
	// XThead enables the vendor extension for rotates, bit field extraction
	// and indexed memory accesses.
	XThead bool
	// HeapPoisoning makes MaybePoisonHeapReference and friends emit code.
	HeapPoisoning bool
	// MaxShortBranchDistance promotes every non-bare branch whose distance in
	// bytes is at least this value. Zero keeps the natural ranges.
	MaxShortBranchDistance uint32
	// CFI enables recording of call frame information.
	CFI bool
	// Thread is the thread layout used by frame helpers.
	Thread ThreadOffsets
}

// DefaultOptions returns the options of a plain RV64GC target.
func DefaultOptions() Options {
	return Options{ISA: features.DefaultISAFeatures, Thread: DefaultThreadOffsets}
}

// Assembler emits RV64GC machine code for a single routine.
//
// Straight line instructions are encoded immediately. Branches, label address
// loads and literal loads are recorded and get placeholder words; FinalizeCode
// lays out the routine and FinalizeInstructions bakes their final encodings.
type Assembler struct {
	opts Options
	buf  *asm.CodeBuffer
	cfi  *cfi.Writer

	branches []branch

	literals     []*Literal
	longLiterals []*Literal
	jumpTables   []*JumpTable

	exceptionBlocks []exceptionBlock

	// Cursor of AdjustedPosition.
	lastAdjustment  uint32
	lastOldPosition uint32
	lastBranchID    int

	codeFinalized         bool
	instructionsFinalized bool
}

// NewAssembler returns an empty Assembler.
func NewAssembler(opts Options) *Assembler {
	if opts.ISA == 0 {
		opts.ISA = features.DefaultISAFeatures
	}
	if opts.Thread == (ThreadOffsets{}) {
		opts.Thread = DefaultThreadOffsets
	}
	return &Assembler{
		opts: opts,
		buf:  asm.NewCodeBuffer(1024),
		cfi:  cfi.NewWriter(opts.CFI, true),
	}
}

// Options returns the options the Assembler was created with.
func (a *Assembler) Options() Options {
	return a.opts
}

// CodeSize returns the number of bytes emitted so far.
func (a *Assembler) CodeSize() int {
	return a.buf.Len()
}

// Bytes returns the finalized code.
func (a *Assembler) Bytes() []byte {
	if !a.instructionsFinalized {
		panic("BUG: Bytes called before FinalizeInstructions")
	}
	return a.buf.Bytes()
}

// CFI returns the call frame information writer.
func (a *Assembler) CFI() *cfi.Writer {
	return a.cfi
}

// Emit32 emits a raw instruction word.
func (a *Assembler) Emit32(word uint32) {
	a.buf.EmitUint32(word)
}

func (a *Assembler) emit(word uint32) {
	a.buf.EmitUint32(word)
}

func (a *Assembler) requireISA(f features.ISAFeatures, what string) {
	if !a.opts.ISA.Has(f) {
		panic(fmt.Sprintf("BUG: %s needs extension %s, target has %s", what, f.Extensions(), a.opts.ISA.Extensions()))
	}
}

func (a *Assembler) requireXThead(what string) {
	if !a.opts.XThead {
		panic(fmt.Sprintf("BUG: %s needs the XThead vendor extension", what))
	}
}

func x(r XReg) uint32 {
	if r >= numXRegs {
		panic(fmt.Sprintf("BUG: invalid integer register %s", r))
	}
	return uint32(r)
}

func f(r FReg) uint32 {
	if r >= numFRegs {
		panic(fmt.Sprintf("BUG: invalid float register %s", r))
	}
	return uint32(r)
}

// RV64I base instructions.

// Lui emits lui rd, imm20.
func (a *Assembler) Lui(rd XReg, imm int32) {
	a.emit(encodeU(imm20(imm), x(rd), opLUI))
}

// Auipc emits auipc rd, imm20.
func (a *Assembler) Auipc(rd XReg, imm int32) {
	a.emit(encodeU(imm20(imm), x(rd), opAUIPC))
}

// Jal emits jal rd, offset with a PC-relative byte offset.
func (a *Assembler) Jal(rd XReg, offset int32) {
	a.emit(encodeJ(jumpOffset(offset), x(rd), opJAL))
}

// Jalr emits jalr rd, offset(rs1).
func (a *Assembler) Jalr(rd, rs1 XReg, offset int32) {
	a.emit(encodeI(imm12(offset), x(rs1), 0b000, x(rd), opJALR))
}

func (a *Assembler) branchImm(funct3 uint32, rs1, rs2 XReg, offset int32) {
	a.emit(encodeB(branchOffset(offset), x(rs2), x(rs1), funct3, opBranch))
}

// Beq emits beq rs1, rs2, offset.
func (a *Assembler) Beq(rs1, rs2 XReg, offset int32) { a.branchImm(0b000, rs1, rs2, offset) }

// Bne emits bne rs1, rs2, offset.
func (a *Assembler) Bne(rs1, rs2 XReg, offset int32) { a.branchImm(0b001, rs1, rs2, offset) }

// Blt emits blt rs1, rs2, offset.
func (a *Assembler) Blt(rs1, rs2 XReg, offset int32) { a.branchImm(0b100, rs1, rs2, offset) }

// Bge emits bge rs1, rs2, offset.
func (a *Assembler) Bge(rs1, rs2 XReg, offset int32) { a.branchImm(0b101, rs1, rs2, offset) }

// Bltu emits bltu rs1, rs2, offset.
func (a *Assembler) Bltu(rs1, rs2 XReg, offset int32) { a.branchImm(0b110, rs1, rs2, offset) }

// Bgeu emits bgeu rs1, rs2, offset.
func (a *Assembler) Bgeu(rs1, rs2 XReg, offset int32) { a.branchImm(0b111, rs1, rs2, offset) }

func (a *Assembler) load(funct3 uint32, rd, rs1 XReg, offset int32) {
	a.emit(encodeI(imm12(offset), x(rs1), funct3, x(rd), opLoad))
}

func (a *Assembler) Lb(rd, rs1 XReg, offset int32)  { a.load(0b000, rd, rs1, offset) }
func (a *Assembler) Lh(rd, rs1 XReg, offset int32)  { a.load(0b001, rd, rs1, offset) }
func (a *Assembler) Lw(rd, rs1 XReg, offset int32)  { a.load(0b010, rd, rs1, offset) }
func (a *Assembler) Ld(rd, rs1 XReg, offset int32)  { a.load(0b011, rd, rs1, offset) }
func (a *Assembler) Lbu(rd, rs1 XReg, offset int32) { a.load(0b100, rd, rs1, offset) }
func (a *Assembler) Lhu(rd, rs1 XReg, offset int32) { a.load(0b101, rd, rs1, offset) }
func (a *Assembler) Lwu(rd, rs1 XReg, offset int32) { a.load(0b110, rd, rs1, offset) }

func (a *Assembler) store(funct3 uint32, rs2, rs1 XReg, offset int32) {
	a.emit(encodeS(imm12(offset), x(rs2), x(rs1), funct3, opStore))
}

// Sb stores the low byte of rs2 at offset(rs1). Sh, Sw and Sd are the wider forms.
func (a *Assembler) Sb(rs2, rs1 XReg, offset int32) { a.store(0b000, rs2, rs1, offset) }
func (a *Assembler) Sh(rs2, rs1 XReg, offset int32) { a.store(0b001, rs2, rs1, offset) }
func (a *Assembler) Sw(rs2, rs1 XReg, offset int32) { a.store(0b010, rs2, rs1, offset) }
func (a *Assembler) Sd(rs2, rs1 XReg, offset int32) { a.store(0b011, rs2, rs1, offset) }

func (a *Assembler) opImm(funct3 uint32, rd, rs1 XReg, imm int32) {
	a.emit(encodeI(imm12(imm), x(rs1), funct3, x(rd), opOpImm))
}

func (a *Assembler) Addi(rd, rs1 XReg, imm int32)  { a.opImm(0b000, rd, rs1, imm) }
func (a *Assembler) Slti(rd, rs1 XReg, imm int32)  { a.opImm(0b010, rd, rs1, imm) }
func (a *Assembler) Sltiu(rd, rs1 XReg, imm int32) { a.opImm(0b011, rd, rs1, imm) }
func (a *Assembler) Xori(rd, rs1 XReg, imm int32)  { a.opImm(0b100, rd, rs1, imm) }
func (a *Assembler) Ori(rd, rs1 XReg, imm int32)   { a.opImm(0b110, rd, rs1, imm) }
func (a *Assembler) Andi(rd, rs1 XReg, imm int32)  { a.opImm(0b111, rd, rs1, imm) }

// Slli emits slli rd, rs1, shamt with a 6-bit shift amount.
func (a *Assembler) Slli(rd, rs1 XReg, shamt uint32) {
	a.emit(encodeI6(0b000000, shamt, x(rs1), 0b001, x(rd), opOpImm))
}

// Srli emits srli rd, rs1, shamt with a 6-bit shift amount.
func (a *Assembler) Srli(rd, rs1 XReg, shamt uint32) {
	a.emit(encodeI6(0b000000, shamt, x(rs1), 0b101, x(rd), opOpImm))
}

// Srai emits srai rd, rs1, shamt with a 6-bit shift amount.
func (a *Assembler) Srai(rd, rs1 XReg, shamt uint32) {
	a.emit(encodeI6(0b010000, shamt, x(rs1), 0b101, x(rd), opOpImm))
}

func (a *Assembler) op(funct7, funct3 uint32, rd, rs1, rs2 XReg) {
	a.emit(encodeR(funct7, x(rs2), x(rs1), funct3, x(rd), opOp))
}

func (a *Assembler) Add(rd, rs1, rs2 XReg)  { a.op(0b0000000, 0b000, rd, rs1, rs2) }
func (a *Assembler) Sub(rd, rs1, rs2 XReg)  { a.op(0b0100000, 0b000, rd, rs1, rs2) }
func (a *Assembler) Sll(rd, rs1, rs2 XReg)  { a.op(0b0000000, 0b001, rd, rs1, rs2) }
func (a *Assembler) Slt(rd, rs1, rs2 XReg)  { a.op(0b0000000, 0b010, rd, rs1, rs2) }
func (a *Assembler) Sltu(rd, rs1, rs2 XReg) { a.op(0b0000000, 0b011, rd, rs1, rs2) }
func (a *Assembler) Xor(rd, rs1, rs2 XReg)  { a.op(0b0000000, 0b100, rd, rs1, rs2) }
func (a *Assembler) Srl(rd, rs1, rs2 XReg)  { a.op(0b0000000, 0b101, rd, rs1, rs2) }
func (a *Assembler) Sra(rd, rs1, rs2 XReg)  { a.op(0b0100000, 0b101, rd, rs1, rs2) }
func (a *Assembler) Or(rd, rs1, rs2 XReg)   { a.op(0b0000000, 0b110, rd, rs1, rs2) }
func (a *Assembler) And(rd, rs1, rs2 XReg)  { a.op(0b0000000, 0b111, rd, rs1, rs2) }

// Addiw emits addiw rd, rs1, imm.
func (a *Assembler) Addiw(rd, rs1 XReg, imm int32) {
	a.emit(encodeI(imm12(imm), x(rs1), 0b000, x(rd), opOpImm32))
}

func (a *Assembler) shiftW(funct7, funct3 uint32, rd, rs1 XReg, shamt uint32) {
	checkField("shamt", 5, shamt)
	a.emit(encodeR(funct7, shamt, x(rs1), funct3, x(rd), opOpImm32))
}

func (a *Assembler) Slliw(rd, rs1 XReg, shamt uint32) { a.shiftW(0b0000000, 0b001, rd, rs1, shamt) }
func (a *Assembler) Srliw(rd, rs1 XReg, shamt uint32) { a.shiftW(0b0000000, 0b101, rd, rs1, shamt) }
func (a *Assembler) Sraiw(rd, rs1 XReg, shamt uint32) { a.shiftW(0b0100000, 0b101, rd, rs1, shamt) }

func (a *Assembler) op32(funct7, funct3 uint32, rd, rs1, rs2 XReg) {
	a.emit(encodeR(funct7, x(rs2), x(rs1), funct3, x(rd), opOp32))
}

func (a *Assembler) Addw(rd, rs1, rs2 XReg) { a.op32(0b0000000, 0b000, rd, rs1, rs2) }
func (a *Assembler) Subw(rd, rs1, rs2 XReg) { a.op32(0b0100000, 0b000, rd, rs1, rs2) }
func (a *Assembler) Sllw(rd, rs1, rs2 XReg) { a.op32(0b0000000, 0b001, rd, rs1, rs2) }
func (a *Assembler) Srlw(rd, rs1, rs2 XReg) { a.op32(0b0000000, 0b101, rd, rs1, rs2) }
func (a *Assembler) Sraw(rd, rs1, rs2 XReg) { a.op32(0b0100000, 0b101, rd, rs1, rs2) }

// Fence emits fence pred, succ. Each set is a 4-bit mask of IORW.
func (a *Assembler) Fence(pred, succ uint32) {
	checkField("fence pred", 4, pred)
	checkField("fence succ", 4, succ)
	a.emit(encodeI(pred<<4|succ, 0, 0b000, 0, opMiscMem))
}

// FenceI emits fence.i.
func (a *Assembler) FenceI() {
	a.emit(encodeI(0, 0, 0b001, 0, opMiscMem))
}

// Ecall emits ecall.
func (a *Assembler) Ecall() {
	a.emit(encodeI(0, 0, 0b000, 0, opSystem))
}

// Ebreak emits ebreak.
func (a *Assembler) Ebreak() {
	a.emit(encodeI(1, 0, 0b000, 0, opSystem))
}

func (a *Assembler) csr(funct3 uint32, rd XReg, csr uint32, rs1 uint32) {
	a.emit(encodeI(csr, rs1, funct3, x(rd), opSystem))
}

func (a *Assembler) Csrrw(rd XReg, csr uint32, rs1 XReg) { a.csr(0b001, rd, csr, x(rs1)) }
func (a *Assembler) Csrrs(rd XReg, csr uint32, rs1 XReg) { a.csr(0b010, rd, csr, x(rs1)) }
func (a *Assembler) Csrrc(rd XReg, csr uint32, rs1 XReg) { a.csr(0b011, rd, csr, x(rs1)) }

func (a *Assembler) Csrrwi(rd XReg, csr uint32, uimm5 uint32) {
	checkField("csr uimm", 5, uimm5)
	a.csr(0b101, rd, csr, uimm5)
}

func (a *Assembler) Csrrsi(rd XReg, csr uint32, uimm5 uint32) {
	checkField("csr uimm", 5, uimm5)
	a.csr(0b110, rd, csr, uimm5)
}

func (a *Assembler) Csrrci(rd XReg, csr uint32, uimm5 uint32) {
	checkField("csr uimm", 5, uimm5)
	a.csr(0b111, rd, csr, uimm5)
}

// RV64M multiplication and division.

func (a *Assembler) mulDiv(funct3 uint32, rd, rs1, rs2 XReg) {
	a.requireISA(features.ISAM, "multiplication")
	a.op(0b0000001, funct3, rd, rs1, rs2)
}

func (a *Assembler) mulDivW(funct3 uint32, rd, rs1, rs2 XReg) {
	a.requireISA(features.ISAM, "multiplication")
	a.op32(0b0000001, funct3, rd, rs1, rs2)
}

func (a *Assembler) Mul(rd, rs1, rs2 XReg)    { a.mulDiv(0b000, rd, rs1, rs2) }
func (a *Assembler) Mulh(rd, rs1, rs2 XReg)   { a.mulDiv(0b001, rd, rs1, rs2) }
func (a *Assembler) Mulhsu(rd, rs1, rs2 XReg) { a.mulDiv(0b010, rd, rs1, rs2) }
func (a *Assembler) Mulhu(rd, rs1, rs2 XReg)  { a.mulDiv(0b011, rd, rs1, rs2) }
func (a *Assembler) Div(rd, rs1, rs2 XReg)    { a.mulDiv(0b100, rd, rs1, rs2) }
func (a *Assembler) Divu(rd, rs1, rs2 XReg)   { a.mulDiv(0b101, rd, rs1, rs2) }
func (a *Assembler) Rem(rd, rs1, rs2 XReg)    { a.mulDiv(0b110, rd, rs1, rs2) }
func (a *Assembler) Remu(rd, rs1, rs2 XReg)   { a.mulDiv(0b111, rd, rs1, rs2) }
func (a *Assembler) Mulw(rd, rs1, rs2 XReg)   { a.mulDivW(0b000, rd, rs1, rs2) }
func (a *Assembler) Divw(rd, rs1, rs2 XReg)   { a.mulDivW(0b100, rd, rs1, rs2) }
func (a *Assembler) Divuw(rd, rs1, rs2 XReg)  { a.mulDivW(0b101, rd, rs1, rs2) }
func (a *Assembler) Remw(rd, rs1, rs2 XReg)   { a.mulDivW(0b110, rd, rs1, rs2) }
func (a *Assembler) Remuw(rd, rs1, rs2 XReg)  { a.mulDivW(0b111, rd, rs1, rs2) }

// RV64A atomics.

// AMOOrder holds the aq and rl bits of an atomic instruction.
type AMOOrder uint32

const (
	AMORelaxed AMOOrder = 0b00
	AMORelease AMOOrder = 0b01
	AMOAcquire AMOOrder = 0b10
	AMOAcqRel  AMOOrder = 0b11
)

const (
	amoWidthW uint32 = 0b010
	amoWidthD uint32 = 0b011
)

// The 5-bit AMO operation lands in the rs3 slot and the ordering bits in the
// funct2 slot of the R4 layout.
func (a *Assembler) amo(funct5, width uint32, rd, rs2, rs1 XReg, order AMOOrder) {
	a.requireISA(features.ISAA, "atomic")
	a.emit(encodeR4(funct5, uint32(order), x(rs2), x(rs1), width, x(rd), opAMO))
}

func (a *Assembler) LrW(rd, rs1 XReg, o AMOOrder)            { a.amo(0b00010, amoWidthW, rd, ZERO, rs1, o) }
func (a *Assembler) ScW(rd, rs2, rs1 XReg, o AMOOrder)       { a.amo(0b00011, amoWidthW, rd, rs2, rs1, o) }
func (a *Assembler) AmoSwapW(rd, rs2, rs1 XReg, o AMOOrder)  { a.amo(0b00001, amoWidthW, rd, rs2, rs1, o) }
func (a *Assembler) AmoAddW(rd, rs2, rs1 XReg, o AMOOrder)   { a.amo(0b00000, amoWidthW, rd, rs2, rs1, o) }
func (a *Assembler) AmoXorW(rd, rs2, rs1 XReg, o AMOOrder)   { a.amo(0b00100, amoWidthW, rd, rs2, rs1, o) }
func (a *Assembler) AmoAndW(rd, rs2, rs1 XReg, o AMOOrder)   { a.amo(0b01100, amoWidthW, rd, rs2, rs1, o) }
func (a *Assembler) AmoOrW(rd, rs2, rs1 XReg, o AMOOrder)    { a.amo(0b01000, amoWidthW, rd, rs2, rs1, o) }
func (a *Assembler) AmoMinW(rd, rs2, rs1 XReg, o AMOOrder)   { a.amo(0b10000, amoWidthW, rd, rs2, rs1, o) }
func (a *Assembler) AmoMaxW(rd, rs2, rs1 XReg, o AMOOrder)   { a.amo(0b10100, amoWidthW, rd, rs2, rs1, o) }
func (a *Assembler) AmoMinuW(rd, rs2, rs1 XReg, o AMOOrder)  { a.amo(0b11000, amoWidthW, rd, rs2, rs1, o) }
func (a *Assembler) AmoMaxuW(rd, rs2, rs1 XReg, o AMOOrder)  { a.amo(0b11100, amoWidthW, rd, rs2, rs1, o) }
func (a *Assembler) LrD(rd, rs1 XReg, o AMOOrder)            { a.amo(0b00010, amoWidthD, rd, ZERO, rs1, o) }
func (a *Assembler) ScD(rd, rs2, rs1 XReg, o AMOOrder)       { a.amo(0b00011, amoWidthD, rd, rs2, rs1, o) }
func (a *Assembler) AmoSwapD(rd, rs2, rs1 XReg, o AMOOrder)  { a.amo(0b00001, amoWidthD, rd, rs2, rs1, o) }
func (a *Assembler) AmoAddD(rd, rs2, rs1 XReg, o AMOOrder)   { a.amo(0b00000, amoWidthD, rd, rs2, rs1, o) }
func (a *Assembler) AmoXorD(rd, rs2, rs1 XReg, o AMOOrder)   { a.amo(0b00100, amoWidthD, rd, rs2, rs1, o) }
func (a *Assembler) AmoAndD(rd, rs2, rs1 XReg, o AMOOrder)   { a.amo(0b01100, amoWidthD, rd, rs2, rs1, o) }
func (a *Assembler) AmoOrD(rd, rs2, rs1 XReg, o AMOOrder)    { a.amo(0b01000, amoWidthD, rd, rs2, rs1, o) }
func (a *Assembler) AmoMinD(rd, rs2, rs1 XReg, o AMOOrder)   { a.amo(0b10000, amoWidthD, rd, rs2, rs1, o) }
func (a *Assembler) AmoMaxD(rd, rs2, rs1 XReg, o AMOOrder)   { a.amo(0b10100, amoWidthD, rd, rs2, rs1, o) }
func (a *Assembler) AmoMinuD(rd, rs2, rs1 XReg, o AMOOrder)  { a.amo(0b11000, amoWidthD, rd, rs2, rs1, o) }
func (a *Assembler) AmoMaxuD(rd, rs2, rs1 XReg, o AMOOrder)  { a.amo(0b11100, amoWidthD, rd, rs2, rs1, o) }

// RV64F and RV64D.

func (a *Assembler) Flw(rd FReg, rs1 XReg, offset int32) {
	a.requireISA(features.ISAF, "flw")
	a.emit(encodeI(imm12(offset), x(rs1), 0b010, f(rd), opLoadFP))
}

func (a *Assembler) Fld(rd FReg, rs1 XReg, offset int32) {
	a.requireISA(features.ISAD, "fld")
	a.emit(encodeI(imm12(offset), x(rs1), 0b011, f(rd), opLoadFP))
}

func (a *Assembler) Fsw(rs2 FReg, rs1 XReg, offset int32) {
	a.requireISA(features.ISAF, "fsw")
	a.emit(encodeS(imm12(offset), f(rs2), x(rs1), 0b010, opStoreFP))
}

func (a *Assembler) Fsd(rs2 FReg, rs1 XReg, offset int32) {
	a.requireISA(features.ISAD, "fsd")
	a.emit(encodeS(imm12(offset), f(rs2), x(rs1), 0b011, opStoreFP))
}

func (a *Assembler) fmtISA(format uint32) {
	if format == fmtD {
		a.requireISA(features.ISAD, "double precision")
	} else {
		a.requireISA(features.ISAF, "single precision")
	}
}

func (a *Assembler) fused(opcode, format uint32, rd, rs1, rs2, rs3 FReg, rm RoundingMode) {
	a.fmtISA(format)
	a.emit(encodeR4(f(rs3), format, f(rs2), f(rs1), uint32(rm), f(rd), opcode))
}

func (a *Assembler) FmaddS(rd, rs1, rs2, rs3 FReg, rm RoundingMode) {
	a.fused(opMAdd, fmtS, rd, rs1, rs2, rs3, rm)
}

func (a *Assembler) FmsubS(rd, rs1, rs2, rs3 FReg, rm RoundingMode) {
	a.fused(opMSub, fmtS, rd, rs1, rs2, rs3, rm)
}

func (a *Assembler) FnmsubS(rd, rs1, rs2, rs3 FReg, rm RoundingMode) {
	a.fused(opNMSub, fmtS, rd, rs1, rs2, rs3, rm)
}

func (a *Assembler) FnmaddS(rd, rs1, rs2, rs3 FReg, rm RoundingMode) {
	a.fused(opNMAdd, fmtS, rd, rs1, rs2, rs3, rm)
}

func (a *Assembler) FmaddD(rd, rs1, rs2, rs3 FReg, rm RoundingMode) {
	a.fused(opMAdd, fmtD, rd, rs1, rs2, rs3, rm)
}

func (a *Assembler) FmsubD(rd, rs1, rs2, rs3 FReg, rm RoundingMode) {
	a.fused(opMSub, fmtD, rd, rs1, rs2, rs3, rm)
}

func (a *Assembler) FnmsubD(rd, rs1, rs2, rs3 FReg, rm RoundingMode) {
	a.fused(opNMSub, fmtD, rd, rs1, rs2, rs3, rm)
}

func (a *Assembler) FnmaddD(rd, rs1, rs2, rs3 FReg, rm RoundingMode) {
	a.fused(opNMAdd, fmtD, rd, rs1, rs2, rs3, rm)
}

// OP-FP funct5 values, bits [31:27].
const (
	fpAdd     uint32 = 0b00000
	fpSub     uint32 = 0b00001
	fpMul     uint32 = 0b00010
	fpDiv     uint32 = 0b00011
	fpSgnj    uint32 = 0b00100
	fpMinMax  uint32 = 0b00101
	fpCvtFF   uint32 = 0b01000
	fpSqrt    uint32 = 0b01011
	fpCmp     uint32 = 0b10100
	fpCvtIF   uint32 = 0b11000
	fpCvtFI   uint32 = 0b11010
	fpMvXF    uint32 = 0b11100
	fpMvFX    uint32 = 0b11110
	fpCvtW    uint32 = 0b00000
	fpCvtWU   uint32 = 0b00001
	fpCvtL    uint32 = 0b00010
	fpCvtLU   uint32 = 0b00011
	fpFunct3X uint32 = 0b000
)

func (a *Assembler) opFP(funct5, format, rs2, rs1, funct3, rd uint32) {
	a.fmtISA(format)
	a.emit(encodeR(funct5<<2|format, rs2, rs1, funct3, rd, opOpFP))
}

func (a *Assembler) FaddS(rd, rs1, rs2 FReg, rm RoundingMode) {
	a.opFP(fpAdd, fmtS, f(rs2), f(rs1), uint32(rm), f(rd))
}

func (a *Assembler) FsubS(rd, rs1, rs2 FReg, rm RoundingMode) {
	a.opFP(fpSub, fmtS, f(rs2), f(rs1), uint32(rm), f(rd))
}

func (a *Assembler) FmulS(rd, rs1, rs2 FReg, rm RoundingMode) {
	a.opFP(fpMul, fmtS, f(rs2), f(rs1), uint32(rm), f(rd))
}

func (a *Assembler) FdivS(rd, rs1, rs2 FReg, rm RoundingMode) {
	a.opFP(fpDiv, fmtS, f(rs2), f(rs1), uint32(rm), f(rd))
}

func (a *Assembler) FsqrtS(rd, rs1 FReg, rm RoundingMode) {
	a.opFP(fpSqrt, fmtS, 0, f(rs1), uint32(rm), f(rd))
}

func (a *Assembler) FaddD(rd, rs1, rs2 FReg, rm RoundingMode) {
	a.opFP(fpAdd, fmtD, f(rs2), f(rs1), uint32(rm), f(rd))
}

func (a *Assembler) FsubD(rd, rs1, rs2 FReg, rm RoundingMode) {
	a.opFP(fpSub, fmtD, f(rs2), f(rs1), uint32(rm), f(rd))
}

func (a *Assembler) FmulD(rd, rs1, rs2 FReg, rm RoundingMode) {
	a.opFP(fpMul, fmtD, f(rs2), f(rs1), uint32(rm), f(rd))
}

func (a *Assembler) FdivD(rd, rs1, rs2 FReg, rm RoundingMode) {
	a.opFP(fpDiv, fmtD, f(rs2), f(rs1), uint32(rm), f(rd))
}

func (a *Assembler) FsqrtD(rd, rs1 FReg, rm RoundingMode) {
	a.opFP(fpSqrt, fmtD, 0, f(rs1), uint32(rm), f(rd))
}

func (a *Assembler) FsgnjS(rd, rs1, rs2 FReg)  { a.opFP(fpSgnj, fmtS, f(rs2), f(rs1), 0b000, f(rd)) }
func (a *Assembler) FsgnjnS(rd, rs1, rs2 FReg) { a.opFP(fpSgnj, fmtS, f(rs2), f(rs1), 0b001, f(rd)) }
func (a *Assembler) FsgnjxS(rd, rs1, rs2 FReg) { a.opFP(fpSgnj, fmtS, f(rs2), f(rs1), 0b010, f(rd)) }
func (a *Assembler) FsgnjD(rd, rs1, rs2 FReg)  { a.opFP(fpSgnj, fmtD, f(rs2), f(rs1), 0b000, f(rd)) }
func (a *Assembler) FsgnjnD(rd, rs1, rs2 FReg) { a.opFP(fpSgnj, fmtD, f(rs2), f(rs1), 0b001, f(rd)) }
func (a *Assembler) FsgnjxD(rd, rs1, rs2 FReg) { a.opFP(fpSgnj, fmtD, f(rs2), f(rs1), 0b010, f(rd)) }

func (a *Assembler) FminS(rd, rs1, rs2 FReg) { a.opFP(fpMinMax, fmtS, f(rs2), f(rs1), 0b000, f(rd)) }
func (a *Assembler) FmaxS(rd, rs1, rs2 FReg) { a.opFP(fpMinMax, fmtS, f(rs2), f(rs1), 0b001, f(rd)) }
func (a *Assembler) FminD(rd, rs1, rs2 FReg) { a.opFP(fpMinMax, fmtD, f(rs2), f(rs1), 0b000, f(rd)) }
func (a *Assembler) FmaxD(rd, rs1, rs2 FReg) { a.opFP(fpMinMax, fmtD, f(rs2), f(rs1), 0b001, f(rd)) }

// FcvtSD converts a double to a single.
func (a *Assembler) FcvtSD(rd, rs1 FReg, rm RoundingMode) {
	a.opFP(fpCvtFF, fmtS, 0b00001, f(rs1), uint32(rm), f(rd))
}

// FcvtDS converts a single to a double.
func (a *Assembler) FcvtDS(rd, rs1 FReg, rm RoundingMode) {
	a.opFP(fpCvtFF, fmtD, 0b00000, f(rs1), uint32(rm), f(rd))
}

// Float to integer conversions.

func (a *Assembler) FcvtWS(rd XReg, rs1 FReg, rm RoundingMode) {
	a.opFP(fpCvtIF, fmtS, fpCvtW, f(rs1), uint32(rm), x(rd))
}

func (a *Assembler) FcvtWuS(rd XReg, rs1 FReg, rm RoundingMode) {
	a.opFP(fpCvtIF, fmtS, fpCvtWU, f(rs1), uint32(rm), x(rd))
}

func (a *Assembler) FcvtLS(rd XReg, rs1 FReg, rm RoundingMode) {
	a.opFP(fpCvtIF, fmtS, fpCvtL, f(rs1), uint32(rm), x(rd))
}

func (a *Assembler) FcvtLuS(rd XReg, rs1 FReg, rm RoundingMode) {
	a.opFP(fpCvtIF, fmtS, fpCvtLU, f(rs1), uint32(rm), x(rd))
}

func (a *Assembler) FcvtWD(rd XReg, rs1 FReg, rm RoundingMode) {
	a.opFP(fpCvtIF, fmtD, fpCvtW, f(rs1), uint32(rm), x(rd))
}

func (a *Assembler) FcvtWuD(rd XReg, rs1 FReg, rm RoundingMode) {
	a.opFP(fpCvtIF, fmtD, fpCvtWU, f(rs1), uint32(rm), x(rd))
}

func (a *Assembler) FcvtLD(rd XReg, rs1 FReg, rm RoundingMode) {
	a.opFP(fpCvtIF, fmtD, fpCvtL, f(rs1), uint32(rm), x(rd))
}

func (a *Assembler) FcvtLuD(rd XReg, rs1 FReg, rm RoundingMode) {
	a.opFP(fpCvtIF, fmtD, fpCvtLU, f(rs1), uint32(rm), x(rd))
}

// Integer to float conversions.

func (a *Assembler) FcvtSW(rd FReg, rs1 XReg, rm RoundingMode) {
	a.opFP(fpCvtFI, fmtS, fpCvtW, x(rs1), uint32(rm), f(rd))
}

func (a *Assembler) FcvtSWu(rd FReg, rs1 XReg, rm RoundingMode) {
	a.opFP(fpCvtFI, fmtS, fpCvtWU, x(rs1), uint32(rm), f(rd))
}

func (a *Assembler) FcvtSL(rd FReg, rs1 XReg, rm RoundingMode) {
	a.opFP(fpCvtFI, fmtS, fpCvtL, x(rs1), uint32(rm), f(rd))
}

func (a *Assembler) FcvtSLu(rd FReg, rs1 XReg, rm RoundingMode) {
	a.opFP(fpCvtFI, fmtS, fpCvtLU, x(rs1), uint32(rm), f(rd))
}

func (a *Assembler) FcvtDW(rd FReg, rs1 XReg, rm RoundingMode) {
	a.opFP(fpCvtFI, fmtD, fpCvtW, x(rs1), uint32(rm), f(rd))
}

func (a *Assembler) FcvtDWu(rd FReg, rs1 XReg, rm RoundingMode) {
	a.opFP(fpCvtFI, fmtD, fpCvtWU, x(rs1), uint32(rm), f(rd))
}

func (a *Assembler) FcvtDL(rd FReg, rs1 XReg, rm RoundingMode) {
	a.opFP(fpCvtFI, fmtD, fpCvtL, x(rs1), uint32(rm), f(rd))
}

func (a *Assembler) FcvtDLu(rd FReg, rs1 XReg, rm RoundingMode) {
	a.opFP(fpCvtFI, fmtD, fpCvtLU, x(rs1), uint32(rm), f(rd))
}

// Moves between the register files and classification.

func (a *Assembler) FmvXW(rd XReg, rs1 FReg)  { a.opFP(fpMvXF, fmtS, 0, f(rs1), fpFunct3X, x(rd)) }
func (a *Assembler) FmvWX(rd FReg, rs1 XReg)  { a.opFP(fpMvFX, fmtS, 0, x(rs1), fpFunct3X, f(rd)) }
func (a *Assembler) FmvXD(rd XReg, rs1 FReg)  { a.opFP(fpMvXF, fmtD, 0, f(rs1), fpFunct3X, x(rd)) }
func (a *Assembler) FmvDX(rd FReg, rs1 XReg)  { a.opFP(fpMvFX, fmtD, 0, x(rs1), fpFunct3X, f(rd)) }
func (a *Assembler) FclassS(rd XReg, rs1 FReg) { a.opFP(fpMvXF, fmtS, 0, f(rs1), 0b001, x(rd)) }
func (a *Assembler) FclassD(rd XReg, rs1 FReg) { a.opFP(fpMvXF, fmtD, 0, f(rs1), 0b001, x(rd)) }

// Comparisons write 0 or 1 to rd.

func (a *Assembler) FeqS(rd XReg, rs1, rs2 FReg) { a.opFP(fpCmp, fmtS, f(rs2), f(rs1), 0b010, x(rd)) }
func (a *Assembler) FltS(rd XReg, rs1, rs2 FReg) { a.opFP(fpCmp, fmtS, f(rs2), f(rs1), 0b001, x(rd)) }
func (a *Assembler) FleS(rd XReg, rs1, rs2 FReg) { a.opFP(fpCmp, fmtS, f(rs2), f(rs1), 0b000, x(rd)) }
func (a *Assembler) FeqD(rd XReg, rs1, rs2 FReg) { a.opFP(fpCmp, fmtD, f(rs2), f(rs1), 0b010, x(rd)) }
func (a *Assembler) FltD(rd XReg, rs1, rs2 FReg) { a.opFP(fpCmp, fmtD, f(rs2), f(rs1), 0b001, x(rd)) }
func (a *Assembler) FleD(rd XReg, rs1, rs2 FReg) { a.opFP(fpCmp, fmtD, f(rs2), f(rs1), 0b000, x(rd)) }
