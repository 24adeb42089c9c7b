package asm_riscv64

import (
	"fmt"
	"strings"
)

// Format is the encoding format of a decoded instruction.
type Format byte

const (
	FormatR Format = iota
	FormatR4
	FormatI
	FormatS
	FormatB
	FormatU
	FormatJ
	// FormatVendor covers the custom-0 XThead encodings.
	FormatVendor
)

// operand flags telling which register fields name floating point registers.
const (
	fpRd = 1 << iota
	fpRs1
	fpRs2
	fpRs3
)

// Inst is a decoded instruction.
type Inst struct {
	Word     uint32
	Mnemonic string
	Format   Format
	Rd       uint8
	Rs1      uint8
	Rs2      uint8
	Rs3      uint8
	// Imm is the sign extended immediate, the shift amount, or the byte offset
	// of control transfers. For vendor bit field extraction it is the lsb and
	// Rs2 the msb.
	Imm int32
	// Order holds the aq and rl bits of atomics.
	Order AMOOrder
	// RM is the rounding mode of floating point arithmetic.
	RM RoundingMode

	fpRegs uint8
	hasRM  bool
}

func bits(w uint32, hi, lo uint) uint32 {
	return (w >> lo) & (1<<(hi-lo+1) - 1)
}

func signExtend(v uint32, width uint) int32 {
	shift := 32 - width
	return int32(v<<shift) >> shift
}

func immI(w uint32) int32 { return int32(w) >> 20 }

func immS(w uint32) int32 {
	return signExtend(bits(w, 31, 25)<<5|bits(w, 11, 7), 12)
}

func immB(w uint32) int32 {
	return signExtend(bits(w, 31, 31)<<12|bits(w, 7, 7)<<11|bits(w, 30, 25)<<5|bits(w, 11, 8)<<1, 13)
}

func immU(w uint32) int32 { return int32(w) >> 12 }

func immJ(w uint32) int32 {
	return signExtend(bits(w, 31, 31)<<20|bits(w, 19, 12)<<12|bits(w, 20, 20)<<11|bits(w, 30, 21)<<1, 21)
}

var (
	loadNames    = [8]string{"lb", "lh", "lw", "ld", "lbu", "lhu", "lwu", ""}
	storeNames   = [8]string{"sb", "sh", "sw", "sd", "", "", "", ""}
	branchNames  = [8]string{"beq", "bne", "", "", "blt", "bge", "bltu", "bgeu"}
	opImmNames   = [8]string{"addi", "", "slti", "sltiu", "xori", "", "ori", "andi"}
	opNames      = [8]string{"add", "sll", "slt", "sltu", "xor", "srl", "or", "and"}
	mulDivNames  = [8]string{"mul", "mulh", "mulhsu", "mulhu", "div", "divu", "rem", "remu"}
	op32Names    = [8]string{"addw", "sllw", "", "", "", "srlw", "", ""}
	mulDiv32Name = [8]string{"mulw", "", "", "", "divw", "divuw", "remw", "remuw"}
	csrNames     = [8]string{"", "csrrw", "csrrs", "csrrc", "", "csrrwi", "csrrsi", "csrrci"}
	amoNames     = map[uint32]string{
		0b00010: "lr", 0b00011: "sc", 0b00001: "amoswap", 0b00000: "amoadd",
		0b00100: "amoxor", 0b01100: "amoand", 0b01000: "amoor", 0b10000: "amomin",
		0b10100: "amomax", 0b11000: "amominu", 0b11100: "amomaxu",
	}
	cvtIntSuffixes = [4]string{"w", "wu", "l", "lu"}
)

// Decode decodes one 32-bit instruction word.
func Decode(w uint32) (Inst, error) {
	in := Inst{
		Word: w,
		Rd:   uint8(bits(w, 11, 7)),
		Rs1:  uint8(bits(w, 19, 15)),
		Rs2:  uint8(bits(w, 24, 20)),
	}
	funct3 := bits(w, 14, 12)
	funct7 := bits(w, 31, 25)
	fail := func() (Inst, error) {
		return Inst{Word: w}, fmt.Errorf("unknown instruction %#08x", w)
	}
	named := func(name string, f Format) (Inst, error) {
		if name == "" {
			return fail()
		}
		in.Mnemonic, in.Format = name, f
		return in, nil
	}

	switch opcode := bits(w, 6, 0); opcode {
	case opLUI, opAUIPC:
		in.Imm = immU(w)
		if opcode == opLUI {
			return named("lui", FormatU)
		}
		return named("auipc", FormatU)
	case opJAL:
		in.Imm = immJ(w)
		return named("jal", FormatJ)
	case opJALR:
		in.Imm = immI(w)
		return named("jalr", FormatI)
	case opBranch:
		in.Imm = immB(w)
		return named(branchNames[funct3], FormatB)
	case opLoad:
		in.Imm = immI(w)
		return named(loadNames[funct3], FormatI)
	case opStore:
		in.Imm = immS(w)
		return named(storeNames[funct3], FormatS)
	case opLoadFP, opStoreFP:
		var name string
		switch {
		case opcode == opLoadFP && funct3 == 0b010:
			name = "flw"
		case opcode == opLoadFP && funct3 == 0b011:
			name = "fld"
		case opcode == opStoreFP && funct3 == 0b010:
			name = "fsw"
		case opcode == opStoreFP && funct3 == 0b011:
			name = "fsd"
		}
		if opcode == opLoadFP {
			in.Imm, in.fpRegs = immI(w), fpRd
			return named(name, FormatI)
		}
		in.Imm, in.fpRegs = immS(w), fpRs2
		return named(name, FormatS)
	case opOpImm:
		switch funct3 {
		case 0b001:
			in.Imm = int32(bits(w, 25, 20))
			if bits(w, 31, 26) != 0 {
				return fail()
			}
			return named("slli", FormatI)
		case 0b101:
			in.Imm = int32(bits(w, 25, 20))
			switch bits(w, 31, 26) {
			case 0b000000:
				return named("srli", FormatI)
			case 0b010000:
				return named("srai", FormatI)
			}
			return fail()
		}
		in.Imm = immI(w)
		return named(opImmNames[funct3], FormatI)
	case opOpImm32:
		switch funct3 {
		case 0b000:
			in.Imm = immI(w)
			return named("addiw", FormatI)
		case 0b001:
			in.Imm = int32(bits(w, 24, 20))
			return named("slliw", FormatI)
		case 0b101:
			in.Imm = int32(bits(w, 24, 20))
			if funct7 == 0b0100000 {
				return named("sraiw", FormatI)
			}
			return named("srliw", FormatI)
		}
		return fail()
	case opOp:
		switch funct7 {
		case 0b0000000:
			return named(opNames[funct3], FormatR)
		case 0b0000001:
			return named(mulDivNames[funct3], FormatR)
		case 0b0100000:
			switch funct3 {
			case 0b000:
				return named("sub", FormatR)
			case 0b101:
				return named("sra", FormatR)
			}
		}
		return fail()
	case opOp32:
		switch funct7 {
		case 0b0000000:
			return named(op32Names[funct3], FormatR)
		case 0b0000001:
			return named(mulDiv32Name[funct3], FormatR)
		case 0b0100000:
			switch funct3 {
			case 0b000:
				return named("subw", FormatR)
			case 0b101:
				return named("sraw", FormatR)
			}
		}
		return fail()
	case opMiscMem:
		switch funct3 {
		case 0b000:
			in.Imm = immI(w)
			return named("fence", FormatI)
		case 0b001:
			return named("fence.i", FormatI)
		}
		return fail()
	case opSystem:
		if funct3 == 0 {
			switch w {
			case 0x00000073:
				return named("ecall", FormatI)
			case 0x00100073:
				return named("ebreak", FormatI)
			}
			return fail()
		}
		in.Imm = int32(bits(w, 31, 20))
		return named(csrNames[funct3], FormatI)
	case opAMO:
		base, ok := amoNames[bits(w, 31, 27)]
		if !ok {
			return fail()
		}
		in.Order = AMOOrder(bits(w, 26, 25))
		switch funct3 {
		case amoWidthW:
			return named(base+".w", FormatR)
		case amoWidthD:
			return named(base+".d", FormatR)
		}
		return fail()
	case opMAdd, opMSub, opNMSub, opNMAdd:
		in.Rs3 = uint8(bits(w, 31, 27))
		in.RM, in.hasRM = RoundingMode(funct3), true
		in.fpRegs = fpRd | fpRs1 | fpRs2 | fpRs3
		name := map[uint32]string{opMAdd: "fmadd", opMSub: "fmsub", opNMSub: "fnmsub", opNMAdd: "fnmadd"}[opcode]
		return named(name+fpSuffix(bits(w, 26, 25)), FormatR4)
	case opOpFP:
		return decodeOpFP(in, w)
	case opCustom0:
		return decodeVendor(in, w)
	}
	return fail()
}

func fpSuffix(format uint32) string {
	switch format {
	case fmtS:
		return ".s"
	case fmtD:
		return ".d"
	default:
		return ".?"
	}
}

func decodeOpFP(in Inst, w uint32) (Inst, error) {
	funct5, format, funct3 := bits(w, 31, 27), bits(w, 26, 25), bits(w, 14, 12)
	if format != fmtS && format != fmtD {
		return Inst{Word: w}, fmt.Errorf("unknown floating point format in %#08x", w)
	}
	sfx := fpSuffix(format)
	in.Format = FormatR
	in.fpRegs = fpRd | fpRs1 | fpRs2
	withRM := func(name string) (Inst, error) {
		in.Mnemonic, in.RM, in.hasRM = name, RoundingMode(funct3), true
		return in, nil
	}
	pick := func(names ...string) (Inst, error) {
		if int(funct3) >= len(names) || names[funct3] == "" {
			return Inst{Word: w}, fmt.Errorf("unknown floating point instruction %#08x", w)
		}
		in.Mnemonic = names[funct3]
		return in, nil
	}

	switch funct5 {
	case fpAdd:
		return withRM("fadd" + sfx)
	case fpSub:
		return withRM("fsub" + sfx)
	case fpMul:
		return withRM("fmul" + sfx)
	case fpDiv:
		return withRM("fdiv" + sfx)
	case fpSqrt:
		in.fpRegs = fpRd | fpRs1
		return withRM("fsqrt" + sfx)
	case fpSgnj:
		return pick("fsgnj"+sfx, "fsgnjn"+sfx, "fsgnjx"+sfx)
	case fpMinMax:
		return pick("fmin"+sfx, "fmax"+sfx)
	case fpCvtFF:
		in.fpRegs = fpRd | fpRs1
		if format == fmtS {
			return withRM("fcvt.s.d")
		}
		return withRM("fcvt.d.s")
	case fpCmp:
		in.fpRegs = fpRs1 | fpRs2
		return pick("fle"+sfx, "flt"+sfx, "feq"+sfx)
	case fpCvtIF:
		in.fpRegs = fpRs1
		return withRM("fcvt." + cvtIntSuffixes[in.Rs2&3] + sfx)
	case fpCvtFI:
		in.fpRegs = fpRd
		return withRM("fcvt" + sfx + "." + cvtIntSuffixes[in.Rs2&3])
	case fpMvXF:
		in.fpRegs = fpRs1
		if format == fmtS {
			return pick("fmv.x.w", "fclass.s")
		}
		return pick("fmv.x.d", "fclass.d")
	case fpMvFX:
		in.fpRegs = fpRd
		if format == fmtS {
			return pick("fmv.w.x")
		}
		return pick("fmv.d.x")
	}
	return Inst{Word: w}, fmt.Errorf("unknown floating point instruction %#08x", w)
}

func decodeVendor(in Inst, w uint32) (Inst, error) {
	funct5, funct2, funct3 := bits(w, 31, 27), bits(w, 26, 25), bits(w, 14, 12)
	in.Format = FormatVendor
	name := ""
	switch funct3 {
	case 0b001:
		switch {
		case funct5 == 0b00000:
			name, in.Imm = "th.addsl", int32(funct2)
		case funct5 == 0b00100 && funct2 == 0b00:
			name = "th.mula"
		case funct5 == 0b00100 && funct2 == 0b01:
			name = "th.muls"
		case funct5 == 0b01000 && funct2 == 0b00:
			name = "th.mveqz"
		case funct5 == 0b01000 && funct2 == 0b01:
			name = "th.mvnez"
		case funct5 == 0b00010 && bits(w, 26, 26) == 0:
			name, in.Imm = "th.srri", int32(bits(w, 25, 20))
		case funct5 == 0b00010 && funct2 == 0b10:
			name, in.Imm = "th.srriw", int32(bits(w, 24, 20))
		case funct5 == 0b10000 && funct2 == 0b10:
			name = "th.ff0"
		case funct5 == 0b10000 && funct2 == 0b11:
			name = "th.ff1"
		case funct5 == 0b10000 && funct2 == 0b01:
			name = "th.rev"
		case funct5 == 0b10010 && funct2 == 0b00:
			name = "th.revw"
		case funct5 == 0b10001 && bits(w, 26, 26) == 0:
			name, in.Imm = "th.tst", int32(bits(w, 25, 20))
		}
	case 0b010, 0b011:
		name = "th.ext"
		if funct3 == 0b011 {
			name = "th.extu"
		}
		in.Rs2, in.Imm = uint8(bits(w, 31, 26)), int32(bits(w, 25, 20))
	case 0b100, 0b101:
		prefix := "th.lr"
		if funct3 == 0b101 {
			prefix = "th.sr"
		}
		in.Imm = int32(funct2)
		switch funct5 {
		case thIndexedB:
			name = prefix + "b"
		case thIndexedBU:
			name = prefix + "bu"
		case thIndexedW:
			name = prefix + "w"
		case thIndexedWU:
			name = prefix + "wu"
		case thIndexedD:
			name = prefix + "d"
		}
	}
	if name == "" {
		return Inst{Word: w}, fmt.Errorf("unknown vendor instruction %#08x", w)
	}
	in.Mnemonic = name
	return in, nil
}

func (in Inst) reg(which uint8, field uint8) string {
	if in.fpRegs&which != 0 {
		return FReg(field).String()
	}
	return XReg(field).String()
}

// String returns the instruction in GNU assembler syntax.
func (in Inst) String() string {
	rd, rs1, rs2 := in.reg(fpRd, in.Rd), in.reg(fpRs1, in.Rs1), in.reg(fpRs2, in.Rs2)
	m := in.Mnemonic
	var ops []string
	switch {
	case m == "ecall" || m == "ebreak" || m == "fence.i":
	case m == "fence":
		ops = []string{fenceSet(uint32(in.Imm) >> 4), fenceSet(uint32(in.Imm) & 0xf)}
	case in.Format == FormatU:
		ops = []string{rd, fmt.Sprintf("%#x", uint32(in.Imm)&0xfffff)}
	case in.Format == FormatJ:
		ops = []string{rd, fmt.Sprint(in.Imm)}
	case in.Format == FormatB:
		ops = []string{rs1, rs2, fmt.Sprint(in.Imm)}
	case in.Format == FormatS:
		ops = []string{rs2, fmt.Sprintf("%d(%s)", in.Imm, rs1)}
	case m == "jalr" || strings.HasPrefix(m, "l") && in.Format == FormatI || m == "flw" || m == "fld":
		ops = []string{rd, fmt.Sprintf("%d(%s)", in.Imm, rs1)}
	case strings.HasPrefix(m, "csrr"):
		src := rs1
		if strings.HasSuffix(m, "i") {
			src = fmt.Sprint(in.Rs1)
		}
		ops = []string{rd, fmt.Sprintf("%#x", in.Imm), src}
	case in.Format == FormatI:
		ops = []string{rd, rs1, fmt.Sprint(in.Imm)}
	case strings.HasPrefix(m, "lr."):
		ops = []string{rd, "(" + rs1 + ")"}
	case strings.HasPrefix(m, "sc.") || strings.HasPrefix(m, "amo"):
		ops = []string{rd, rs2, "(" + rs1 + ")"}
	case in.Format == FormatR4:
		ops = []string{rd, rs1, rs2, in.reg(fpRs3, in.Rs3)}
	case in.Format == FormatVendor:
		ops = in.vendorOperands(rd, rs1, rs2)
	case strings.HasPrefix(m, "fsqrt") || strings.HasPrefix(m, "fcvt") ||
		strings.HasPrefix(m, "fmv.") || strings.HasPrefix(m, "fclass"):
		ops = []string{rd, rs1}
	default:
		ops = []string{rd, rs1, rs2}
	}
	if in.Format == FormatR && in.Order != AMORelaxed {
		m += [...]string{"", ".rl", ".aq", ".aqrl"}[in.Order]
	}
	if in.hasRM && in.RM != DYN {
		ops = append(ops, in.RM.String())
	}
	if len(ops) == 0 {
		return m
	}
	return m + " " + strings.Join(ops, ", ")
}

func (in Inst) vendorOperands(rd, rs1, rs2 string) []string {
	switch in.Mnemonic {
	case "th.addsl":
		return []string{rd, rs1, rs2, fmt.Sprint(in.Imm)}
	case "th.srri", "th.srriw", "th.tst":
		return []string{rd, rs1, fmt.Sprint(in.Imm)}
	case "th.ext", "th.extu":
		return []string{rd, rs1, fmt.Sprint(in.Rs2), fmt.Sprint(in.Imm)}
	case "th.ff0", "th.ff1", "th.rev", "th.revw":
		return []string{rd, rs1}
	}
	if strings.HasPrefix(in.Mnemonic, "th.lr") || strings.HasPrefix(in.Mnemonic, "th.sr") {
		return []string{rd, rs1, rs2, fmt.Sprint(in.Imm)}
	}
	return []string{rd, rs1, rs2}
}

func fenceSet(s uint32) string {
	var sb strings.Builder
	for i, c := range "iorw" {
		if s&(8>>i) != 0 {
			sb.WriteRune(c)
		}
	}
	if sb.Len() == 0 {
		return "0"
	}
	return sb.String()
}
