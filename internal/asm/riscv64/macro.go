package asm_riscv64

import "fmt"

// Pseudo instructions.

// Nop emits addi zero, zero, 0.
func (a *Assembler) Nop() { a.emit(nopInstruction) }

// Mv copies rs to rd.
func (a *Assembler) Mv(rd, rs XReg) { a.Or(rd, rs, ZERO) }

// Clear sets rd to zero.
func (a *Assembler) Clear(rd XReg) { a.Or(rd, ZERO, ZERO) }

func (a *Assembler) Not(rd, rs XReg)  { a.Xori(rd, rs, -1) }
func (a *Assembler) Neg(rd, rs XReg)  { a.Sub(rd, ZERO, rs) }
func (a *Assembler) NegW(rd, rs XReg) { a.Subw(rd, ZERO, rs) }

func (a *Assembler) SextB(rd, rs XReg) {
	a.Slli(rd, rs, 56)
	a.Srai(rd, rd, 56)
}

func (a *Assembler) SextH(rd, rs XReg) {
	a.Slli(rd, rs, 48)
	a.Srai(rd, rd, 48)
}

func (a *Assembler) SextW(rd, rs XReg) { a.Addiw(rd, rs, 0) }

func (a *Assembler) ZextB(rd, rs XReg) { a.Andi(rd, rs, 0xff) }

func (a *Assembler) ZextH(rd, rs XReg) {
	a.Slli(rd, rs, 48)
	a.Srli(rd, rd, 48)
}

func (a *Assembler) ZextW(rd, rs XReg) {
	a.Slli(rd, rs, 32)
	a.Srli(rd, rd, 32)
}

func (a *Assembler) Seqz(rd, rs XReg) { a.Sltiu(rd, rs, 1) }
func (a *Assembler) Snez(rd, rs XReg) { a.Sltu(rd, ZERO, rs) }
func (a *Assembler) Sltz(rd, rs XReg) { a.Slt(rd, rs, ZERO) }
func (a *Assembler) Sgtz(rd, rs XReg) { a.Slt(rd, ZERO, rs) }

// Jr jumps to the address in rs.
func (a *Assembler) Jr(rs XReg) { a.Jalr(ZERO, rs, 0) }

// Jalrr calls the address in rs, linking RA.
func (a *Assembler) Jalrr(rs XReg) { a.Jalr(RA, rs, 0) }

// Ret returns to RA.
func (a *Assembler) Ret() { a.Jalr(ZERO, RA, 0) }

func (a *Assembler) FmvS(rd, rs FReg)  { a.FsgnjS(rd, rs, rs) }
func (a *Assembler) FabsS(rd, rs FReg) { a.FsgnjxS(rd, rs, rs) }
func (a *Assembler) FnegS(rd, rs FReg) { a.FsgnjnS(rd, rs, rs) }
func (a *Assembler) FmvD(rd, rs FReg)  { a.FsgnjD(rd, rs, rs) }
func (a *Assembler) FabsD(rd, rs FReg) { a.FsgnjxD(rd, rs, rs) }
func (a *Assembler) FnegD(rd, rs FReg) { a.FsgnjnD(rd, rs, rs) }

// Constants.

// LoadConst32 loads a sign extended 32-bit constant with at most lui+addiw.
func (a *Assembler) LoadConst32(rd XReg, v int32) {
	if isInt(12, int64(v)) {
		a.Addi(rd, ZERO, v)
		return
	}
	lo := v << 20 >> 20
	hi := int32(uint32(v-lo) >> 12)
	a.Lui(rd, hi)
	if lo != 0 {
		a.Addiw(rd, rd, lo)
	}
}

// LoadConst64 loads a 64-bit constant. Values outside the 32-bit range are
// composed of two 32-bit halves and clobber TMP2.
func (a *Assembler) LoadConst64(rd XReg, v int64) {
	if isInt(32, v) {
		a.LoadConst32(rd, int32(v))
		return
	}
	if rd == TMP2 {
		panic("BUG: LoadConst64 into its own scratch register")
	}
	a.LoadConst32(TMP2, int32(v))
	a.LoadConst32(rd, int32(v>>32))
	a.Slli(rd, rd, 32)
	a.ZextW(TMP2, TMP2)
	a.Or(rd, rd, TMP2)
}

// Li is LoadConst64.
func (a *Assembler) Li(rd XReg, v int64) { a.LoadConst64(rd, v) }

// Addi64 adds a 64-bit immediate, materializing it in AT when it does not
// fit in 12 bits.
func (a *Assembler) Addi64(rd, rs XReg, v int64) {
	if isInt(12, v) {
		a.Addi(rd, rs, int32(v))
		return
	}
	if rs == AT {
		panic("BUG: Addi64 with AT as the source of a large immediate")
	}
	a.LoadConst64(AT, v)
	a.Add(rd, rs, AT)
}

// Bit manipulation with an XThead fast path.

// Srri rotates rs right by n bits. Without XThead it clobbers TMP.
func (a *Assembler) Srri(rd, rs XReg, n uint32) {
	checkField("rotate amount", 6, n)
	if a.opts.XThead {
		a.ThSrri(rd, rs, n)
		return
	}
	if n == 0 {
		a.Mv(rd, rs)
		return
	}
	if rs == TMP || rd == TMP {
		panic("BUG: Srri on its scratch register")
	}
	a.Srli(TMP, rs, n)
	a.Slli(rd, rs, 64-n)
	a.Or(rd, rd, TMP)
}

// Srriw rotates the low word of rs right by n bits and sign extends the result.
func (a *Assembler) Srriw(rd, rs XReg, n uint32) {
	checkField("rotate amount", 5, n)
	if a.opts.XThead {
		a.ThSrriw(rd, rs, n)
		return
	}
	if n == 0 {
		a.SextW(rd, rs)
		return
	}
	if rs == TMP || rd == TMP {
		panic("BUG: Srriw on its scratch register")
	}
	a.Srliw(TMP, rs, n)
	a.Slliw(rd, rs, 32-n)
	a.Or(rd, rd, TMP)
}

func checkBitField(pos, size uint32) {
	if size == 0 || pos+size > 64 {
		panic(fmt.Sprintf("BUG: bit field of %d bits at %d", size, pos))
	}
}

// Extb extracts size bits of rs starting at pos, sign extended.
func (a *Assembler) Extb(rd, rs XReg, pos, size uint32) {
	checkBitField(pos, size)
	if a.opts.XThead {
		a.ThExt(rd, rs, pos+size-1, pos)
		return
	}
	a.Slli(rd, rs, 64-pos-size)
	a.Srai(rd, rd, 64-size)
}

// Extub extracts size bits of rs starting at pos, zero extended.
func (a *Assembler) Extub(rd, rs XReg, pos, size uint32) {
	checkBitField(pos, size)
	if a.opts.XThead {
		a.ThExtu(rd, rs, pos+size-1, pos)
		return
	}
	a.Slli(rd, rs, 64-pos-size)
	a.Srli(rd, rd, 64-size)
}

// Seleqz sets rd to rs if rt is zero, otherwise to zero.
func (a *Assembler) Seleqz(rd, rs, rt XReg) { a.sel(rd, rs, rt, true) }

// Selnez sets rd to rs if rt is not zero, otherwise to zero.
func (a *Assembler) Selnez(rd, rs, rt XReg) { a.sel(rd, rs, rt, false) }

func (a *Assembler) sel(rd, rs, rt XReg, ifZero bool) {
	if rt == rd {
		a.Mv(TMP2, rt)
		rt = TMP2
	} else if a.opts.XThead {
		a.Clear(rd)
		if ifZero {
			a.ThMveqz(rd, rs, rt)
		} else {
			a.ThMvnez(rd, rs, rt)
		}
		return
	}
	a.Mv(rd, rs)
	// Skip the clearing move.
	if ifZero {
		a.Beq(rt, ZERO, 2*wordSize)
	} else {
		a.Bne(rt, ZERO, 2*wordSize)
	}
	a.Clear(rd)
}

// Atomics returning 1 on success, the inverse of sc.

// Ll emits lr.w rd, (base).
func (a *Assembler) Ll(rd, base XReg) { a.LrW(rd, base, AMORelaxed) }

// Lld emits lr.d rd, (base).
func (a *Assembler) Lld(rd, base XReg) { a.LrD(rd, base, AMORelaxed) }

// Sc stores the word in rt to (base) and sets rt to 1 on success, 0 on failure.
func (a *Assembler) Sc(rt, base XReg) {
	a.ScW(rt, rt, base, AMORelaxed)
	a.Xori(rt, rt, 1)
}

// Scd stores the doubleword in rt to (base) and sets rt to 1 on success, 0 on failure.
func (a *Assembler) Scd(rt, base XReg) {
	a.ScD(rt, rt, base, AMORelaxed)
	a.Xori(rt, rt, 1)
}

// Floating point.

// fpFormat selects the single or double flavor of the instructions used by
// the floating point macros.
type fpFormat struct {
	double bool
}

var (
	fpSingle = fpFormat{}
	fpDouble = fpFormat{double: true}
)

func (a *Assembler) feq(ff fpFormat, rd XReg, rs1, rs2 FReg) {
	if ff.double {
		a.FeqD(rd, rs1, rs2)
	} else {
		a.FeqS(rd, rs1, rs2)
	}
}

func (a *Assembler) flt(ff fpFormat, rd XReg, rs1, rs2 FReg) {
	if ff.double {
		a.FltD(rd, rs1, rs2)
	} else {
		a.FltS(rd, rs1, rs2)
	}
}

func (a *Assembler) fle(ff fpFormat, rd XReg, rs1, rs2 FReg) {
	if ff.double {
		a.FleD(rd, rs1, rs2)
	} else {
		a.FleS(rd, rs1, rs2)
	}
}

func (a *Assembler) fclass(ff fpFormat, rd XReg, rs FReg) {
	if ff.double {
		a.FclassD(rd, rs)
	} else {
		a.FclassS(rd, rs)
	}
}

func (a *Assembler) fmv(ff fpFormat, rd, rs FReg) {
	if ff.double {
		a.FmvD(rd, rs)
	} else {
		a.FmvS(rd, rs)
	}
}

// trunc converts fs to an integer rounding towards zero, producing 0 for NaN.
func (a *Assembler) trunc(rd XReg, fs FReg, ff fpFormat, cvt func(XReg, FReg, RoundingMode)) {
	if rd == TMP {
		panic("BUG: truncation into its scratch register")
	}
	// feq of a value with itself is 0 only for NaN.
	if a.opts.XThead {
		a.feq(ff, TMP, fs, fs)
		cvt(rd, fs, RTZ)
		a.ThMveqz(rd, ZERO, TMP)
		return
	}
	done := NewLabel()
	a.Clear(rd)
	a.feq(ff, TMP, fs, fs)
	a.Beqz(TMP, done)
	cvt(rd, fs, RTZ)
	a.Bind(done)
}

func (a *Assembler) TruncWS(rd XReg, fs FReg) { a.trunc(rd, fs, fpSingle, a.FcvtWS) }
func (a *Assembler) TruncLS(rd XReg, fs FReg) { a.trunc(rd, fs, fpSingle, a.FcvtLS) }
func (a *Assembler) TruncWD(rd XReg, fs FReg) { a.trunc(rd, fs, fpDouble, a.FcvtWD) }
func (a *Assembler) TruncLD(rd XReg, fs FReg) { a.trunc(rd, fs, fpDouble, a.FcvtLD) }

// fjMaxMin computes the minimum or maximum with NaN propagation: if either
// operand is NaN the result is that NaN.
func (a *Assembler) fjMaxMin(ff fpFormat, fd, fs, ft FReg, isMin bool) {
	fsNaN, ftNaN, done := NewLabel(), NewLabel(), NewLabel()
	a.feq(ff, TMP, fs, fs)
	a.Beqz(TMP, fsNaN)
	a.feq(ff, TMP, ft, ft)
	a.Beqz(TMP, ftNaN)

	switch {
	case ff.double && isMin:
		a.FminD(fd, fs, ft)
	case ff.double:
		a.FmaxD(fd, fs, ft)
	case isMin:
		a.FminS(fd, fs, ft)
	default:
		a.FmaxS(fd, fs, ft)
	}
	a.J(done)

	a.Bind(fsNaN)
	a.fmv(ff, fd, fs)
	a.J(done)

	a.Bind(ftNaN)
	a.fmv(ff, fd, ft)

	a.Bind(done)
}

func (a *Assembler) FJMaxMinS(fd, fs, ft FReg, isMin bool) { a.fjMaxMin(fpSingle, fd, fs, ft, isMin) }
func (a *Assembler) FJMaxMinD(fd, fs, ft FReg, isMin bool) { a.fjMaxMin(fpDouble, fd, fs, ft, isMin) }

// fcmpUnordered sets rd to unorderedResult if fs or ft is NaN and runs
// ordered otherwise. FCLASS sets bit 8 for signaling and bit 9 for quiet NaNs.
func (a *Assembler) fcmpUnordered(ff fpFormat, rd XReg, fs, ft FReg, unorderedResult int32, ordered func()) {
	if rd == TMP {
		panic("BUG: float comparison into its scratch register")
	}
	unordered, done := NewLabel(), NewLabel()
	a.fclass(ff, TMP, fs)
	a.Srli(TMP, TMP, 8)
	a.Bnez(TMP, unordered)
	a.fclass(ff, TMP, ft)
	a.Srli(TMP, TMP, 8)
	a.Bnez(TMP, unordered)
	ordered()
	a.J(done)
	a.Bind(unordered)
	a.Addi(rd, ZERO, unorderedResult)
	a.Bind(done)
}

func (a *Assembler) cmpUn(ff fpFormat, rd XReg, fs, ft FReg) {
	a.fcmpUnordered(ff, rd, fs, ft, 1, func() { a.Clear(rd) })
}

func (a *Assembler) cmpOr(ff fpFormat, rd XReg, fs, ft FReg) {
	a.cmpUn(ff, rd, fs, ft)
	a.Sltiu(rd, rd, 1)
}

func (a *Assembler) cmpNe(ff fpFormat, rd XReg, fs, ft FReg, unorderedResult int32) {
	a.fcmpUnordered(ff, rd, fs, ft, unorderedResult, func() {
		a.feq(ff, rd, fs, ft)
		a.Xori(rd, rd, 1)
	})
}

// CmpUnS sets rd to 1 if either operand is NaN.
func (a *Assembler) CmpUnS(rd XReg, fs, ft FReg) { a.cmpUn(fpSingle, rd, fs, ft) }

// CmpOrS sets rd to 1 if neither operand is NaN.
func (a *Assembler) CmpOrS(rd XReg, fs, ft FReg) { a.cmpOr(fpSingle, rd, fs, ft) }

func (a *Assembler) CmpEqS(rd XReg, fs, ft FReg) { a.FeqS(rd, fs, ft) }
func (a *Assembler) CmpLtS(rd XReg, fs, ft FReg) { a.FltS(rd, fs, ft) }
func (a *Assembler) CmpLeS(rd XReg, fs, ft FReg) { a.FleS(rd, fs, ft) }

// CmpNeS is the ordered not-equal: 0 if either operand is NaN.
func (a *Assembler) CmpNeS(rd XReg, fs, ft FReg) { a.cmpNe(fpSingle, rd, fs, ft, 0) }

// The unordered comparisons are also true if either operand is NaN.

func (a *Assembler) CmpUeqS(rd XReg, fs, ft FReg) {
	a.fcmpUnordered(fpSingle, rd, fs, ft, 1, func() { a.feq(fpSingle, rd, fs, ft) })
}

func (a *Assembler) CmpUltS(rd XReg, fs, ft FReg) {
	a.fcmpUnordered(fpSingle, rd, fs, ft, 1, func() { a.flt(fpSingle, rd, fs, ft) })
}

func (a *Assembler) CmpUleS(rd XReg, fs, ft FReg) {
	a.fcmpUnordered(fpSingle, rd, fs, ft, 1, func() { a.fle(fpSingle, rd, fs, ft) })
}

func (a *Assembler) CmpUneS(rd XReg, fs, ft FReg) { a.cmpNe(fpSingle, rd, fs, ft, 1) }

func (a *Assembler) CmpUnD(rd XReg, fs, ft FReg) { a.cmpUn(fpDouble, rd, fs, ft) }
func (a *Assembler) CmpOrD(rd XReg, fs, ft FReg) { a.cmpOr(fpDouble, rd, fs, ft) }
func (a *Assembler) CmpEqD(rd XReg, fs, ft FReg) { a.FeqD(rd, fs, ft) }
func (a *Assembler) CmpLtD(rd XReg, fs, ft FReg) { a.FltD(rd, fs, ft) }
func (a *Assembler) CmpLeD(rd XReg, fs, ft FReg) { a.FleD(rd, fs, ft) }
func (a *Assembler) CmpNeD(rd XReg, fs, ft FReg) { a.cmpNe(fpDouble, rd, fs, ft, 0) }

func (a *Assembler) CmpUeqD(rd XReg, fs, ft FReg) {
	a.fcmpUnordered(fpDouble, rd, fs, ft, 1, func() { a.feq(fpDouble, rd, fs, ft) })
}

func (a *Assembler) CmpUltD(rd XReg, fs, ft FReg) {
	a.fcmpUnordered(fpDouble, rd, fs, ft, 1, func() { a.flt(fpDouble, rd, fs, ft) })
}

func (a *Assembler) CmpUleD(rd XReg, fs, ft FReg) {
	a.fcmpUnordered(fpDouble, rd, fs, ft, 1, func() { a.fle(fpDouble, rd, fs, ft) })
}

func (a *Assembler) CmpUneD(rd XReg, fs, ft FReg) { a.cmpNe(fpDouble, rd, fs, ft, 1) }

// Memory accesses with arbitrary 32-bit offsets.

// LoadOperandType selects the width and extension of LoadFromOffset.
type LoadOperandType byte

const (
	LoadSignedByte LoadOperandType = iota
	LoadUnsignedByte
	LoadSignedHalfword
	LoadUnsignedHalfword
	LoadSignedWord
	LoadUnsignedWordOperand
	LoadDoublewordOperand
)

// StoreOperandType selects the width of StoreToOffset.
type StoreOperandType byte

const (
	StoreByte StoreOperandType = iota
	StoreHalfword
	StoreWord
	StoreDoubleword
)

const (
	// maxSimpleAdjustment is the largest 12-bit immediate that is a multiple of 8.
	maxSimpleAdjustment = 0x7f8
)

// AdjustBaseAndOffset rewrites base and offset so that offset fits in 12 bits,
// computing the new base in AT. For doubleword accesses at an offset that is
// not 8-byte aligned, offset+4 fits as well so the access can be split. The
// alignment of offset modulo 8 is preserved.
func (a *Assembler) AdjustBaseAndOffset(base XReg, offset int32, isDoubleword bool) (XReg, int32) {
	if base == AT {
		panic("BUG: AdjustBaseAndOffset with AT as the base")
	}
	twoAccesses := isDoubleword && offset%doublewordSize != 0
	if isInt(12, int64(offset)) && (!twoAccesses || isInt(12, int64(offset)+wordSize)) {
		return base, offset
	}

	misalignment := offset & (doublewordSize - 1)
	switch {
	case 0 <= offset && offset <= 2*maxSimpleAdjustment:
		a.Addi(AT, base, maxSimpleAdjustment)
		offset -= maxSimpleAdjustment
	case -2*maxSimpleAdjustment <= offset && offset < 0:
		a.Addi(AT, base, -maxSimpleAdjustment)
		offset += maxSimpleAdjustment
	default:
		low := offset << 20 >> 20
		high := int32(uint32(offset-low) >> 12)
		a.Lui(AT, high)
		a.Add(AT, base, AT)
		if twoAccesses && !isInt(12, int64(low)+wordSize) {
			a.Addi(AT, AT, doublewordSize)
			low -= doublewordSize
		}
		offset = low
	}

	if !isInt(12, int64(offset)) || (twoAccesses && !isInt(12, int64(offset)+wordSize)) {
		panic(fmt.Sprintf("BUG: adjusted offset %d out of range", offset))
	}
	if offset&(doublewordSize-1) != misalignment {
		panic(fmt.Sprintf("BUG: adjusted offset %d changed alignment", offset))
	}
	return AT, offset
}

// LoadFromOffset loads from base+offset for any 32-bit offset.
func (a *Assembler) LoadFromOffset(typ LoadOperandType, rd, base XReg, offset int32) {
	base, offset = a.AdjustBaseAndOffset(base, offset, typ == LoadDoublewordOperand)
	switch typ {
	case LoadSignedByte:
		a.Lb(rd, base, offset)
	case LoadUnsignedByte:
		a.Lbu(rd, base, offset)
	case LoadSignedHalfword:
		a.Lh(rd, base, offset)
	case LoadUnsignedHalfword:
		a.Lhu(rd, base, offset)
	case LoadSignedWord:
		a.Lw(rd, base, offset)
	case LoadUnsignedWordOperand:
		a.Lwu(rd, base, offset)
	case LoadDoublewordOperand:
		a.Ld(rd, base, offset)
	default:
		panic(fmt.Sprintf("BUG: unexpected load operand type %d", typ))
	}
}

// StoreToOffset stores rs to base+offset for any 32-bit offset.
func (a *Assembler) StoreToOffset(typ StoreOperandType, rs, base XReg, offset int32) {
	if rs == AT {
		panic("BUG: StoreToOffset of AT")
	}
	base, offset = a.AdjustBaseAndOffset(base, offset, typ == StoreDoubleword)
	switch typ {
	case StoreByte:
		a.Sb(rs, base, offset)
	case StoreHalfword:
		a.Sh(rs, base, offset)
	case StoreWord:
		a.Sw(rs, base, offset)
	case StoreDoubleword:
		a.Sd(rs, base, offset)
	default:
		panic(fmt.Sprintf("BUG: unexpected store operand type %d", typ))
	}
}

// LoadFpuFromOffset loads a single (LoadSignedWord) or a double
// (LoadDoublewordOperand) from base+offset.
func (a *Assembler) LoadFpuFromOffset(typ LoadOperandType, fd FReg, base XReg, offset int32) {
	base, offset = a.AdjustBaseAndOffset(base, offset, typ == LoadDoublewordOperand)
	switch typ {
	case LoadSignedWord:
		a.Flw(fd, base, offset)
	case LoadDoublewordOperand:
		a.Fld(fd, base, offset)
	default:
		panic(fmt.Sprintf("unimplemented: floating point load of operand type %d", typ))
	}
}

// StoreFpuToOffset stores a single (StoreWord) or a double (StoreDoubleword) to base+offset.
func (a *Assembler) StoreFpuToOffset(typ StoreOperandType, fs FReg, base XReg, offset int32) {
	base, offset = a.AdjustBaseAndOffset(base, offset, typ == StoreDoubleword)
	switch typ {
	case StoreWord:
		a.Fsw(fs, base, offset)
	case StoreDoubleword:
		a.Fsd(fs, base, offset)
	default:
		panic(fmt.Sprintf("unimplemented: floating point store of operand type %d", typ))
	}
}

// MemoryBarrier emits a full fence.
func (a *Assembler) MemoryBarrier() {
	const rw = 0b0011
	a.Fence(rw, rw)
}
