package asm_riscv64

import "fmt"

// Condition is the comparison a conditional branch performs.
type Condition byte

const (
	CondLT Condition = iota
	CondGE
	CondLE
	CondGT
	CondLTZ
	CondGEZ
	CondLEZ
	CondGTZ
	CondEQ
	CondNE
	CondEQZ
	CondNEZ
	CondLTU
	CondGEU
	// CondUncond is always true.
	CondUncond
)

var conditionNames = [...]string{
	CondLT: "lt", CondGE: "ge", CondLE: "le", CondGT: "gt",
	CondLTZ: "ltz", CondGEZ: "gez", CondLEZ: "lez", CondGTZ: "gtz",
	CondEQ: "eq", CondNE: "ne", CondEQZ: "eqz", CondNEZ: "nez",
	CondLTU: "ltu", CondGEU: "geu", CondUncond: "uncond",
}

// String implements fmt.Stringer.
func (c Condition) String() string {
	if int(c) < len(conditionNames) {
		return conditionNames[c]
	}
	return fmt.Sprintf("Condition(%d)", c)
}

// Opposite returns the negated condition.
func (c Condition) Opposite() Condition {
	switch c {
	case CondLT:
		return CondGE
	case CondGE:
		return CondLT
	case CondLE:
		return CondGT
	case CondGT:
		return CondLE
	case CondLTZ:
		return CondGEZ
	case CondGEZ:
		return CondLTZ
	case CondLEZ:
		return CondGTZ
	case CondGTZ:
		return CondLEZ
	case CondEQ:
		return CondNE
	case CondNE:
		return CondEQ
	case CondEQZ:
		return CondNEZ
	case CondNEZ:
		return CondEQZ
	case CondLTU:
		return CondGEU
	case CondGEU:
		return CondLTU
	default:
		panic(fmt.Sprintf("BUG: condition %s has no opposite", c))
	}
}

// comparesWithZero is true for the conditions with an implicit zero operand.
func (c Condition) comparesWithZero() bool {
	switch c {
	case CondLTZ, CondGEZ, CondLEZ, CondGTZ, CondEQZ, CondNEZ:
		return true
	default:
		return false
	}
}

// isNop reports whether the branch can never be taken because both operands are the same register.
func isNop(c Condition, lhs, rhs XReg) bool {
	switch c {
	case CondLT, CondGT, CondNE, CondLTU:
		return lhs == rhs
	default:
		return false
	}
}

// isUncond reports whether the branch is always taken.
func isUncond(c Condition, lhs, rhs XReg) bool {
	switch c {
	case CondUncond:
		return true
	case CondGE, CondLE, CondEQ, CondGEU:
		return lhs == rhs
	default:
		return false
	}
}

type branchKind byte

const (
	// Short branches which are promoted to long ones when out of range.
	branchKindUncond branchKind = iota
	branchKindCond
	branchKindCall
	// Short branches which never promote.
	branchKindBareUncond
	branchKindBareCond
	branchKindBareCall
	// auipc + addi.
	branchKindLabel
	// auipc + lw, lwu or ld.
	branchKindLiteral
	branchKindLiteralUnsigned
	branchKindLiteralLong
	// Long branches.
	branchKindLongUncond
	branchKindLongCond
	branchKindLongCall
)

var branchKindNames = [...]string{
	branchKindUncond:          "uncond",
	branchKindCond:            "cond",
	branchKindCall:            "call",
	branchKindBareUncond:      "bare uncond",
	branchKindBareCond:        "bare cond",
	branchKindBareCall:        "bare call",
	branchKindLabel:           "label",
	branchKindLiteral:         "literal",
	branchKindLiteralUnsigned: "literal unsigned",
	branchKindLiteralLong:     "literal long",
	branchKindLongUncond:      "long uncond",
	branchKindLongCond:        "long cond",
	branchKindLongCall:        "long call",
}

// String implements fmt.Stringer.
func (k branchKind) String() string {
	return branchKindNames[k]
}

// branchInfo describes the instruction sequence of a branch kind.
type branchInfo struct {
	// length is the number of instructions.
	length uint32
	// instrOffset is the index of the instruction the offset is relative to.
	instrOffset uint32
	// pcOrigin is the PC-relative origin in instructions after instrOffset.
	pcOrigin uint32
	// offsetBits is the width of the encodable offset.
	offsetBits uint
	// offsetShift is the number of low offset bits dropped by the encoding.
	offsetShift uint
}

const (
	offset13 uint = 13
	offset21 uint = 21
	offset32 uint = 32
)

var branchInfos = [...]branchInfo{
	branchKindUncond:          {1, 0, 0, offset21, 0},
	branchKindCond:            {1, 0, 0, offset13, 0},
	branchKindCall:            {1, 0, 0, offset21, 0},
	branchKindBareUncond:      {1, 0, 0, offset21, 0},
	branchKindBareCond:        {1, 0, 0, offset13, 0},
	branchKindBareCall:        {1, 0, 0, offset21, 0},
	branchKindLabel:           {2, 0, 0, offset32, 0},
	branchKindLiteral:         {2, 0, 0, offset32, 0},
	branchKindLiteralUnsigned: {2, 0, 0, offset32, 0},
	branchKindLiteralLong:     {2, 0, 0, offset32, 0},
	branchKindLongUncond:      {2, 0, 0, offset32, 0},
	branchKindLongCond:        {3, 1, 0, offset32, 0},
	branchKindLongCall:        {2, 0, 0, offset32, 0},
}

const (
	// unresolved is the target of a branch whose label is not bound yet.
	unresolved uint32 = 0xffffffff
	// maxBranchLength bounds the instruction count of any branch sequence.
	maxBranchLength = 32
	// maxBranchSize inflates distances so that growing composite branches
	// between a branch and its target never invalidate a size decision.
	maxBranchSize = maxBranchLength * wordSize
)

// branch is one control transfer site, label address load or literal load.
type branch struct {
	oldLocation uint32
	location    uint32
	// oldTarget is the target in the coordinates of the unpromoted code.
	oldTarget uint32
	target    uint32
	// lhs is the destination register of label and literal loads.
	lhs, rhs  XReg
	condition Condition
	kind      branchKind
	oldKind   branchKind
	// next links to the previously created branch to the same unbound label.
	next int
}

// String implements fmt.Stringer.
func (b *branch) String() string {
	target := "unresolved"
	if b.isResolved() {
		target = fmt.Sprintf("%#x", b.target)
	}
	return fmt.Sprintf("%s %s %s,%s at %#x -> %s", b.kind, b.condition, b.lhs, b.rhs, b.location, target)
}

// offsetSizeNeeded returns the offset width needed to reach target from
// location, assuming the shortest encoding for unresolved targets.
func offsetSizeNeeded(location, target uint32) uint {
	if target == unresolved {
		return offset13
	}
	distance := int64(target) - int64(location)
	if distance >= 0 {
		distance += maxBranchSize
	} else {
		distance -= maxBranchSize
	}
	return exactOffsetSize(distance)
}

func exactOffsetSize(distance int64) uint {
	switch {
	case isInt(offset13, distance):
		return offset13
	case isInt(offset21, distance):
		return offset21
	default:
		return offset32
	}
}

func newUncondBranch(location, target uint32, isCall, isBare bool) branch {
	b := branch{
		oldLocation: location,
		location:    location,
		oldTarget:   target,
		target:      target,
		lhs:         ZERO,
		rhs:         ZERO,
		condition:   CondUncond,
	}
	switch {
	case isCall && isBare:
		b.initializeKind(branchKindBareCall)
	case isCall:
		b.initializeKind(branchKindCall)
	case isBare:
		b.initializeKind(branchKindBareCond)
	default:
		b.initializeKind(branchKindCond)
	}
	return b
}

func newCondBranch(location, target uint32, cond Condition, lhs, rhs XReg, isBare bool) branch {
	switch {
	case cond == CondUncond:
		panic("BUG: conditional branch with the uncond condition")
	case cond.comparesWithZero():
		if lhs == ZERO || rhs != ZERO {
			panic(fmt.Sprintf("BUG: %s branch needs a non-zero lhs and a zero rhs, got %s,%s", cond, lhs, rhs))
		}
	default:
		if lhs == ZERO || rhs == ZERO {
			panic(fmt.Sprintf("BUG: %s branch with a zero operand %s,%s", cond, lhs, rhs))
		}
	}
	if isNop(cond, lhs, rhs) {
		panic(fmt.Sprintf("BUG: %s branch on %s,%s is never taken", cond, lhs, rhs))
	}
	b := branch{
		oldLocation: location,
		location:    location,
		oldTarget:   target,
		target:      target,
		lhs:         lhs,
		rhs:         rhs,
		condition:   cond,
	}
	if isUncond(cond, lhs, rhs) {
		b.condition = CondUncond
	}
	if isBare {
		b.initializeKind(branchKindBareCond)
	} else {
		b.initializeKind(branchKindCond)
	}
	return b
}

func newLoadBranch(location, target uint32, rd XReg, kind branchKind) branch {
	if rd == ZERO {
		panic("BUG: label or literal load into zero")
	}
	b := branch{
		oldLocation: location,
		location:    location,
		oldTarget:   target,
		target:      target,
		lhs:         rd,
		rhs:         ZERO,
		condition:   CondUncond,
	}
	b.initializeKind(kind)
	return b
}

func (b *branch) initializeKind(initial branchKind) {
	needed := offsetSizeNeeded(b.location, b.target)
	shortOrLong := func(short, long branchKind) branchKind {
		if needed <= branchInfos[short].offsetBits {
			return short
		}
		return long
	}
	switch initial {
	case branchKindLabel, branchKindLiteral, branchKindLiteralUnsigned, branchKindLiteralLong:
		b.kind = initial
	case branchKindCall:
		b.kind = shortOrLong(branchKindCall, branchKindLongCall)
	case branchKindCond:
		if b.condition == CondUncond {
			b.kind = shortOrLong(branchKindUncond, branchKindLongUncond)
		} else {
			b.kind = shortOrLong(branchKindCond, branchKindLongCond)
		}
	case branchKindBareCall:
		b.kind = branchKindBareCall
		b.checkBareRange()
	case branchKindBareCond:
		if b.condition == CondUncond {
			b.kind = branchKindBareUncond
		} else {
			b.kind = branchKindBareCond
		}
		b.checkBareRange()
	default:
		panic(fmt.Sprintf("BUG: unexpected initial branch kind %s", initial))
	}
	b.oldKind = b.kind
}

// checkBareRange panics if a resolved bare branch cannot reach its target.
func (b *branch) checkBareRange() {
	if !b.isResolved() {
		return
	}
	if exactOffsetSize(int64(b.target)-int64(b.offsetLocation())) > b.offsetBits() {
		panic(fmt.Sprintf("BUG: bare branch out of range: %s", b))
	}
}

func (b *branch) isResolved() bool { return b.target != unresolved }

func (b *branch) resolve(target uint32) {
	b.target = target
	b.oldTarget = target
}

func (b *branch) isBare() bool {
	switch b.kind {
	case branchKindBareUncond, branchKindBareCond, branchKindBareCall:
		return true
	default:
		return false
	}
}

func (b *branch) isLong() bool {
	switch b.kind {
	case branchKindUncond, branchKindCond, branchKindCall,
		branchKindBareUncond, branchKindBareCond, branchKindBareCall:
		return false
	default:
		return true
	}
}

func (b *branch) offsetBits() uint      { return branchInfos[b.kind].offsetBits }
func (b *branch) length() uint32        { return branchInfos[b.kind].length }
func (b *branch) size() uint32          { return b.length() * wordSize }
func (b *branch) oldSize() uint32       { return branchInfos[b.oldKind].length * wordSize }
func (b *branch) endLocation() uint32   { return b.location + b.size() }
func (b *branch) oldEndLocation() uint32 { return b.oldLocation + b.oldSize() }

// offsetLocation is the address of the instruction the encoded offset is relative to.
func (b *branch) offsetLocation() uint32 {
	return b.location + branchInfos[b.kind].instrOffset*wordSize
}

func (b *branch) promoteToLong() {
	switch b.kind {
	case branchKindUncond:
		b.kind = branchKindLongUncond
	case branchKindCond:
		b.kind = branchKindLongCond
	case branchKindCall:
		b.kind = branchKindLongCall
	default:
		panic(fmt.Sprintf("BUG: cannot promote %s", b))
	}
}

// promoteIfNeeded promotes a short branch whose target is out of reach and
// returns the growth in bytes. A non-zero maxShortDistance also promotes every
// branch whose distance is at least that many bytes.
func (b *branch) promoteIfNeeded(maxShortDistance uint32) uint32 {
	if b.isLong() {
		return 0
	}
	if !b.isResolved() {
		panic(fmt.Sprintf("BUG: unresolved branch at finalization: %s", b))
	}
	if b.isBare() {
		b.checkBareRange()
		return 0
	}
	promote := offsetSizeNeeded(b.location, b.target) > b.offsetBits()
	if !promote && maxShortDistance != 0 {
		distance := int64(b.target) - int64(b.location)
		if distance < 0 {
			distance = -distance
		}
		promote = distance >= int64(maxShortDistance)
	}
	if !promote {
		return 0
	}
	before := b.size()
	b.promoteToLong()
	return b.size() - before
}

// offset returns the PC-relative offset to encode, truncated to the offset width.
func (b *branch) offset() uint32 {
	if !b.isResolved() {
		panic(fmt.Sprintf("BUG: offset of unresolved branch %s", b))
	}
	info := branchInfos[b.kind]
	mask := uint32(0xffffffff) >> (32 - info.offsetBits)
	off := b.target - b.offsetLocation() - info.pcOrigin*wordSize
	return (off & mask) >> info.offsetShift
}

func (a *Assembler) labelTarget(l *Label) uint32 {
	if l.bound {
		return a.LabelLocation(l)
	}
	return unresolved
}

func (a *Assembler) addBranch(b branch, l *Label) {
	if a.codeFinalized {
		panic(fmt.Sprintf("BUG: new branch after FinalizeCode: %s", &b))
	}
	a.branches = append(a.branches, b)
	a.linkBranch(l)
}

func (a *Assembler) buncond(l *Label, isCall, isBare bool) {
	loc := uint32(a.buf.Len())
	a.addBranch(newUncondBranch(loc, a.labelTarget(l), isCall, isBare), l)
}

func (a *Assembler) bcond(cond Condition, lhs, rhs XReg, l *Label, isBare bool) {
	if isNop(cond, lhs, rhs) {
		return
	}
	if isUncond(cond, lhs, rhs) {
		a.buncond(l, false, isBare)
		return
	}
	loc := uint32(a.buf.Len())
	a.addBranch(newCondBranch(loc, a.labelTarget(l), cond, lhs, rhs, isBare), l)
}

// J jumps to l, promoting to auipc+jalr when the target is out of range.
func (a *Assembler) J(l *Label) { a.buncond(l, false, false) }

// JBare jumps to l with a single jal that never promotes.
func (a *Assembler) JBare(l *Label) { a.buncond(l, false, true) }

// Call calls l, linking RA.
func (a *Assembler) Call(l *Label) { a.buncond(l, true, false) }

// CallBare calls l with a single jal ra that never promotes.
func (a *Assembler) CallBare(l *Label) { a.buncond(l, true, true) }

// Bcond branches to l if cond holds for lhs and rhs. For the conditions
// comparing with zero, rhs must be ZERO.
//
// A condition that can never hold because lhs == rhs emits nothing, and one
// that always holds emits an unconditional jump.
func (a *Assembler) Bcond(cond Condition, lhs, rhs XReg, l *Label) {
	a.bcond(cond, lhs, rhs, l, false)
}

// BcondBare is Bcond without promotion to the long form.
func (a *Assembler) BcondBare(cond Condition, lhs, rhs XReg, l *Label) {
	a.bcond(cond, lhs, rhs, l, true)
}

func (a *Assembler) Beqz(rs XReg, l *Label) { a.Bcond(CondEQZ, rs, ZERO, l) }
func (a *Assembler) Bnez(rs XReg, l *Label) { a.Bcond(CondNEZ, rs, ZERO, l) }
func (a *Assembler) Bltz(rs XReg, l *Label) { a.Bcond(CondLTZ, rs, ZERO, l) }
func (a *Assembler) Bgez(rs XReg, l *Label) { a.Bcond(CondGEZ, rs, ZERO, l) }
func (a *Assembler) Blez(rs XReg, l *Label) { a.Bcond(CondLEZ, rs, ZERO, l) }
func (a *Assembler) Bgtz(rs XReg, l *Label) { a.Bcond(CondGTZ, rs, ZERO, l) }

// LoadLabelAddress loads the address of l into rd with auipc+addi.
func (a *Assembler) LoadLabelAddress(rd XReg, l *Label) {
	loc := uint32(a.buf.Len())
	a.addBranch(newLoadBranch(loc, a.labelTarget(l), rd, branchKindLabel), l)
}
