package asm_riscv64

import (
	"fmt"
	"sort"

	"github.com/riscv-android-src/platform-art/internal/asm"
)

// FinalizeCode emits the deferred slow paths, jump table space and literals,
// then grows every out of range branch and moves the code in between to its
// final position. Labels may not be bound afterwards.
func (a *Assembler) FinalizeCode() {
	if a.codeFinalized {
		panic("BUG: FinalizeCode called twice")
	}
	a.emitExceptionBlocks()
	a.reserveJumpTableSpace()
	a.emitLiterals()
	a.codeFinalized = true
	a.promoteBranches()
}

// FinalizeInstructions writes the final encoding of every branch and jump
// table entry and patches the call frame information to the final layout.
func (a *Assembler) FinalizeInstructions() {
	if !a.codeFinalized {
		panic("BUG: FinalizeInstructions before FinalizeCode")
	}
	if a.instructionsFinalized {
		panic("BUG: FinalizeInstructions called twice")
	}
	a.emitBranches()
	a.emitJumpTables()
	a.cfi.Patch(a.AdjustedPosition)
	a.instructionsFinalized = true
}

func (a *Assembler) promoteBranches() {
	for i := range a.branches {
		if b := &a.branches[i]; !b.isResolved() {
			panic(fmt.Sprintf("BUG: branch %d to an unbound label: %s", i, b))
		}
	}

	// Sizes only grow, so the loop ends after at most one promotion per branch.
	for changed := true; changed; {
		changed = false
		for i := range a.branches {
			if a.branches[i].promoteIfNeeded(a.opts.MaxShortBranchDistance) != 0 {
				changed = true
			}
		}
		if changed {
			a.relocateBranches()
		}
	}

	if n := len(a.branches); n > 0 {
		last := &a.branches[n-1]
		if growth := last.endLocation() - last.oldEndLocation(); growth != 0 {
			oldSize := uint32(a.buf.Len())
			a.buf.Resize(int(growth))
			// Walk backwards so that no chunk is overwritten before it moves.
			end := oldSize
			for i := n - 1; i >= 0; i-- {
				b := &a.branches[i]
				a.buf.Move(int(b.endLocation()), int(b.oldEndLocation()), int(end-b.oldEndLocation()))
				end = b.oldLocation
			}
		}
	}

	a.alignLongLiterals()
}

// relocateBranches recomputes every location and target from the unpromoted
// layout and the current sizes.
func (a *Assembler) relocateBranches() {
	// growth[i] is the total growth of branches[:i].
	growth := make([]uint32, len(a.branches)+1)
	for i := range a.branches {
		b := &a.branches[i]
		b.location = b.oldLocation + growth[i]
		growth[i+1] = growth[i] + b.size() - b.oldSize()
	}
	for i := range a.branches {
		b := &a.branches[i]
		// Only branches starting before the target move it.
		before := sort.Search(len(a.branches), func(j int) bool {
			return a.branches[j].oldLocation >= b.oldTarget
		})
		b.target = b.oldTarget + growth[before]
	}
}

// alignLongLiterals moves the 8-byte literals down over their padding word
// when they are not 8-byte aligned.
func (a *Assembler) alignLongLiterals() {
	if len(a.longLiterals) == 0 {
		return
	}
	first := a.LabelLocation(&a.longLiterals[0].label)
	size := uint32(len(a.longLiterals)) * doublewordSize
	if first+size != uint32(a.buf.Len()) {
		panic(fmt.Sprintf("BUG: long literals at %#x do not end the code (%#x)", first, a.buf.Len()))
	}
	if first%doublewordSize == 0 {
		return
	}
	a.buf.Move(int(first-wordSize), int(first), int(size))
	a.buf.Resize(-wordSize)
	for i := range a.branches {
		if b := &a.branches[i]; b.target >= first {
			b.target -= wordSize
		}
	}
	for _, lit := range a.longLiterals {
		lit.label.position -= wordSize
	}
}

func (a *Assembler) emitBranches() {
	for i := range a.branches {
		a.emitBranch(&a.branches[i])
	}
	a.buf.SetState(asm.WriterState{Mode: asm.Appending})
}

func (a *Assembler) emitBranch(b *branch) {
	a.buf.SetState(asm.Overwrite(int(b.location)))
	off := int32(b.offset())
	if b.offsetBits() < 32 {
		// Sign extend the short offsets.
		shift := 32 - b.offsetBits()
		off = off << shift >> shift
	}
	// The lo12 part is sign extended by its consumer, compensate in hi20.
	hi, lo := (off+0x800)>>12, off<<20>>20

	switch b.kind {
	case branchKindUncond, branchKindBareUncond:
		a.Jal(ZERO, off)
	case branchKindCall, branchKindBareCall:
		a.Jal(RA, off)
	case branchKindCond, branchKindBareCond:
		a.emitBcond(b.condition, b.lhs, b.rhs, off)
	case branchKindLabel:
		a.Auipc(AT, hi)
		a.Addi(b.lhs, AT, lo)
	case branchKindLiteral:
		a.Auipc(AT, hi)
		a.Lw(b.lhs, AT, lo)
	case branchKindLiteralUnsigned:
		a.Auipc(AT, hi)
		a.Lwu(b.lhs, AT, lo)
	case branchKindLiteralLong:
		a.Auipc(AT, hi)
		a.Ld(b.lhs, AT, lo)
	case branchKindLongUncond:
		a.Auipc(AT, hi)
		a.Jalr(ZERO, AT, lo)
	case branchKindLongCall:
		a.Auipc(AT, hi)
		a.Jalr(RA, AT, lo)
	case branchKindLongCond:
		a.emitBcond(b.condition.Opposite(), b.lhs, b.rhs, int32(b.size()))
		a.Auipc(AT, hi)
		a.Jalr(ZERO, AT, lo)
	default:
		panic(fmt.Sprintf("BUG: unexpected branch kind %s", b.kind))
	}

	if got := a.buf.State().Offset; got != int(b.endLocation()) {
		panic(fmt.Sprintf("BUG: branch %s ended at %#x", b, got))
	}
}

// emitBcond emits the single conditional branch instruction for cond.
func (a *Assembler) emitBcond(cond Condition, rs, rt XReg, offset int32) {
	switch cond {
	case CondLT:
		a.Blt(rs, rt, offset)
	case CondGE:
		a.Bge(rs, rt, offset)
	case CondLE:
		a.Bge(rt, rs, offset)
	case CondGT:
		a.Blt(rt, rs, offset)
	case CondLTZ:
		a.Blt(rs, ZERO, offset)
	case CondGEZ:
		a.Bge(rs, ZERO, offset)
	case CondLEZ:
		a.Bge(ZERO, rs, offset)
	case CondGTZ:
		a.Blt(ZERO, rs, offset)
	case CondEQ:
		a.Beq(rs, rt, offset)
	case CondNE:
		a.Bne(rs, rt, offset)
	case CondEQZ:
		a.Beq(rs, ZERO, offset)
	case CondNEZ:
		a.Bne(rs, ZERO, offset)
	case CondLTU:
		a.Bltu(rs, rt, offset)
	case CondGEU:
		a.Bgeu(rs, rt, offset)
	default:
		panic(fmt.Sprintf("BUG: unexpected condition %s", cond))
	}
}

// AdjustedPosition maps a position in the code as emitted to the same
// position after FinalizeCode grew the branches. Queries with increasing
// positions take amortized constant time.
func (a *Assembler) AdjustedPosition(oldPosition uint32) uint32 {
	if !a.codeFinalized {
		panic("BUG: AdjustedPosition before FinalizeCode")
	}
	if oldPosition < a.lastOldPosition {
		a.lastAdjustment, a.lastOldPosition, a.lastBranchID = 0, 0, 0
	}
	for ; a.lastBranchID < len(a.branches); a.lastBranchID++ {
		b := &a.branches[a.lastBranchID]
		if b.location >= oldPosition+a.lastAdjustment {
			break
		}
		a.lastAdjustment += b.size() - b.oldSize()
	}
	a.lastOldPosition = oldPosition
	return oldPosition + a.lastAdjustment
}
