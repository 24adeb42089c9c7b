package asm_riscv64

import "fmt"

// noBranch terminates the chain of branches waiting for a label. Links hold
// a branch index plus one so that the zero Label is a valid unbound label.
const noBranch = 0

// Label is a position in the code of one routine.
//
// An unbound label threads the branches that reference it through their
// indexes, newest first. A bound label stores its position relative to the end
// of the branch preceding it, so promotion of earlier branches moves it
// without any bookkeeping.
//
// The zero value is an unbound label with no references.
type Label struct {
	bound bool
	// position is relative to the end of branch prevBranchIDPlusOne-1, or
	// absolute when no branch precedes the label.
	position            int64
	prevBranchIDPlusOne int
	linkHead            int
}

// NewLabel returns an unbound label.
func NewLabel() *Label {
	return &Label{}
}

// IsBound returns true once Bind was called for the label.
func (l *Label) IsBound() bool {
	return l.bound
}

// IsLinked returns true if branches are waiting for the label to be bound.
func (l *Label) IsLinked() bool {
	return !l.bound && l.linkHead != noBranch
}

// String implements fmt.Stringer.
func (l *Label) String() string {
	switch {
	case l.bound:
		return fmt.Sprintf("label(bound %+d after branch %d)", l.position, l.prevBranchIDPlusOne-1)
	case l.linkHead != noBranch:
		return fmt.Sprintf("label(unbound, last referenced by branch %d)", l.linkHead-1)
	default:
		return "label(unbound)"
	}
}

// Bind binds label to the current end of the code and resolves every branch
// that referenced it so far.
func (a *Assembler) Bind(l *Label) {
	if l.bound {
		panic("BUG: label is already bound")
	}
	if a.codeFinalized {
		panic("BUG: Bind after FinalizeCode")
	}
	boundPC := uint32(a.buf.Len())

	for id := l.linkHead; id != noBranch; {
		b := &a.branches[id-1]
		b.resolve(boundPC)
		id = b.next
		b.next = noBranch
	}
	l.linkHead = noBranch

	l.prevBranchIDPlusOne = len(a.branches)
	pos := int64(boundPC)
	if l.prevBranchIDPlusOne != 0 {
		pos -= int64(a.branches[l.prevBranchIDPlusOne-1].endLocation())
	}
	l.position = pos
	l.bound = true
}

// LabelLocation returns the current position of a bound label. Before
// FinalizeCode the position is preliminary; afterwards it is final.
func (a *Assembler) LabelLocation(l *Label) uint32 {
	if !l.bound {
		panic("BUG: location of an unbound label")
	}
	pos := l.position
	if l.prevBranchIDPlusOne != 0 {
		pos += int64(a.branches[l.prevBranchIDPlusOne-1].endLocation())
	}
	return uint32(pos)
}

// linkBranch records the branch just appended as referencing l and reserves its placeholder.
func (a *Assembler) linkBranch(l *Label) {
	id := len(a.branches) - 1
	b := &a.branches[id]
	if !l.bound {
		b.next = l.linkHead
		l.linkHead = id + 1
	}
	for i := b.length(); i > 0; i-- {
		a.emit(nopInstruction)
	}
}
