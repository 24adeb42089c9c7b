package asm_riscv64

import (
	"encoding/binary"
	"fmt"
)

// Literal is a 4 or 8 byte constant placed after the code of the routine.
type Literal struct {
	label Label
	data  []byte
}

// Label returns the label bound to the literal by FinalizeCode.
func (l *Literal) Label() *Label { return &l.label }

// Size returns the size of the literal in bytes.
func (l *Literal) Size() int { return len(l.data) }

// Data returns the literal payload.
func (l *Literal) Data() []byte { return l.data }

// NewLiteral registers a literal with a copy of data, which must be 4 or 8 bytes long.
func (a *Assembler) NewLiteral(data []byte) *Literal {
	if a.codeFinalized {
		panic("BUG: new literal after FinalizeCode")
	}
	lit := &Literal{data: append([]byte(nil), data...)}
	switch len(data) {
	case wordSize:
		a.literals = append(a.literals, lit)
	case doublewordSize:
		a.longLiterals = append(a.longLiterals, lit)
	default:
		panic(fmt.Sprintf("BUG: literal of %d bytes", len(data)))
	}
	return lit
}

// NewLiteral32 registers a little-endian 32-bit literal.
func (a *Assembler) NewLiteral32(v uint32) *Literal {
	return a.NewLiteral(binary.LittleEndian.AppendUint32(nil, v))
}

// NewLiteral64 registers a little-endian 64-bit literal.
func (a *Assembler) NewLiteral64(v uint64) *Literal {
	return a.NewLiteral(binary.LittleEndian.AppendUint64(nil, v))
}

// LoadKind selects the load instruction of LoadLiteral.
type LoadKind byte

const (
	// LoadWord sign extends a 4 byte literal.
	LoadWord LoadKind = iota
	// LoadUnsignedWord zero extends a 4 byte literal.
	LoadUnsignedWord
	// LoadDoubleword loads an 8 byte literal.
	LoadDoubleword
)

// String implements fmt.Stringer.
func (k LoadKind) String() string {
	switch k {
	case LoadWord:
		return "lw"
	case LoadUnsignedWord:
		return "lwu"
	case LoadDoubleword:
		return "ld"
	default:
		return fmt.Sprintf("LoadKind(%d)", k)
	}
}

// LoadLiteral loads lit into rd with auipc and a load relative to it.
func (a *Assembler) LoadLiteral(rd XReg, kind LoadKind, lit *Literal) {
	var bk branchKind
	want := wordSize
	switch kind {
	case LoadWord:
		bk = branchKindLiteral
	case LoadUnsignedWord:
		bk = branchKindLiteralUnsigned
	case LoadDoubleword:
		bk, want = branchKindLiteralLong, doublewordSize
	default:
		panic(fmt.Sprintf("BUG: unexpected load kind %s", kind))
	}
	if lit.Size() != want {
		panic(fmt.Sprintf("BUG: %s of a %d byte literal", kind, lit.Size()))
	}
	loc := uint32(a.buf.Len())
	a.addBranch(newLoadBranch(loc, a.labelTarget(&lit.label), rd, bk), &lit.label)
}

func (a *Assembler) emitLiterals() {
	for _, lit := range a.literals {
		a.Bind(&lit.label)
		a.buf.AppendBytes(lit.data)
	}
	if len(a.longLiterals) == 0 {
		return
	}
	// Padding, dropped again if the block turns out aligned without it.
	a.emit(0)
	for _, lit := range a.longLiterals {
		a.Bind(&lit.label)
		a.buf.AppendBytes(lit.data)
	}
}

// JumpTable is a table of 4-byte offsets of its targets relative to the start
// of the table.
type JumpTable struct {
	label   Label
	targets []*Label
}

// Label returns the label of the table start, for use with LoadLabelAddress.
func (t *JumpTable) Label() *Label { return &t.label }

// Targets returns the labels the table entries point at.
func (t *JumpTable) Targets() []*Label { return t.targets }

// CreateJumpTable registers a jump table placed after the code of the routine.
func (a *Assembler) CreateJumpTable(targets []*Label) *JumpTable {
	if a.codeFinalized {
		panic("BUG: new jump table after FinalizeCode")
	}
	t := &JumpTable{targets: targets}
	a.jumpTables = append(a.jumpTables, t)
	return t
}

func (a *Assembler) reserveJumpTableSpace() {
	for _, t := range a.jumpTables {
		a.Bind(&t.label)
		for range t.targets {
			a.emit(jumpTableMarker)
		}
	}
}

func (a *Assembler) emitJumpTables() {
	for _, t := range a.jumpTables {
		start := a.LabelLocation(&t.label)
		for i, target := range t.targets {
			pos := int(start) + i*wordSize
			if got := a.buf.Load32(pos); got != jumpTableMarker {
				panic(fmt.Sprintf("BUG: jump table entry at %#x was overwritten with %#x", pos, got))
			}
			a.buf.Store32(pos, a.LabelLocation(target)-start)
		}
	}
}
