package asm

import (
	"encoding/binary"
	"fmt"
)

// WriterMode selects which cursor of a CodeBuffer is allowed to write.
type WriterMode byte

const (
	// Appending is the default mode: every emitted word is added at the end.
	Appending WriterMode = iota
	// OverwritingAt replaces already emitted words starting at WriterState.Offset.
	OverwritingAt
)

// String implements fmt.Stringer.
func (m WriterMode) String() string {
	switch m {
	case Appending:
		return "appending"
	case OverwritingAt:
		return "overwriting"
	default:
		return fmt.Sprintf("WriterMode(%d)", m)
	}
}

// WriterState is the tagged writer state of a CodeBuffer. Offset is meaningful
// only when Mode is OverwritingAt.
type WriterState struct {
	Mode   WriterMode
	Offset int
}

// String implements fmt.Stringer.
func (s WriterState) String() string {
	if s.Mode == OverwritingAt {
		return fmt.Sprintf("overwriting at %#x", s.Offset)
	}
	return s.Mode.String()
}

// Overwrite returns the state that rewrites code starting at offset.
func Overwrite(offset int) WriterState {
	return WriterState{Mode: OverwritingAt, Offset: offset}
}

// CodeBuffer is a growable byte buffer of machine code with exactly one active
// writer at any instant: either the append cursor at the end of the buffer or
// an overwrite cursor inside it.
//
// The zero value is an empty buffer in the Appending state.
type CodeBuffer struct {
	code  []byte
	state WriterState
}

// NewCodeBuffer returns an empty CodeBuffer with room for capacity bytes.
func NewCodeBuffer(capacity int) *CodeBuffer {
	return &CodeBuffer{code: make([]byte, 0, capacity)}
}

// Len returns the number of bytes emitted so far.
func (b *CodeBuffer) Len() int {
	return len(b.code)
}

// Bytes returns the emitted code. The slice aliases the buffer until the next write.
func (b *CodeBuffer) Bytes() []byte {
	return b.code
}

// Reset empties the buffer and returns it to the Appending state.
func (b *CodeBuffer) Reset() {
	b.code = b.code[:0]
	b.state = WriterState{}
}

// State returns the current writer state.
func (b *CodeBuffer) State() WriterState {
	return b.state
}

// SetState switches the writer. Overwriting is only allowed inside the
// emitted code and switching back to Appending is only allowed from an
// overwrite state.
func (b *CodeBuffer) SetState(s WriterState) {
	switch s.Mode {
	case Appending:
	case OverwritingAt:
		if s.Offset < 0 || s.Offset > len(b.code) || s.Offset%4 != 0 {
			panic(fmt.Sprintf("BUG: invalid overwrite offset %#x for buffer of size %#x", s.Offset, len(b.code)))
		}
	default:
		panic(fmt.Sprintf("BUG: unknown writer mode %d", s.Mode))
	}
	b.state = s
}

// EmitUint32 writes one little-endian word at the active cursor and advances it.
func (b *CodeBuffer) EmitUint32(v uint32) {
	switch b.state.Mode {
	case Appending:
		b.code = binary.LittleEndian.AppendUint32(b.code, v)
	case OverwritingAt:
		off := b.state.Offset
		if off+4 > len(b.code) {
			panic(fmt.Sprintf("BUG: overwrite at %#x past the end of the buffer (%#x)", off, len(b.code)))
		}
		binary.LittleEndian.PutUint32(b.code[off:], v)
		b.state.Offset += 4
	}
}

// AppendBytes appends raw data such as literal payloads.
func (b *CodeBuffer) AppendBytes(data []byte) {
	b.mustAppend("append bytes")
	b.code = append(b.code, data...)
}

// Load32 reads the word at offset.
func (b *CodeBuffer) Load32(offset int) uint32 {
	return binary.LittleEndian.Uint32(b.code[offset : offset+4])
}

// Store32 writes the word at offset without moving any cursor.
func (b *CodeBuffer) Store32(offset int, v uint32) {
	binary.LittleEndian.PutUint32(b.code[offset:offset+4], v)
}

// Resize grows or shrinks the buffer by delta bytes. Grown space is zeroed.
func (b *CodeBuffer) Resize(delta int) {
	b.mustAppend("resize")
	n := len(b.code) + delta
	if n < 0 {
		panic(fmt.Sprintf("BUG: resize by %d of buffer of size %d", delta, len(b.code)))
	}
	if n <= len(b.code) {
		b.code = b.code[:n]
		return
	}
	if n <= cap(b.code) {
		b.code = b.code[:n]
		clear(b.code[n-delta:])
		return
	}
	grown := make([]byte, n, 2*n)
	copy(grown, b.code)
	b.code = grown
}

// Move copies size bytes from src to dst. The ranges may overlap.
func (b *CodeBuffer) Move(dst, src, size int) {
	if size == 0 {
		return
	}
	if dst+size > len(b.code) || src+size > len(b.code) || dst < 0 || src < 0 {
		panic(fmt.Sprintf("BUG: move of %d bytes from %#x to %#x out of bounds (%#x)", size, src, dst, len(b.code)))
	}
	copy(b.code[dst:dst+size], b.code[src:src+size])
}

func (b *CodeBuffer) mustAppend(op string) {
	if b.state.Mode != Appending {
		panic(fmt.Sprintf("BUG: %s while %s", op, b.state))
	}
}
