// Package cfi records DWARF call frame information opcodes for generated code.
//
// The writer is passive: the assembler tells it where the frame changes and it
// appends the matching DW_CFA_* opcodes. When code may still move after the
// opcodes are written, the writer is created with delayed advance-PC records so
// the program counters can be relocated afterwards with Patch.
package cfi

import (
	"fmt"

	"github.com/twitchyliquid64/golang-asm/dwarf"
	"github.com/twitchyliquid64/golang-asm/obj/riscv"
)

const (
	// CodeAlignmentFactor is the factor applied to advance-PC deltas.
	CodeAlignmentFactor = 1
	// DataAlignmentFactor is the factor applied to register save offsets.
	DataAlignmentFactor = -4
)

// Reg is a DWARF register number.
type Reg int

// XReg returns the DWARF number of the integer register x<n>.
func XReg(n uint8) Reg {
	return Reg(riscv.RISCV64DWARFRegisters[int16(riscv.REG_X0)+int16(n)])
}

// FReg returns the DWARF number of the floating point register f<n>.
func FReg(n uint8) Reg {
	return Reg(riscv.RISCV64DWARFRegisters[int16(riscv.REG_F0)+int16(n)])
}

type advance struct {
	streamPos int
	pc        uint32
}

// Writer accumulates the opcode stream of one routine.
type Writer struct {
	enabled        bool
	delayAdvancePC bool
	data           []byte
	currentPC      uint32
	cfaOffset      int
	advances       []advance
}

// NewWriter returns a Writer. A disabled writer ignores every call.
func NewWriter(enabled, delayAdvancePC bool) *Writer {
	return &Writer{enabled: enabled, delayAdvancePC: delayAdvancePC}
}

// Enabled returns true if the writer records opcodes.
func (w *Writer) Enabled() bool {
	return w.enabled
}

// Data returns the opcode stream.
func (w *Writer) Data() []byte {
	return w.data
}

// CurrentCFAOffset returns the distance between the CFA and the stack pointer.
func (w *Writer) CurrentCFAOffset() int {
	return w.cfaOffset
}

// SetCurrentCFAOffset sets the tracked CFA offset without emitting anything,
// for code paths that the linear opcode stream cannot describe.
func (w *Writer) SetCurrentCFAOffset(offset int) {
	w.cfaOffset = offset
}

// NumberOfDelayedAdvancePCs returns the count of advance-PC records waiting for Patch.
func (w *Writer) NumberOfDelayedAdvancePCs() int {
	return len(w.advances)
}

// AdvancePC moves the current location to the absolute code offset pc.
func (w *Writer) AdvancePC(pc uint32) {
	if !w.enabled || pc == w.currentPC {
		return
	}
	if pc < w.currentPC {
		panic(fmt.Sprintf("BUG: cfi pc moved backwards from %#x to %#x", w.currentPC, pc))
	}
	if w.delayAdvancePC {
		w.advances = append(w.advances, advance{streamPos: len(w.data), pc: pc})
	} else {
		w.data = appendAdvanceLoc(w.data, (pc-w.currentPC)/CodeAlignmentFactor)
	}
	w.currentPC = pc
}

// DefCFAOffset sets the CFA to sp + offset.
func (w *Writer) DefCFAOffset(offset int) {
	if !w.enabled {
		return
	}
	if offset != w.cfaOffset {
		if offset >= 0 {
			w.data = append(w.data, dwarf.DW_CFA_def_cfa_offset)
			w.data = dwarf.AppendUleb128(w.data, uint64(offset))
		} else {
			w.data = append(w.data, dwarf.DW_CFA_def_cfa_offset_sf)
			w.data = dwarf.AppendSleb128(w.data, int64(factorDataOffset(offset)))
		}
	}
	w.cfaOffset = offset
}

// AdjustCFAOffset moves the CFA by delta bytes.
func (w *Writer) AdjustCFAOffset(delta int) {
	if !w.enabled {
		return
	}
	w.DefCFAOffset(w.cfaOffset + delta)
}

// Offset records that reg is saved at CFA + offset.
func (w *Writer) Offset(reg Reg, offset int) {
	if !w.enabled {
		return
	}
	factored := factorDataOffset(offset)
	switch {
	case factored >= 0 && reg < 64:
		w.data = append(w.data, byte(dwarf.DW_CFA_offset|int(reg)))
		w.data = dwarf.AppendUleb128(w.data, uint64(factored))
	case factored >= 0:
		w.data = append(w.data, dwarf.DW_CFA_offset_extended)
		w.data = dwarf.AppendUleb128(w.data, uint64(reg))
		w.data = dwarf.AppendUleb128(w.data, uint64(factored))
	default:
		w.data = append(w.data, dwarf.DW_CFA_offset_extended_sf)
		w.data = dwarf.AppendUleb128(w.data, uint64(reg))
		w.data = dwarf.AppendSleb128(w.data, int64(factored))
	}
}

// RelOffset records that reg is saved at sp + offset.
func (w *Writer) RelOffset(reg Reg, offset int) {
	w.Offset(reg, offset-w.cfaOffset)
}

// Restore records that reg holds its value from the caller again.
func (w *Writer) Restore(reg Reg) {
	if !w.enabled {
		return
	}
	if reg < 64 {
		w.data = append(w.data, byte(dwarf.DW_CFA_restore|int(reg)))
		return
	}
	w.data = append(w.data, dwarf.DW_CFA_restore_extended)
	w.data = dwarf.AppendUleb128(w.data, uint64(reg))
}

// RememberState pushes the current rules.
func (w *Writer) RememberState() {
	if w.enabled {
		w.data = append(w.data, dwarf.DW_CFA_remember_state)
	}
}

// RestoreState pops the rules pushed by RememberState.
func (w *Writer) RestoreState() {
	if w.enabled {
		w.data = append(w.data, dwarf.DW_CFA_restore_state)
	}
}

// Patch rewrites the delayed advance-PC records with the program counters
// returned by adjust and emits them into the stream. adjust must be monotonic.
func (w *Writer) Patch(adjust func(pc uint32) uint32) {
	if !w.enabled || !w.delayAdvancePC {
		return
	}
	out := make([]byte, 0, len(w.data)+2*len(w.advances))
	var pos int
	var pc uint32
	for _, a := range w.advances {
		out = append(out, w.data[pos:a.streamPos]...)
		next := adjust(a.pc)
		if next < pc {
			panic(fmt.Sprintf("BUG: adjusted cfi pc %#x precedes %#x", next, pc))
		}
		if next != pc {
			out = appendAdvanceLoc(out, (next-pc)/CodeAlignmentFactor)
		}
		pc = next
		pos = a.streamPos
	}
	out = append(out, w.data[pos:]...)
	w.data = out
	w.advances = w.advances[:0]
	w.currentPC = pc
	w.delayAdvancePC = false
}

func factorDataOffset(offset int) int {
	if offset%DataAlignmentFactor != 0 {
		panic(fmt.Sprintf("BUG: cfi offset %d is not a multiple of %d", offset, -DataAlignmentFactor))
	}
	return offset / DataAlignmentFactor
}

func appendAdvanceLoc(b []byte, delta uint32) []byte {
	switch {
	case delta < 1<<6:
		return append(b, byte(dwarf.DW_CFA_advance_loc|int(delta)))
	case delta <= 0xff:
		return append(b, dwarf.DW_CFA_advance_loc1, byte(delta))
	case delta <= 0xffff:
		return append(b, dwarf.DW_CFA_advance_loc2, byte(delta), byte(delta>>8))
	default:
		return append(b, dwarf.DW_CFA_advance_loc4, byte(delta), byte(delta>>8), byte(delta>>16), byte(delta>>24))
	}
}
