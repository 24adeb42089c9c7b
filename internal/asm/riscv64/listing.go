package asm_riscv64

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/asmfmt"
)

// WriteGoAssembly writes code as a Go assembler function named name made of
// WORD directives, each commented with its disassembly. Words that do not
// decode, such as literals, are marked as data.
func WriteGoAssembly(w io.Writer, name string, code []byte) error {
	if len(code)%wordSize != 0 {
		return fmt.Errorf("code size %d is not a multiple of %d", len(code), wordSize)
	}
	var sb strings.Builder
	sb.WriteString("#include \"textflag.h\"\n\n")
	fmt.Fprintf(&sb, "TEXT ·%s(SB), NOSPLIT, $0-0\n", name)
	for off := 0; off < len(code); off += wordSize {
		word := binary.LittleEndian.Uint32(code[off:])
		comment := "data"
		if in, err := Decode(word); err == nil {
			comment = in.String()
		}
		fmt.Fprintf(&sb, "\tWORD $0x%08x // %#04x: %s\n", word, off, comment)
	}

	formatted, err := asmfmt.Format(strings.NewReader(sb.String()))
	if err != nil {
		return fmt.Errorf("formatting listing of %s: %w", name, err)
	}
	if _, err = w.Write(formatted); err != nil {
		return fmt.Errorf("writing listing of %s: %w", name, err)
	}
	return nil
}

// WriteListing writes the finalized code of the Assembler with WriteGoAssembly.
func (a *Assembler) WriteListing(w io.Writer, name string) error {
	return WriteGoAssembly(w, name, a.Bytes())
}
