// Package art assembles RISC-V 64 routines for a managed runtime: straight
// line code, branches and literals resolved at finalization, frames with call
// frame information, and trampolines derived from the calling conventions.
package art

import (
	"fmt"

	asm "github.com/riscv-android-src/platform-art/internal/asm/riscv64"
	"github.com/riscv-android-src/platform-art/internal/codecache"
)

// Routine is finalized machine code.
type Routine struct {
	// Name is used in listings.
	Name string
	// Code is the machine code.
	Code []byte
	// CFI is the DWARF call frame program, nil unless enabled.
	CFI []byte
	// Key is the code cache key of Code.
	Key codecache.Key
	// Cached is true if identical code was already in the code cache.
	Cached bool
}

// Assemble runs build on a new assembler and finalizes the result.
//
// Contract violations inside build panic as they do on the assembler itself.
// Errors are only returned for the listing and the code cache.
func Assemble(cfg *AssemblerConfig, name string, build func(a *asm.Assembler)) (*Routine, error) {
	a := cfg.NewAssembler()
	build(a)
	a.FinalizeCode()
	a.FinalizeInstructions()

	r := &Routine{Name: name, Code: a.Bytes(), Key: codecache.KeyOf(a.Bytes())}
	if cfg.cfi {
		r.CFI = a.CFI().Data()
	}
	if cfg.listing != nil {
		if err := a.WriteListing(cfg.listing, name); err != nil {
			return nil, fmt.Errorf("listing %s: %w", name, err)
		}
	}
	if cfg.cache != nil {
		key, existed, err := cfg.cache.Add(r.Code)
		if err != nil {
			return nil, fmt.Errorf("caching %s: %w", name, err)
		}
		r.Key, r.Cached = key, existed
	}
	return r, nil
}
