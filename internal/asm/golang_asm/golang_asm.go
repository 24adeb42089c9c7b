// Package golang_asm wraps the Go toolchain's RISC-V encoder, as forked by
// github.com/twitchyliquid64/golang-asm, so that the words produced by our own
// assembler can be checked against an independent implementation.
//
// Only single-word instructions whose operands are fully known up front are
// supported. Branch and jump offsets are taken as already resolved distances.
package golang_asm

import (
	"fmt"

	goasm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/riscv"
)

// GolangAsmBaseAssembler collects obj.Prog for golang-asm and assembles them.
type GolangAsmBaseAssembler struct {
	b *goasm.Builder
	// instructions is the number of added instructions, each of which must
	// produce exactly one word.
	instructions int
}

// NewGolangAsmBaseAssembler returns an assembler for arch, as understood by
// golang-asm (e.g. "riscv64").
func NewGolangAsmBaseAssembler(arch string) (*GolangAsmBaseAssembler, error) {
	b, err := goasm.NewBuilder(arch, 1024)
	if err != nil {
		return nil, fmt.Errorf("failed to create a new assembly builder: %w", err)
	}
	return &GolangAsmBaseAssembler{b: b}, nil
}

// Assemble encodes the added instructions. golang-asm silently drops the
// instructions it cannot encode, so that is reported as an error here.
func (a *GolangAsmBaseAssembler) Assemble() ([]byte, error) {
	if a.instructions == 0 {
		return nil, nil
	}
	code := a.b.Assemble()
	if len(code) != a.instructions*4 {
		return nil, fmt.Errorf("golang-asm produced %d bytes for %d instructions", len(code), a.instructions)
	}
	return code, nil
}

// AddInstruction appends next to the instruction stream.
func (a *GolangAsmBaseAssembler) AddInstruction(next *obj.Prog) {
	a.b.AddInstruction(next)
	a.instructions++
}

// NewProg returns a fresh obj.Prog to be filled and passed to AddInstruction.
func (a *GolangAsmBaseAssembler) NewProg() *obj.Prog {
	return a.b.NewProg()
}

// RISCV64Assembler builds RISC-V instructions from plain register numbers.
// Register arguments are the architectural numbers 0-31, and whether they
// are general purpose or floating point depends on the instruction.
type RISCV64Assembler struct {
	*GolangAsmBaseAssembler
}

// NewRISCV64Assembler returns a RISCV64Assembler.
func NewRISCV64Assembler() (*RISCV64Assembler, error) {
	base, err := NewGolangAsmBaseAssembler("riscv64")
	if err != nil {
		return nil, err
	}
	return &RISCV64Assembler{GolangAsmBaseAssembler: base}, nil
}

func xreg(n uint8) int16 { return int16(riscv.REG_X0) + int16(n) }

func freg(n uint8) int16 { return int16(riscv.REG_F0) + int16(n) }

func isFloatMemory(as obj.As) bool {
	switch as {
	case riscv.AFLW, riscv.AFLD, riscv.AFSW, riscv.AFSD:
		return true
	}
	return false
}

// CompileRegisterToRegister adds an R-type instruction computing rd = rs1 `as` rs2.
func (a *RISCV64Assembler) CompileRegisterToRegister(as obj.As, rs1, rs2, rd uint8) {
	p := a.NewProg()
	p.As = as
	p.From.Type = obj.TYPE_REG
	p.From.Reg = xreg(rs2)
	p.Reg = xreg(rs1)
	p.To.Type = obj.TYPE_REG
	p.To.Reg = xreg(rd)
	a.AddInstruction(p)
}

// CompileConstToRegister adds an I-type instruction computing rd = rs1 `as` imm.
func (a *RISCV64Assembler) CompileConstToRegister(as obj.As, imm int64, rs1, rd uint8) {
	p := a.NewProg()
	p.As = as
	p.From.Type = obj.TYPE_CONST
	p.From.Offset = imm
	p.Reg = xreg(rs1)
	p.To.Type = obj.TYPE_REG
	p.To.Reg = xreg(rd)
	a.AddInstruction(p)
}

// CompileMemoryToRegister adds a load of rd from offset(base). rd is a
// floating point register for FLW and FLD.
func (a *RISCV64Assembler) CompileMemoryToRegister(as obj.As, base uint8, offset int64, rd uint8) {
	p := a.NewProg()
	p.As = as
	p.From.Type = obj.TYPE_MEM
	p.From.Reg = xreg(base)
	p.From.Offset = offset
	p.To.Type = obj.TYPE_REG
	if isFloatMemory(as) {
		p.To.Reg = freg(rd)
	} else {
		p.To.Reg = xreg(rd)
	}
	a.AddInstruction(p)
}

// CompileRegisterToMemory adds a store of src to offset(base). src is a
// floating point register for FSW and FSD.
func (a *RISCV64Assembler) CompileRegisterToMemory(as obj.As, src, base uint8, offset int64) {
	p := a.NewProg()
	p.As = as
	p.From.Type = obj.TYPE_REG
	if isFloatMemory(as) {
		p.From.Reg = freg(src)
	} else {
		p.From.Reg = xreg(src)
	}
	p.To.Type = obj.TYPE_MEM
	p.To.Reg = xreg(base)
	p.To.Offset = offset
	a.AddInstruction(p)
}

// CompileUpperImmediate adds LUI or AUIPC of the signed 20-bit imm into rd.
func (a *RISCV64Assembler) CompileUpperImmediate(as obj.As, imm int64, rd uint8) {
	p := a.NewProg()
	p.As = as
	p.From.Type = obj.TYPE_CONST
	p.From.Offset = imm
	p.To.Type = obj.TYPE_REG
	p.To.Reg = xreg(rd)
	a.AddInstruction(p)
}

// CompileBranch adds a conditional branch comparing rs1 with rs2 and jumping
// offset bytes away from the branch itself.
func (a *RISCV64Assembler) CompileBranch(as obj.As, rs1, rs2 uint8, offset int64) {
	p := a.NewProg()
	p.As = as
	// golang-asm places From in the rs1 field of B-type instructions.
	p.From.Type = obj.TYPE_REG
	p.From.Reg = xreg(rs1)
	p.Reg = xreg(rs2)
	p.To.Type = obj.TYPE_BRANCH
	p.To.Offset = offset
	a.AddInstruction(p)
}

// CompileJump adds JAL linking into rd and jumping offset bytes away.
func (a *RISCV64Assembler) CompileJump(rd uint8, offset int64) {
	p := a.NewProg()
	p.As = riscv.AJAL
	p.From.Type = obj.TYPE_REG
	p.From.Reg = xreg(rd)
	p.To.Type = obj.TYPE_BRANCH
	p.To.Offset = offset
	a.AddInstruction(p)
}
