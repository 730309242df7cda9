// Package ppc decodes the PowerPC 750CL instruction set objdiff targets
// (the GameCube/Wii CPU), built on golang.org/x/arch/ppc64/ppc64asm. The x/arch
// decoder targets the 64-bit ISA, a strict superset of 750CL's 32-bit
// subset, so decoding is delegated wholesale and any 64-bit-only opcode that
// surfaces is simply never emitted by a 750CL compiler in practice.
package ppc

import (
	"encoding/binary"

	"golang.org/x/arch/ppc64/ppc64asm"

	"github.com/emutools/objdiff/pkg/arch"
	"github.com/emutools/objdiff/pkg/obj"
)

func init() {
	arch.Register(obj.ArchPPC, decoder{})
	obj.RegisterImplicitAddend(obj.ArchPPC, implicitAddend)
}

type decoder struct{}

// instructionSize is fixed for PPC: every instruction is one 4-byte word.
const instructionSize = 4

func (decoder) Decode(code []byte, addr uint64, rel *obj.Relocation) (arch.Instruction, error) {
	if len(code) < instructionSize {
		return arch.Instruction{}, obj.ErrFormat
	}
	inst, err := ppc64asm.Decode(code[:instructionSize], binary.BigEndian)
	if err != nil {
		return arch.Instruction{}, err
	}

	out := arch.Instruction{
		Address:  addr,
		Size:     instructionSize,
		Mnemonic: inst.Op.String(),
		Raw:      code[:instructionSize],
	}
	for _, a := range inst.Args {
		if a == nil {
			continue
		}
		out.Operands = append(out.Operands, convertOperand(a, rel))
	}
	return out, nil
}

func convertOperand(a ppc64asm.Arg, rel *obj.Relocation) arch.Operand {
	switch v := a.(type) {
	case ppc64asm.Reg:
		return arch.Operand{Kind: arch.OperandRegister, Register: v.String()}
	case ppc64asm.CondReg:
		return arch.Operand{Kind: arch.OperandRegister, Register: v.String()}
	case ppc64asm.Imm:
		if rel != nil {
			// SymbolName stays empty here and no later stage fills it in;
			// pkg/flow resolves RelocTarget against the Object's symbol
			// table itself.
			return arch.Operand{Kind: arch.OperandSymbol, Immediate: int64(v), HasReloc: true, RelocTarget: rel.Target}
		}
		return arch.Operand{Kind: arch.OperandImmediate, Immediate: int64(v)}
	case ppc64asm.PCRel:
		op := arch.Operand{Kind: arch.OperandBranchTarget, TargetAddr: uint64(int64(v))}
		if rel != nil {
			op.HasReloc = true
			op.RelocTarget = rel.Target
		}
		return op
	case ppc64asm.Offset:
		op := arch.Operand{Kind: arch.OperandMemory, Displacement: int64(v)}
		if rel != nil {
			op.HasReloc = true
			op.RelocTarget = rel.Target
		}
		return op
	default:
		return arch.Operand{Kind: arch.OperandImmediate, SymbolName: a.String()}
	}
}

// implicitAddend reads the 16-bit immediate field out of a D-form PPC
// instruction word for relocation types that omit an explicit addend
// (classic REL-style PPC ELF relocations), per spec.md §3.
func implicitAddend(sectionData []byte, offset uint64, relType uint32) int64 {
	if int(offset)+instructionSize > len(sectionData) {
		return 0
	}
	word := binary.BigEndian.Uint32(sectionData[offset : offset+instructionSize])
	return int64(int16(word & 0xffff))
}
