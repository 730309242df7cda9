// Package mips hand-decodes the classic 32-bit MIPS I/II instruction set
// (no Go ecosystem package covers MIPS disassembly, unlike PPC/ARM/x86).
// Coverage targets what PS1/PS2/N64-era compilers actually emit: R-type,
// I-type and J-type encodings across the arithmetic, load/store and branch
// families. The only pseudo-op rendered is nop (sll zero, zero, 0); move,
// li and b forms are shown as the underlying or/addu, addiu/ori and beq
// instructions.
package mips

import (
	"encoding/binary"

	"github.com/emutools/objdiff/pkg/arch"
	"github.com/emutools/objdiff/pkg/obj"
	"github.com/emutools/objdiff/pkg/utils"
)

func init() {
	arch.Register(obj.ArchMIPS, decoder{})
	obj.RegisterImplicitAddend(obj.ArchMIPS, implicitAddend)
}

type decoder struct{}

const instructionSize = 4

var registerNames = [32]string{
	"zero", "at", "v0", "v1", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "k0", "k1", "gp", "sp", "fp", "ra",
}

func regName(r uint32) string { return registerNames[r&0x1f] }

func (decoder) Decode(code []byte, addr uint64, rel *obj.Relocation) (arch.Instruction, error) {
	if len(code) < instructionSize {
		return arch.Instruction{}, obj.ErrFormat
	}
	word := binary.BigEndian.Uint32(code[:instructionSize])
	bv := utils.CreateBitView(&word)

	op := bv.Read(26, 6)
	rs := bv.Read(21, 5)
	rt := bv.Read(16, 5)
	rd := bv.Read(11, 5)
	shamt := bv.Read(6, 5)
	funct := bv.Read(0, 6)
	imm := int32(int16(bv.Read(0, 16)))
	target := bv.Read(0, 26)

	inst := arch.Instruction{Address: addr, Size: instructionSize, Raw: code[:instructionSize]}

	switch op {
	case 0x00: // SPECIAL (R-type)
		decodeSpecial(&inst, rs, rt, rd, shamt, funct)
	case 0x02, 0x03: // J, JAL
		inst.Mnemonic = map[uint32]string{0x02: "j", 0x03: "jal"}[op]
		inst.Operands = []arch.Operand{{Kind: arch.OperandBranchTarget, TargetAddr: (addr &^ 0xfffffff) | uint64(target<<2)}}
	case 0x04, 0x05, 0x06, 0x07: // BEQ, BNE, BLEZ, BGTZ
		inst.Mnemonic = map[uint32]string{0x04: "beq", 0x05: "bne", 0x06: "blez", 0x07: "bgtz"}[op]
		branchOperands(&inst, rs, rt, op, addr, imm)
	case 0x08, 0x09: // ADDI, ADDIU
		inst.Mnemonic = map[uint32]string{0x08: "addi", 0x09: "addiu"}[op]
		iTypeArith(&inst, rt, rs, imm, rel)
	case 0x0a, 0x0b: // SLTI, SLTIU
		inst.Mnemonic = map[uint32]string{0x0a: "slti", 0x0b: "sltiu"}[op]
		iTypeArith(&inst, rt, rs, imm, rel)
	case 0x0c, 0x0d, 0x0e: // ANDI, ORI, XORI
		inst.Mnemonic = map[uint32]string{0x0c: "andi", 0x0d: "ori", 0x0e: "xori"}[op]
		iTypeArith(&inst, rt, rs, imm, rel)
	case 0x0f: // LUI
		inst.Mnemonic = "lui"
		inst.Operands = []arch.Operand{
			{Kind: arch.OperandRegister, Register: regName(rt)},
			immOrSymbol(imm, rel),
		}
	case 0x20, 0x21, 0x22, 0x23, 0x24, 0x25, 0x26: // LB..LWR loads
		inst.Mnemonic = loadOpName(op)
		loadStoreOperands(&inst, rt, rs, imm, rel)
	case 0x28, 0x29, 0x2a, 0x2b, 0x2e: // SB, SH, SWL, SW, SWR
		inst.Mnemonic = storeOpName(op)
		loadStoreOperands(&inst, rt, rs, imm, rel)
	default:
		return arch.Instruction{}, obj.ErrUnsupported
	}

	if inst.Mnemonic == "" {
		return arch.Instruction{}, obj.ErrUnsupported
	}
	return inst, nil
}

func decodeSpecial(inst *arch.Instruction, rs, rt, rd, shamt, funct uint32) {
	switch funct {
	case 0x00: // SLL
		if rd == 0 && rt == 0 && shamt == 0 {
			inst.Mnemonic = "nop"
			return
		}
		inst.Mnemonic = "sll"
		inst.Operands = shiftOperands(rd, rt, shamt)
	case 0x02: // SRL
		inst.Mnemonic = "srl"
		inst.Operands = shiftOperands(rd, rt, shamt)
	case 0x03: // SRA
		inst.Mnemonic = "sra"
		inst.Operands = shiftOperands(rd, rt, shamt)
	case 0x08: // JR
		inst.Mnemonic = "jr"
		inst.Operands = []arch.Operand{{Kind: arch.OperandRegister, Register: regName(rs)}}
	case 0x09: // JALR
		inst.Mnemonic = "jalr"
		inst.Operands = []arch.Operand{{Kind: arch.OperandRegister, Register: regName(rd)}, {Kind: arch.OperandRegister, Register: regName(rs)}}
	case 0x20, 0x21: // ADD, ADDU
		inst.Mnemonic = map[uint32]string{0x20: "add", 0x21: "addu"}[funct]
		inst.Operands = rTypeOperands(rd, rs, rt)
	case 0x22, 0x23: // SUB, SUBU
		inst.Mnemonic = map[uint32]string{0x22: "sub", 0x23: "subu"}[funct]
		inst.Operands = rTypeOperands(rd, rs, rt)
	case 0x24: // AND
		inst.Mnemonic = "and"
		inst.Operands = rTypeOperands(rd, rs, rt)
	case 0x25: // OR
		inst.Mnemonic = "or"
		inst.Operands = rTypeOperands(rd, rs, rt)
	case 0x26: // XOR
		inst.Mnemonic = "xor"
		inst.Operands = rTypeOperands(rd, rs, rt)
	case 0x27: // NOR
		inst.Mnemonic = "nor"
		inst.Operands = rTypeOperands(rd, rs, rt)
	case 0x2a, 0x2b: // SLT, SLTU
		inst.Mnemonic = map[uint32]string{0x2a: "slt", 0x2b: "sltu"}[funct]
		inst.Operands = rTypeOperands(rd, rs, rt)
	}
}

func shiftOperands(rd, rt, shamt uint32) []arch.Operand {
	return []arch.Operand{
		{Kind: arch.OperandRegister, Register: regName(rd)},
		{Kind: arch.OperandRegister, Register: regName(rt)},
		{Kind: arch.OperandImmediate, Immediate: int64(shamt)},
	}
}

func rTypeOperands(rd, rs, rt uint32) []arch.Operand {
	return []arch.Operand{
		{Kind: arch.OperandRegister, Register: regName(rd)},
		{Kind: arch.OperandRegister, Register: regName(rs)},
		{Kind: arch.OperandRegister, Register: regName(rt)},
	}
}

func branchOperands(inst *arch.Instruction, rs, rt, op uint32, addr uint64, imm int32) {
	target := arch.Operand{Kind: arch.OperandBranchTarget, TargetAddr: addr + 4 + uint64(int64(imm)<<2)}
	switch op {
	case 0x04, 0x05: // BEQ, BNE carry both registers
		inst.Operands = []arch.Operand{{Kind: arch.OperandRegister, Register: regName(rs)}, {Kind: arch.OperandRegister, Register: regName(rt)}, target}
	default: // BLEZ, BGTZ only carry rs
		inst.Operands = []arch.Operand{{Kind: arch.OperandRegister, Register: regName(rs)}, target}
	}
}

func iTypeArith(inst *arch.Instruction, rt, rs uint32, imm int32, rel *obj.Relocation) {
	inst.Operands = []arch.Operand{
		{Kind: arch.OperandRegister, Register: regName(rt)},
		{Kind: arch.OperandRegister, Register: regName(rs)},
		immOrSymbol(imm, rel),
	}
}

func loadStoreOperands(inst *arch.Instruction, rt, rs uint32, imm int32, rel *obj.Relocation) {
	_ = rel
	inst.Operands = []arch.Operand{
		{Kind: arch.OperandRegister, Register: regName(rt)},
		{Kind: arch.OperandMemory, BaseRegister: regName(rs), Displacement: int64(imm)},
	}
}

func immOrSymbol(imm int32, rel *obj.Relocation) arch.Operand {
	if rel != nil {
		return arch.Operand{Kind: arch.OperandSymbol, Immediate: int64(imm)}
	}
	return arch.Operand{Kind: arch.OperandImmediate, Immediate: int64(imm)}
}

func loadOpName(op uint32) string {
	names := map[uint32]string{0x20: "lb", 0x21: "lh", 0x22: "lwl", 0x23: "lw", 0x24: "lbu", 0x25: "lhu", 0x26: "lwr"}
	return names[op]
}

func storeOpName(op uint32) string {
	names := map[uint32]string{0x28: "sb", 0x29: "sh", 0x2a: "swl", 0x2b: "sw", 0x2e: "swr"}
	return names[op]
}

// implicitAddend reads the 16-bit immediate field of a MIPS I-type
// instruction word for REL-style relocations (R_MIPS_16/HI16/LO16 etc.)
// that omit an explicit addend.
func implicitAddend(sectionData []byte, offset uint64, relType uint32) int64 {
	if int(offset)+instructionSize > len(sectionData) {
		return 0
	}
	word := binary.BigEndian.Uint32(sectionData[offset : offset+instructionSize])
	return int64(int16(word & 0xffff))
}
