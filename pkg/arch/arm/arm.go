// Package arm decodes ARM and Thumb instructions using
// golang.org/x/arch/arm/armasm. Mode (ARM vs Thumb vs Data) is not carried
// on the plain Decoder interface, so this decoder also implements
// arch.HintedDecoder: pkg/arch.DecodeRange runs a pre-pass over a section's
// "$a"/"$t"/"$d" ELF mapping symbols and passes the mode that applies at
// each address, rather than leaving decoding to blind trial-and-error.
// Decode (the unhinted path) still falls back to ARM-then-Thumb trial
// decoding, for callers that bypass DecodeRange.
package arm

import (
	"encoding/binary"

	"golang.org/x/arch/arm/armasm"

	"github.com/emutools/objdiff/pkg/arch"
	"github.com/emutools/objdiff/pkg/obj"
)

func init() {
	arch.Register(obj.ArchARM, decoder{})
	obj.RegisterImplicitAddend(obj.ArchARM, implicitAddend)
}

type decoder struct{}

func (decoder) Decode(code []byte, addr uint64, rel *obj.Relocation) (arch.Instruction, error) {
	return decodeTrial(code, addr, rel)
}

// DecodeHinted implements arch.HintedDecoder using the ARM/Thumb/Data mode
// pkg/arch.DecodeRange derived from the section's mapping symbols.
func (decoder) DecodeHinted(code []byte, addr uint64, rel *obj.Relocation, hint arch.ModeHint) (arch.Instruction, error) {
	switch hint {
	case arch.HintData:
		// A "$d" run is literal data, not instructions; returning an error
		// makes DecodeRange fall back to its one-byte raw-row behavior.
		return arch.Instruction{}, obj.ErrUnsupported
	case arch.HintThumb:
		return decodeThumb(code, addr, rel)
	case arch.HintARM:
		return decodeARM(code, addr, rel)
	default:
		return decodeTrial(code, addr, rel)
	}
}

func decodeARM(code []byte, addr uint64, rel *obj.Relocation) (arch.Instruction, error) {
	if len(code) < 4 {
		return arch.Instruction{}, obj.ErrFormat
	}
	inst, err := armasm.Decode(code[:4], armasm.ModeARM)
	if err != nil {
		return arch.Instruction{}, err
	}
	return convert(inst, code, addr, rel), nil
}

// decodeThumb tries the 4-byte window first: a Thumb-2 32-bit instruction
// (notably a "bl" half-pair) only decodes correctly when armasm sees both
// halfwords together, and trying the narrower 2-byte window first would
// read just the first half as if it stood alone. A function whose range
// ends mid-pair has fewer than 4 bytes left and falls through to the
// 2-byte attempt, which fails cleanly and lets DecodeRange emit raw bytes
// for the truncated half instead of misdecoding adjacent data.
func decodeThumb(code []byte, addr uint64, rel *obj.Relocation) (arch.Instruction, error) {
	if len(code) >= 4 {
		if inst, err := armasm.Decode(code[:4], armasm.ModeThumb); err == nil && inst.Len == 4 {
			return convert(inst, code, addr, rel), nil
		}
	}
	if len(code) >= 2 {
		if inst, err := armasm.Decode(code[:2], armasm.ModeThumb); err == nil {
			return convert(inst, code, addr, rel), nil
		}
	}
	return arch.Instruction{}, obj.ErrFormat
}

func decodeTrial(code []byte, addr uint64, rel *obj.Relocation) (arch.Instruction, error) {
	if len(code) >= 4 {
		if inst, err := armasm.Decode(code[:4], armasm.ModeARM); err == nil {
			return convert(inst, code, addr, rel), nil
		}
	}
	if len(code) >= 2 {
		if inst, err := armasm.Decode(code[:2], armasm.ModeThumb); err == nil {
			return convert(inst, code, addr, rel), nil
		}
		if len(code) >= 4 {
			if inst, err := armasm.Decode(code[:4], armasm.ModeThumb); err == nil {
				return convert(inst, code, addr, rel), nil
			}
		}
	}
	return arch.Instruction{}, obj.ErrFormat
}

func convert(inst armasm.Inst, code []byte, addr uint64, rel *obj.Relocation) arch.Instruction {
	out := arch.Instruction{
		Address:  addr,
		Size:     inst.Len,
		Mnemonic: inst.Op.String(),
		Raw:      code[:inst.Len],
	}
	for _, a := range inst.Args {
		if a == nil {
			continue
		}
		out.Operands = append(out.Operands, convertOperand(a, rel))
	}
	return out
}

func convertOperand(a armasm.Arg, rel *obj.Relocation) arch.Operand {
	switch v := a.(type) {
	case armasm.Reg:
		return arch.Operand{Kind: arch.OperandRegister, Register: v.String()}
	case armasm.Imm:
		if rel != nil {
			return arch.Operand{Kind: arch.OperandSymbol, Immediate: int64(v)}
		}
		return arch.Operand{Kind: arch.OperandImmediate, Immediate: int64(v)}
	case armasm.PCRel:
		return arch.Operand{Kind: arch.OperandBranchTarget, TargetAddr: uint64(int64(v))}
	case armasm.Mem:
		return arch.Operand{Kind: arch.OperandMemory, BaseRegister: v.Base.String(), Displacement: int64(v.Offset)}
	default:
		return arch.Operand{Kind: arch.OperandImmediate, SymbolName: a.String()}
	}
}

// implicitAddend reads a 32-bit little-endian word for REL-style ARM
// relocations that carry their addend in the patched instruction itself.
func implicitAddend(sectionData []byte, offset uint64, relType uint32) int64 {
	if int(offset)+4 > len(sectionData) {
		return 0
	}
	return int64(int32(binary.LittleEndian.Uint32(sectionData[offset : offset+4])))
}
