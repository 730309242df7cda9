package flow

import (
	"encoding/binary"
	"testing"

	"github.com/emutools/objdiff/pkg/arch"
	"github.com/emutools/objdiff/pkg/obj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin(t *testing.T) {
	a := Value{Kind: IntConstant, Int: 5}
	assert.Equal(t, a, Join(a, a))
	assert.Equal(t, a, Join(Value{Kind: Unknown}, a))
	assert.Equal(t, a, Join(a, Value{Kind: Unknown}))
	assert.Equal(t, Value{Kind: Variable}, Join(a, Value{Kind: IntConstant, Int: 6}))
}

func TestAnalyze_Empty(t *testing.T) {
	table := Analyze(nil, nil)
	assert.Empty(t, table)
}

func TestAnalyze_InputRegisterPropagatesThroughMove(t *testing.T) {
	insts := []arch.Instruction{
		// The decoder never emits "mr"; a register move is "or rA,rB,rB".
		{Address: 0, Mnemonic: "or", Operands: []arch.Operand{
			{Kind: arch.OperandRegister, Register: "r10"},
			{Kind: arch.OperandRegister, Register: "r3"},
			{Kind: arch.OperandRegister, Register: "r3"},
		}},
		{Address: 4, Mnemonic: "addi", Operands: []arch.Operand{
			{Kind: arch.OperandRegister, Register: "r11"},
			{Kind: arch.OperandRegister, Register: "r10"},
			{Kind: arch.OperandImmediate, Immediate: 4},
		}},
	}
	table := Analyze(&obj.Object{}, insts)
	v, ok := table[obj.FlowKey{Address: 4, OperandIdx: 1}]
	require.True(t, ok)
	assert.Equal(t, "input r3", v)
}

func TestAnalyze_SaveRestoreStubDoesNotClobberState(t *testing.T) {
	o := &obj.Object{Symbols: []obj.Symbol{{Name: "_savegpr_14"}}}
	insts := []arch.Instruction{
		{Address: 0, Mnemonic: "bl", Operands: []arch.Operand{
			{Kind: arch.OperandBranchTarget, HasReloc: true, RelocTarget: 0},
		}},
		{Address: 4, Mnemonic: "addi", Operands: []arch.Operand{
			{Kind: arch.OperandRegister, Register: "r11"},
			{Kind: arch.OperandRegister, Register: "r3"},
			{Kind: arch.OperandImmediate, Immediate: 4},
		}},
	}
	table := Analyze(o, insts)
	v, ok := table[obj.FlowKey{Address: 4, OperandIdx: 1}]
	require.True(t, ok)
	assert.Equal(t, "input r3", v)
}

func TestAnalyze_BranchJoinWidensToVariable(t *testing.T) {
	insts := []arch.Instruction{
		{Address: 0, Mnemonic: "beq", Operands: []arch.Operand{
			{Kind: arch.OperandBranchTarget, TargetAddr: 12},
		}},
		{Address: 4, Mnemonic: "or", Operands: []arch.Operand{
			{Kind: arch.OperandRegister, Register: "r10"},
			{Kind: arch.OperandRegister, Register: "r3"}, // r10 := InputRegister(r3)
			{Kind: arch.OperandRegister, Register: "r3"},
		}},
		{Address: 8, Mnemonic: "b", Operands: []arch.Operand{
			{Kind: arch.OperandBranchTarget, TargetAddr: 16},
		}},
		{Address: 12, Mnemonic: "or", Operands: []arch.Operand{
			{Kind: arch.OperandRegister, Register: "r10"},
			{Kind: arch.OperandRegister, Register: "r4"}, // r10 := InputRegister(r4), a different value
			{Kind: arch.OperandRegister, Register: "r4"},
		}},
		{Address: 16, Mnemonic: "addi", Operands: []arch.Operand{
			{Kind: arch.OperandRegister, Register: "r11"},
			{Kind: arch.OperandRegister, Register: "r10"}, // r10 differs across the two incoming edges
			{Kind: arch.OperandImmediate, Immediate: 3},
		}},
	}
	table := Analyze(&obj.Object{}, insts)
	_, annotated := table[obj.FlowKey{Address: 16, OperandIdx: 1}]
	assert.False(t, annotated, "a register holding different values on each incoming edge widens to Variable and should not be annotated")
}

// TestAnalyze_FloatLoadAnnotatesConstant covers the PPC float-load scenario:
// "lfs f1,0(r2)" relocated onto a 4-byte Data symbol whose bytes spell out
// 1.0f big-endian must annotate the memory operand with "1.0f", not the bare
// symbol name.
func TestAnalyze_FloatLoadAnnotatesConstant(t *testing.T) {
	o := &obj.Object{
		ByteOrder: binary.BigEndian,
		Sections: []obj.Section{
			{Kind: obj.SectionData, Address: 0x1000, Data: []byte{0x3F, 0x80, 0x00, 0x00}},
		},
		Symbols: []obj.Symbol{
			{Name: "one_f", Section: 0, Address: 0x1000, Size: 4},
		},
	}
	insts := []arch.Instruction{
		{Address: 0, Mnemonic: "lfs", Operands: []arch.Operand{
			{Kind: arch.OperandRegister, Register: "f1"},
			{Kind: arch.OperandMemory, Displacement: 0, HasReloc: true, RelocTarget: 0},
			{Kind: arch.OperandRegister, Register: "r2"},
		}},
	}
	table := Analyze(o, insts)
	v, ok := table[obj.FlowKey{Address: 0, OperandIdx: 1}]
	require.True(t, ok)
	assert.Equal(t, "1.0f", v)
}

func TestAnalyze_StoreDoesNotClobberTrackedRegisters(t *testing.T) {
	insts := []arch.Instruction{
		{Address: 0, Mnemonic: "stw", Operands: []arch.Operand{
			{Kind: arch.OperandRegister, Register: "r3"},
			{Kind: arch.OperandMemory, Displacement: 4, BaseRegister: "r1"},
		}},
		{Address: 4, Mnemonic: "addi", Operands: []arch.Operand{
			{Kind: arch.OperandRegister, Register: "r11"},
			{Kind: arch.OperandRegister, Register: "r3"},
			{Kind: arch.OperandImmediate, Immediate: 4},
		}},
	}
	table := Analyze(&obj.Object{}, insts)
	v, ok := table[obj.FlowKey{Address: 4, OperandIdx: 1}]
	require.True(t, ok)
	assert.Equal(t, "input r3", v)
}

func TestAnalyze_LiteralImmediateFromR0(t *testing.T) {
	insts := []arch.Instruction{
		{Address: 0, Mnemonic: "addi", Operands: []arch.Operand{
			{Kind: arch.OperandRegister, Register: "r10"},
			{Kind: arch.OperandRegister, Register: "r0"},
			{Kind: arch.OperandImmediate, Immediate: 0x1234},
		}},
		{Address: 4, Mnemonic: "addi", Operands: []arch.Operand{
			{Kind: arch.OperandRegister, Register: "r11"},
			{Kind: arch.OperandRegister, Register: "r10"},
			{Kind: arch.OperandImmediate, Immediate: 1},
		}},
	}
	table := Analyze(&obj.Object{}, insts)
	v, ok := table[obj.FlowKey{Address: 4, OperandIdx: 1}]
	require.True(t, ok)
	assert.Equal(t, "0x1234", v)
}
