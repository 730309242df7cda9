package diff

import (
	"testing"

	"github.com/emutools/objdiff/pkg/arch"
	"github.com/emutools/objdiff/pkg/obj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffCode_IdenticalFunctionsMatch100(t *testing.T) {
	insts := []arch.Instruction{
		{Address: 0, Mnemonic: "addi", Operands: []arch.Operand{
			{Kind: arch.OperandRegister, Register: "r3"},
			{Kind: arch.OperandRegister, Register: "r3"},
			{Kind: arch.OperandImmediate, Immediate: 4},
		}},
		{Address: 4, Mnemonic: "blr"},
	}
	cd := DiffCode(nil, nil, insts, insts, CodeDiffConfig{Algorithm: AlignLCS})
	assert.Equal(t, 100.0, cd.MatchPercent)
	for _, r := range cd.Rows {
		assert.Equal(t, RowNone, r.Tag)
	}
}

func TestDiffCode_OperandMismatchColored(t *testing.T) {
	left := []arch.Instruction{
		{Address: 0, Mnemonic: "addi", Operands: []arch.Operand{
			{Kind: arch.OperandRegister, Register: "r3"},
			{Kind: arch.OperandRegister, Register: "r3"},
			{Kind: arch.OperandImmediate, Immediate: 4},
		}},
	}
	right := []arch.Instruction{
		{Address: 0, Mnemonic: "addi", Operands: []arch.Operand{
			{Kind: arch.OperandRegister, Register: "r3"},
			{Kind: arch.OperandRegister, Register: "r3"},
			{Kind: arch.OperandImmediate, Immediate: 8},
		}},
	}
	cd := DiffCode(nil, nil, left, right, CodeDiffConfig{Algorithm: AlignLCS})
	require.Len(t, cd.Rows, 1)
	assert.Equal(t, RowOpMismatch, cd.Rows[0].Tag)
	require.Len(t, cd.Rows[0].Operands, 3)
	assert.True(t, cd.Rows[0].Operands[2].Mismatch)
	assert.False(t, cd.Rows[0].Operands[0].Mismatch)
}

func TestDiffCode_InsertedInstruction(t *testing.T) {
	left := []arch.Instruction{{Address: 0, Mnemonic: "blr"}}
	right := []arch.Instruction{
		{Address: 0, Mnemonic: "nop"},
		{Address: 4, Mnemonic: "blr"},
	}
	cd := DiffCode(nil, nil, left, right, CodeDiffConfig{Algorithm: AlignLCS})
	require.Len(t, cd.Rows, 2)
	assert.Equal(t, RowInsert, cd.Rows[0].Tag)
	assert.Equal(t, RowNone, cd.Rows[1].Tag)
}

func TestDiffCode_BranchLinking(t *testing.T) {
	insts := []arch.Instruction{
		{Address: 0, Mnemonic: "b", Operands: []arch.Operand{{Kind: arch.OperandBranchTarget, TargetAddr: 8}}},
		{Address: 4, Mnemonic: "nop"},
		{Address: 8, Mnemonic: "blr"},
	}
	cd := DiffCode(nil, nil, insts, insts, CodeDiffConfig{Algorithm: AlignLCS})
	require.NotNil(t, cd.Rows[0].BranchTo)
	assert.Equal(t, 2, cd.Rows[0].BranchTo.RowIndex)
	require.Len(t, cd.Rows[2].BranchFrom, 1)
	assert.Equal(t, 0, cd.Rows[2].BranchFrom[0].RowIndex)
}

func TestDiffBss(t *testing.T) {
	left := obj.Symbol{Size: 4}
	right := obj.Symbol{Size: 4}
	assert.Equal(t, 100.0, DiffBss(left, right))

	right.Size = 8
	assert.Equal(t, 50.0, DiffBss(left, right))
}
