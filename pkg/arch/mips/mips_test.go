package mips

import (
	"encoding/binary"
	"testing"

	"github.com/emutools/objdiff/pkg/arch"
	"github.com/emutools/objdiff/pkg/obj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func word(w uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, w)
	return b
}

func TestDecode_SllZeroZeroZeroIsNop(t *testing.T) {
	inst, err := decoder{}.Decode(word(0x00000000), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "nop", inst.Mnemonic)
}

func TestDecode_Addiu(t *testing.T) {
	// addiu t0, zero, 4
	w := (uint32(0x09) << 26) | (uint32(0) << 21) | (uint32(8) << 16) | 4
	inst, err := decoder{}.Decode(word(w), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "addiu", inst.Mnemonic)
	require.Len(t, inst.Operands, 3)
	assert.Equal(t, "t0", inst.Operands[0].Register)
	assert.Equal(t, "zero", inst.Operands[1].Register)
	assert.Equal(t, arch.OperandImmediate, inst.Operands[2].Kind)
	assert.Equal(t, int64(4), inst.Operands[2].Immediate)
}

func TestDecode_Jr(t *testing.T) {
	// jr ra
	w := (uint32(31) << 21) | 0x08
	inst, err := decoder{}.Decode(word(w), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "jr", inst.Mnemonic)
	require.Len(t, inst.Operands, 1)
	assert.Equal(t, "ra", inst.Operands[0].Register)
}

func TestDecode_Lui(t *testing.T) {
	w := (uint32(0x0f) << 26) | (uint32(8) << 16) | 0x1234
	inst, err := decoder{}.Decode(word(w), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "lui", inst.Mnemonic)
	require.Len(t, inst.Operands, 2)
	assert.Equal(t, "t0", inst.Operands[0].Register)
	assert.Equal(t, int64(0x1234), inst.Operands[1].Immediate)
}

func TestDecode_LuiWithRelocationProducesSymbolOperand(t *testing.T) {
	w := (uint32(0x0f) << 26) | (uint32(8) << 16) | 0x1234
	rel := &obj.Relocation{Target: 3}
	inst, err := decoder{}.Decode(word(w), 0, rel)
	require.NoError(t, err)
	assert.Equal(t, arch.OperandSymbol, inst.Operands[1].Kind)
}

func TestDecode_BranchComputesTargetAddress(t *testing.T) {
	// beq zero, zero, +1 (word offset) at address 0x100
	w := (uint32(0x04) << 26) | 1
	inst, err := decoder{}.Decode(word(w), 0x100, nil)
	require.NoError(t, err)
	assert.Equal(t, "beq", inst.Mnemonic)
	last := inst.Operands[len(inst.Operands)-1]
	assert.Equal(t, arch.OperandBranchTarget, last.Kind)
	assert.Equal(t, uint64(0x100+4+4), last.TargetAddr)
}

func TestDecode_UnsupportedOpcodeReturnsError(t *testing.T) {
	w := uint32(0x3f) << 26 // opcode 0x3f is not in the decode table
	_, err := decoder{}.Decode(word(w), 0, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, obj.ErrUnsupported)
}

func TestDecode_TruncatedInputIsFormatError(t *testing.T) {
	_, err := decoder{}.Decode([]byte{0x00, 0x00}, 0, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, obj.ErrFormat)
}

func TestImplicitAddend(t *testing.T) {
	data := word(0x24020004)
	assert.Equal(t, int64(4), implicitAddend(data, 0, 0))
}
