package x86

import (
	"strings"
	"testing"

	"github.com/emutools/objdiff/pkg/arch"
	"github.com/emutools/objdiff/pkg/obj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Nop(t *testing.T) {
	SetSyntax(SyntaxIntel)
	inst, err := decoder{}.Decode([]byte{0x90}, 0x1000, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, inst.Size)
	assert.True(t, strings.EqualFold(inst.Mnemonic, "nop"))
}

func TestDecode_ATTSyntaxStillDecodesNop(t *testing.T) {
	SetSyntax(SyntaxATT)
	defer SetSyntax(SyntaxIntel)

	inst, err := decoder{}.Decode([]byte{0x90}, 0x1000, nil)
	require.NoError(t, err)
	assert.True(t, strings.EqualFold(inst.Mnemonic, "nop"))
}

func TestDecode_EmptyInputReturnsFormatError(t *testing.T) {
	_, err := decoder{}.Decode(nil, 0, nil)
	require.Error(t, err)
}

func TestFirstWord(t *testing.T) {
	assert.Equal(t, "MOV", firstWord("MOV EAX, EBX"))
	assert.Equal(t, "NOP", firstWord("NOP"))
}

func TestImplicitAddend_ReadsLittleEndianSignedWord(t *testing.T) {
	data := []byte{0xfc, 0xff, 0xff, 0xff} // -4 little-endian
	got := implicitAddend(data, 0, 0)
	assert.Equal(t, int64(-4), got)
}

func TestImplicitAddend_OutOfBoundsReturnsZero(t *testing.T) {
	got := implicitAddend([]byte{0x00}, 0, 0)
	assert.Equal(t, int64(0), got)
}

func TestDecode_RelocationLandsOnMemoryOperandOverImmediate(t *testing.T) {
	// mov dword ptr [ebx+0x10], 0x12345678
	code := []byte{0xC7, 0x43, 0x10, 0x78, 0x56, 0x34, 0x12}
	rel := &obj.Relocation{Target: 7}
	inst, err := decoder{}.Decode(code, 0x1000, rel)
	require.NoError(t, err)
	require.Len(t, inst.Operands, 2)

	mem, imm := inst.Operands[0], inst.Operands[1]
	assert.Equal(t, arch.OperandSymbol, mem.Kind)
	assert.True(t, mem.HasReloc)
	assert.Equal(t, obj.SymbolIndex(7), mem.RelocTarget)
	assert.Equal(t, arch.OperandImmediate, imm.Kind)
	assert.False(t, imm.HasReloc)
}

func TestDecode_RelocationFallsBackToImmediate32WithoutMemoryOperand(t *testing.T) {
	// mov eax, 0x12345678
	code := []byte{0xB8, 0x78, 0x56, 0x34, 0x12}
	rel := &obj.Relocation{Target: 3}
	inst, err := decoder{}.Decode(code, 0x1000, rel)
	require.NoError(t, err)

	var found bool
	for _, op := range inst.Operands {
		if op.HasReloc {
			found = true
			assert.Equal(t, arch.OperandSymbol, op.Kind)
			assert.Equal(t, obj.SymbolIndex(3), op.RelocTarget)
		}
	}
	assert.True(t, found, "expected the retry to land the relocation on the immediate operand")
}

func TestDecode_NoRelocationLeavesOperandsPlain(t *testing.T) {
	code := []byte{0xC7, 0x43, 0x10, 0x78, 0x56, 0x34, 0x12}
	inst, err := decoder{}.Decode(code, 0x1000, nil)
	require.NoError(t, err)
	for _, op := range inst.Operands {
		assert.False(t, op.HasReloc)
		assert.NotEqual(t, arch.OperandSymbol, op.Kind)
	}
}
