package ppc

import (
	"testing"

	"github.com/emutools/objdiff/pkg/arch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Addi(t *testing.T) {
	// addi r3, r3, 4
	code := []byte{0x38, 0x63, 0x00, 0x04}
	inst, err := decoder{}.Decode(code, 0x1000, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, inst.Size)
	assert.Equal(t, uint64(0x1000), inst.Address)
	require.Len(t, inst.Operands, 3)
	assert.Equal(t, arch.OperandRegister, inst.Operands[0].Kind)
	assert.Equal(t, arch.OperandImmediate, inst.Operands[2].Kind)
	assert.Equal(t, int64(4), inst.Operands[2].Immediate)
}

func TestDecode_Blr(t *testing.T) {
	code := []byte{0x4e, 0x80, 0x00, 0x20}
	inst, err := decoder{}.Decode(code, 0x2000, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, inst.Size)
}

func TestDecode_TruncatedInputIsFormatError(t *testing.T) {
	_, err := decoder{}.Decode([]byte{0x00, 0x01}, 0, nil)
	require.Error(t, err)
}

func TestImplicitAddend_ReadsLowHalfwordAsSignedInt16(t *testing.T) {
	data := []byte{0x38, 0x63, 0xff, 0xfc} // low halfword = -4
	got := implicitAddend(data, 0, 0)
	assert.Equal(t, int64(-4), got)
}

func TestImplicitAddend_OutOfBoundsOffsetReturnsZero(t *testing.T) {
	got := implicitAddend([]byte{0x00, 0x01}, 0, 0)
	assert.Equal(t, int64(0), got)
}
