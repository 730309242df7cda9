package arm

import (
	"strings"
	"testing"

	"github.com/emutools/objdiff/pkg/arch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_ArmModeDecodesFourByteWord(t *testing.T) {
	// mov r0, r0 (AL condition), little-endian word 0xE1A00000.
	code := []byte{0x00, 0x00, 0xA0, 0xE1}
	inst, err := decoder{}.Decode(code, 0x8000, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, inst.Size)
	assert.True(t, strings.EqualFold(inst.Mnemonic, "mov"))
}

func TestDecode_FallsBackToThumbModeForTwoByteInput(t *testing.T) {
	// mov r8, r8 (thumb nop idiom), little-endian halfword 0x46C0.
	code := []byte{0xC0, 0x46}
	inst, err := decoder{}.Decode(code, 0x8000, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, inst.Size)
}

func TestDecode_TooShortReturnsFormatError(t *testing.T) {
	_, err := decoder{}.Decode([]byte{0x00}, 0, nil)
	require.Error(t, err)
}

func TestImplicitAddend_ReadsLittleEndianSignedWord(t *testing.T) {
	data := []byte{0xfc, 0xff, 0xff, 0xff}
	assert.Equal(t, int64(-4), implicitAddend(data, 0, 0))
}

func TestImplicitAddend_OutOfBoundsReturnsZero(t *testing.T) {
	assert.Equal(t, int64(0), implicitAddend([]byte{0x00}, 0, 0))
}

func TestDecodeHinted_ARMHintDecodesFourByteWord(t *testing.T) {
	code := []byte{0x00, 0x00, 0xA0, 0xE1}
	inst, err := decoder{}.DecodeHinted(code, 0x8000, nil, arch.HintARM)
	require.NoError(t, err)
	assert.Equal(t, 4, inst.Size)
}

func TestDecodeHinted_ThumbHintDecodesTwoByteHalfword(t *testing.T) {
	code := []byte{0xC0, 0x46}
	inst, err := decoder{}.DecodeHinted(code, 0x8000, nil, arch.HintThumb)
	require.NoError(t, err)
	assert.Equal(t, 2, inst.Size)
}

func TestDecodeHinted_DataHintAlwaysFails(t *testing.T) {
	code := []byte{0x00, 0x00, 0xA0, 0xE1}
	_, err := decoder{}.DecodeHinted(code, 0x8000, nil, arch.HintData)
	require.Error(t, err)
}
