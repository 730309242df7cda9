package arch_test

import (
	"errors"
	"testing"

	"github.com/emutools/objdiff/pkg/arch"
	"github.com/emutools/objdiff/pkg/obj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedWidthDecoder decodes every instruction as Width bytes, unless the
// first byte equals FailOn, in which case it reports a decode error so tests
// can exercise DecodeRange's 1-byte raw-fallback behavior.
type fixedWidthDecoder struct {
	Width  int
	FailOn byte
}

func (d fixedWidthDecoder) Decode(code []byte, addr uint64, rel *obj.Relocation) (arch.Instruction, error) {
	if len(code) == 0 {
		return arch.Instruction{}, errors.New("empty")
	}
	if code[0] == d.FailOn {
		return arch.Instruction{}, errors.New("bad opcode")
	}
	width := d.Width
	if width > len(code) {
		width = len(code)
	}
	return arch.Instruction{Address: addr, Size: width, Mnemonic: "op"}, nil
}

func TestDecodeRange_DecodesSequentialInstructions(t *testing.T) {
	arch.Register(obj.ArchPPC, fixedWidthDecoder{Width: 4, FailOn: 0xff})

	o := &obj.Object{
		Architecture: obj.ArchPPC,
		Sections:     []obj.Section{{Address: 0, Size: 12, Data: make([]byte, 12)}},
	}
	sym := obj.Symbol{Address: 0, Size: 12, Section: 0}

	insts, err := arch.DecodeRange(o, sym)
	require.NoError(t, err)
	require.Len(t, insts, 3)
	assert.Equal(t, uint64(0), insts[0].Address)
	assert.Equal(t, uint64(4), insts[1].Address)
	assert.Equal(t, uint64(8), insts[2].Address)
}

func TestDecodeRange_FallsBackToOneRawByteOnDecodeFailure(t *testing.T) {
	arch.Register(obj.ArchPPC, fixedWidthDecoder{Width: 4, FailOn: 0xff})

	data := []byte{0x00, 0x00, 0x00, 0x00, 0xff}
	o := &obj.Object{
		Architecture: obj.ArchPPC,
		Sections:     []obj.Section{{Address: 0, Size: uint64(len(data)), Data: data}},
	}
	sym := obj.Symbol{Address: 0, Size: uint64(len(data)), Section: 0}

	insts, err := arch.DecodeRange(o, sym)
	require.NoError(t, err)
	require.Len(t, insts, 2)
	assert.Equal(t, "op", insts[0].Mnemonic)
	assert.Equal(t, 4, insts[0].Size)
	assert.Equal(t, ".byte", insts[1].Mnemonic)
	assert.Equal(t, 1, insts[1].Size)
	assert.Equal(t, uint64(4), insts[1].Address)
}

func TestDecodeRange_UnsupportedArchitectureReturnsError(t *testing.T) {
	o := &obj.Object{Architecture: obj.Architecture(99)}
	_, err := arch.DecodeRange(o, obj.Symbol{})
	require.Error(t, err)
	assert.ErrorIs(t, err, obj.ErrUnsupported)
}

// hintRecordingDecoder decodes every instruction as 2 bytes and records the
// ModeHint DecodeRange passed in at each address, so tests can assert on the
// ARM mapping-symbol pre-pass without depending on real armasm encodings.
type hintRecordingDecoder struct {
	hints map[uint64]arch.ModeHint
}

func (d hintRecordingDecoder) Decode(code []byte, addr uint64, rel *obj.Relocation) (arch.Instruction, error) {
	return d.DecodeHinted(code, addr, rel, arch.HintNone)
}

func (d hintRecordingDecoder) DecodeHinted(code []byte, addr uint64, rel *obj.Relocation, hint arch.ModeHint) (arch.Instruction, error) {
	d.hints[addr] = hint
	width := 2
	if hint == arch.HintARM {
		width = 4
	}
	if width > len(code) {
		width = len(code)
	}
	return arch.Instruction{Address: addr, Size: width, Mnemonic: "op"}, nil
}

// TestDecodeRange_ARMMappingSymbolsDriveModeHints covers the spec's ARM
// mapping-symbol scenario: "$a" at 0x0, "$t" at 0x10, "$a" at 0x20 over a
// function spanning 0x0-0x30 decodes 4-byte ARM, then 2-byte Thumb, then
// 4-byte ARM again.
func TestDecodeRange_ARMMappingSymbolsDriveModeHints(t *testing.T) {
	hints := map[uint64]arch.ModeHint{}
	arch.Register(obj.ArchARM, hintRecordingDecoder{hints: hints})

	o := &obj.Object{
		Architecture: obj.ArchARM,
		Sections:     []obj.Section{{Address: 0, Size: 0x30, Data: make([]byte, 0x30)}},
		Symbols: []obj.Symbol{
			{Name: "$a", Address: 0x0, Section: 0},
			{Name: "$t", Address: 0x10, Section: 0},
			{Name: "$a", Address: 0x20, Section: 0},
			{Name: "func", Address: 0x0, Size: 0x30, Section: 0, Kind: obj.SymbolFunction},
		},
	}
	sym := obj.Symbol{Address: 0, Size: 0x30, Section: 0}

	insts, err := arch.DecodeRange(o, sym)
	require.NoError(t, err)

	var addrs []uint64
	for _, in := range insts {
		addrs = append(addrs, in.Address)
	}
	assert.Equal(t, []uint64{0x0, 0x4, 0x8, 0xc, 0x10, 0x12, 0x14, 0x16, 0x18, 0x1a, 0x1c, 0x1e, 0x20, 0x24, 0x28, 0x2c}, addrs)
	assert.Equal(t, arch.HintARM, hints[0x0])
	assert.Equal(t, arch.HintThumb, hints[0x10])
	assert.Equal(t, arch.HintARM, hints[0x20])
}
