package obj

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSection_RelocationsInRange(t *testing.T) {
	s := Section{Relocations: []Relocation{
		{Offset: 0}, {Offset: 4}, {Offset: 8}, {Offset: 16},
	}}
	got := s.RelocationsInRange(4, 8)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(4), got[0].Offset)
	assert.Equal(t, uint64(8), got[1].Offset)
}

func TestSection_RelocationAt(t *testing.T) {
	s := Section{Relocations: []Relocation{{Offset: 4, Target: 2}}}

	r, ok := s.RelocationAt(4, 4)
	require.True(t, ok)
	assert.Equal(t, SymbolIndex(2), r.Target)

	_, ok = s.RelocationAt(8, 4)
	assert.False(t, ok)
}

func TestClassifySection(t *testing.T) {
	assert.Equal(t, SectionUnknown, classifySection(false, false, false))
	assert.Equal(t, SectionCode, classifySection(true, true, false))
	assert.Equal(t, SectionBss, classifySection(true, false, true))
	assert.Equal(t, SectionData, classifySection(true, false, false))
}

func TestSectionKind_String(t *testing.T) {
	assert.Equal(t, "code", SectionCode.String())
	assert.Equal(t, "data", SectionData.String())
	assert.Equal(t, "bss", SectionBss.String())
	assert.Equal(t, "common", SectionCommon.String())
	assert.Equal(t, "unknown", SectionUnknown.String())
}
