package match

import (
	"testing"

	"github.com/emutools/objdiff/pkg/obj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestObject(sections []obj.Section, symbols []obj.Symbol) *obj.Object {
	return &obj.Object{Sections: sections, Symbols: symbols}
}

func TestMatchSections_ExactName(t *testing.T) {
	left := newTestObject([]obj.Section{{Name: ".text"}, {Name: ".data"}}, nil)
	right := newTestObject([]obj.Section{{Name: ".data"}, {Name: ".text"}, {Name: ".bss"}}, nil)

	pairs := MatchSections(left, right)

	var textPair, dataPair, bssPair *SectionPair
	for i := range pairs {
		p := pairs[i]
		switch {
		case p.Left >= 0 && left.Sections[p.Left].Name == ".text":
			textPair = &p
		case p.Left >= 0 && left.Sections[p.Left].Name == ".data":
			dataPair = &p
		case p.Left < 0:
			bssPair = &p
		}
	}
	require.NotNil(t, textPair)
	require.NotNil(t, dataPair)
	require.NotNil(t, bssPair)
	assert.Equal(t, 1, textPair.Right)
	assert.Equal(t, 0, dataPair.Right)
	assert.Equal(t, -1, bssPair.Left)
}

func TestMatchSymbols_ExactName(t *testing.T) {
	left := newTestObject(nil, []obj.Symbol{{Name: "foo"}, {Name: "bar"}})
	right := newTestObject(nil, []obj.Symbol{{Name: "bar"}, {Name: "foo"}})

	pairs := MatchSymbols(left, right, nil)
	require.Len(t, pairs, 2)
	for _, p := range pairs {
		assert.GreaterOrEqual(t, int(p.Left), 0)
		assert.GreaterOrEqual(t, int(p.Right), 0)
		assert.Equal(t, left.Symbols[p.Left].Name, right.Symbols[p.Right].Name)
	}
}

func TestMatchSymbols_Overrides(t *testing.T) {
	left := newTestObject(nil, []obj.Symbol{{Name: "old_name"}})
	right := newTestObject(nil, []obj.Symbol{{Name: "new_name"}})

	pairs := MatchSymbols(left, right, Overrides{"old_name": "new_name"})
	require.Len(t, pairs, 1)
	assert.Equal(t, obj.SymbolIndex(0), pairs[0].Left)
	assert.Equal(t, obj.SymbolIndex(0), pairs[0].Right)
}

func TestMatchSymbols_AddressMatchForDataSuffix(t *testing.T) {
	sections := []obj.Section{{Name: ".data", Kind: obj.SectionData}}
	left := newTestObject(sections, []obj.Symbol{{Name: "value@sda21", Address: 0x100, Section: 0}})
	right := newTestObject(sections, []obj.Symbol{{Name: "value", Address: 0x100, Section: 0}})

	pairs := MatchSymbols(left, right, nil)
	require.Len(t, pairs, 1)
	assert.Equal(t, obj.SymbolIndex(0), pairs[0].Left)
	assert.Equal(t, obj.SymbolIndex(0), pairs[0].Right)
}

func TestMatchSymbols_CommonByBaseName(t *testing.T) {
	left := newTestObject(nil, []obj.Symbol{{Name: "counter", Flags: obj.FlagCommon, Section: -1}})
	right := newTestObject(nil, []obj.Symbol{{Name: "counter", Flags: obj.FlagCommon, Section: -1}})

	pairs := MatchSymbols(left, right, nil)
	require.Len(t, pairs, 1)
	assert.Equal(t, obj.SymbolIndex(0), pairs[0].Left)
	assert.Equal(t, obj.SymbolIndex(0), pairs[0].Right)
}

func TestMatchSymbols_Unmatched(t *testing.T) {
	left := newTestObject(nil, []obj.Symbol{{Name: "only_left"}})
	right := newTestObject(nil, []obj.Symbol{{Name: "only_right"}})

	pairs := MatchSymbols(left, right, nil)
	require.Len(t, pairs, 2)
	for _, p := range pairs {
		assert.True(t, p.Left < 0 || p.Right < 0)
	}
}
