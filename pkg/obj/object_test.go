package obj

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObject_SectionLookup(t *testing.T) {
	o := &Object{Sections: []Section{{Name: ".text"}, {Name: ".data"}}}
	require.NotNil(t, o.Section(".data"))
	assert.Equal(t, ".data", o.Section(".data").Name)
	assert.Nil(t, o.Section(".bss"))
}

func TestObject_SectionContaining(t *testing.T) {
	o := &Object{Sections: []Section{
		{Name: ".text", Address: 0, Size: 16},
		{Name: ".data", Address: 16, Size: 8},
	}}
	s := o.SectionContaining(20)
	require.NotNil(t, s)
	assert.Equal(t, ".data", s.Name)

	assert.Nil(t, o.SectionContaining(100))
}

func TestObject_SymbolsInSection_SortedByAddressThenSize(t *testing.T) {
	o := &Object{Symbols: []Symbol{
		{Name: "c", Section: 0, Address: 16, Size: 4},
		{Name: "a", Section: 0, Address: 0, Size: 8},
		{Name: "b", Section: 0, Address: 0, Size: 4},
		{Name: "other", Section: 1, Address: 0},
	}}
	idx := o.SymbolsInSection(0)
	require.Len(t, idx, 3)
	assert.Equal(t, "b", o.Symbols[idx[0]].Name)
	assert.Equal(t, "a", o.Symbols[idx[1]].Name)
	assert.Equal(t, "c", o.Symbols[idx[2]].Name)
}

func TestObject_FlowTableCache(t *testing.T) {
	o := &Object{}
	_, ok := o.FlowTableFor(0)
	assert.False(t, ok)

	table := FlowTable{{Address: 4, OperandIdx: 0}: "input_register"}
	o.SetFlowTable(0, table)

	got, ok := o.FlowTableFor(0)
	require.True(t, ok)
	assert.Equal(t, table, got)
}

func TestArchitecture_String(t *testing.T) {
	assert.Equal(t, "ppc", ArchPPC.String())
	assert.Equal(t, "mips", ArchMIPS.String())
	assert.Equal(t, "arm", ArchARM.String())
	assert.Equal(t, "x86", ArchX86.String())
	assert.Equal(t, "unknown", ArchUnknown.String())
}
