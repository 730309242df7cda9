package obj

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbol_BaseNameStripsRelocSuffix(t *testing.T) {
	s := Symbol{Name: "value@sda21"}
	assert.Equal(t, "value", s.BaseName())

	plain := Symbol{Name: "plain_symbol"}
	assert.Equal(t, "plain_symbol", plain.BaseName())
}

func TestSymbol_SizeInferredAndHasSection(t *testing.T) {
	s := Symbol{Flags: FlagSizeInferred, Section: -1}
	assert.True(t, s.SizeInferred())
	assert.False(t, s.HasSection())

	s2 := Symbol{Section: 0}
	assert.False(t, s2.SizeInferred())
	assert.True(t, s2.HasSection())
}

func TestSymbolFlags_Has(t *testing.T) {
	f := FlagGlobal | FlagWeak
	assert.True(t, f.Has(FlagGlobal))
	assert.True(t, f.Has(FlagWeak))
	assert.False(t, f.Has(FlagLocal))
}

func TestSymbolKind_String(t *testing.T) {
	assert.Equal(t, "function", SymbolFunction.String())
	assert.Equal(t, "object", SymbolObject.String())
	assert.Equal(t, "section", SymbolSection.String())
	assert.Equal(t, "unknown", SymbolUnknown.String())
}
