package cmd

import (
	"testing"

	"github.com/emutools/objdiff/pkg/obj"
	"github.com/stretchr/testify/assert"
)

func TestFormatSymbolSize_None(t *testing.T) {
	assert.Equal(t, "", formatSymbolSize(obj.SymbolSizeNone, 64, 72))
}

func TestFormatSymbolSize_Decimal(t *testing.T) {
	assert.Equal(t, " [64 -> 72 bytes]", formatSymbolSize(obj.SymbolSizeDecimal, 64, 72))
}

func TestFormatSymbolSize_Hex(t *testing.T) {
	got := formatSymbolSize(obj.SymbolSizeHex, 0x40, 0x48)
	assert.Equal(t, " [0x0040 -> 0x0048]", got)
}
