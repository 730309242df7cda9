package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSignedHex_PositiveValueUsesPlainHex(t *testing.T) {
	assert.Equal(t, "0x4", formatSignedHex(4))
}

func TestFormatSignedHex_NegativeValueMovesSignOutsideRadixPrefix(t *testing.T) {
	// Naively formatting "0x%x" on -4 would read "0x-4"; the sign belongs
	// in front of the "0x", not between it and the digits.
	assert.Equal(t, "-0x4", formatSignedHex(-4))
}
