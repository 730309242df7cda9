package obj

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_GetReturnsDefaults(t *testing.T) {
	cfg := DefaultConfig()
	v, err := cfg.Get("diff_algorithm")
	require.NoError(t, err)
	assert.Equal(t, "patience", v)

	v, err = cfg.Get("space_between_args")
	require.NoError(t, err)
	assert.Equal(t, "true", v)
}

func TestConfig_GetUnknownProperty(t *testing.T) {
	cfg := DefaultConfig()
	_, err := cfg.Get("nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestConfig_SetFromString_BooleanAcceptsCaseInsensitive(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.SetFromString("show_data_flow", "TRUE"))
	assert.True(t, cfg.ShowDataFlow)
}

func TestConfig_SetFromString_ChoiceAcceptsDisplayName(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.SetFromString("x86_formatter", "NASM"))
	assert.Equal(t, X86Nasm, cfg.X86Formatter)

	require.NoError(t, cfg.SetFromString("diff_algorithm", "LCS"))
	assert.Equal(t, AlgorithmLCS, cfg.DiffAlgorithm)
}

func TestConfig_SetFromString_InvalidChoiceRejected(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.SetFromString("x86_formatter", "bogus")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestConfig_SetFromString_UnknownPropertyRejected(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.SetFromString("nonexistent", "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestProperties_EveryConfigFieldIsGettable(t *testing.T) {
	cfg := DefaultConfig()
	for _, p := range Properties() {
		_, err := cfg.Get(p.ID)
		assert.NoError(t, err, "property %q should be gettable", p.ID)
	}
}
