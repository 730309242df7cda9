package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalJSON_RoundTrip(t *testing.T) {
	want := sampleReport()
	data, err := MarshalJSON(want)
	require.NoError(t, err)
	assert.Equal(t, "json", DetectFormat(data))

	got, err := UnmarshalJSON(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUnmarshalJSON_LegacyFallback(t *testing.T) {
	legacy := []byte(`{
		"fuzzy_match_percent": 90,
		"total_code": 200,
		"matched_code": 180,
		"units": [
			{"name": "old.o", "functions": [{"name": "f", "size": 200, "fuzzy_match_percent": 90}]}
		]
	}`)

	got, err := UnmarshalJSON(legacy)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, int(got.Version))
	assert.Equal(t, uint64(200), got.Measures.TotalCode)
	require.Len(t, got.Units, 1)
	assert.Equal(t, "old.o", got.Units[0].Name)
	assert.Equal(t, uint64(180), got.Units[0].Measures.MatchedCode)
}

func TestUnmarshalJSON_InvalidSyntaxReturnsImmediately(t *testing.T) {
	_, err := UnmarshalJSON([]byte(`{not valid json`))
	require.Error(t, err)
}

func TestUnmarshal_AutoDetectsProtoVsJSON(t *testing.T) {
	want := sampleReport()

	protoBytes := Marshal(want)
	got, err := Unmarshal(protoBytes)
	require.NoError(t, err)
	assert.Equal(t, want.Units[0].Name, got.Units[0].Name)

	jsonBytes, err := MarshalJSON(want)
	require.NoError(t, err)
	got, err = Unmarshal(jsonBytes)
	require.NoError(t, err)
	assert.Equal(t, want.Units[0].Name, got.Units[0].Name)
}

func TestMarshalUnmarshalChangesJSON_RoundTrip(t *testing.T) {
	from := sampleReport()
	to := sampleReport()
	to.Units[0].Measures.MatchedCodePercent = 50

	changes := DiffReports(from, to)
	data, err := MarshalChangesJSON(changes)
	require.NoError(t, err)

	got, err := UnmarshalChangesJSON(data)
	require.NoError(t, err)
	assert.Equal(t, changes, got)
}
