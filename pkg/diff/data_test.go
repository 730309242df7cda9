package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffData_Identical(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}
	d := DiffData(data, data, AlignLCS)
	assert.Equal(t, 100.0, d.MatchPercent)
	assert.False(t, d.TimedOut)
	require.Len(t, d.Runs, 1)
	assert.Equal(t, RowNone, d.Runs[0].Tag)
}

func TestDiffData_SingleByteChange(t *testing.T) {
	left := []byte{1, 2, 3, 4, 5}
	right := []byte{1, 2, 9, 4, 5}
	d := DiffData(left, right, AlignLCS)
	assert.Less(t, d.MatchPercent, 100.0)

	var coveredLeft, coveredRight int
	for _, r := range d.Runs {
		coveredLeft += r.LeftLen
		coveredRight += r.RightLen
	}
	assert.Equal(t, len(left), coveredLeft)
	assert.Equal(t, len(right), coveredRight)
}

func TestDiffData_UnequalLengths(t *testing.T) {
	left := []byte{1, 2, 3}
	right := []byte{1, 2, 3, 4, 5}
	d := DiffData(left, right, AlignLCS)

	var coveredRight int
	for _, r := range d.Runs {
		coveredRight += r.RightLen
	}
	assert.Equal(t, len(right), coveredRight)
}

func TestDiffData_EmptyInputs(t *testing.T) {
	d := DiffData(nil, nil, AlignLCS)
	assert.Equal(t, 100.0, d.MatchPercent)
}
