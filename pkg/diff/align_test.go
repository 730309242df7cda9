package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func equalInts(a, b []int) func(i, j int) bool {
	return func(i, j int) bool { return a[i] == b[j] }
}

func applyOps(t *testing.T, left, right []int, ops []Op) {
	t.Helper()
	li, ri := 0, 0
	for _, op := range ops {
		switch op.Kind {
		case OpEqual:
			assert.Equal(t, li, op.LeftIndex)
			assert.Equal(t, ri, op.RightIndex)
			assert.Equal(t, left[op.LeftIndex], right[op.RightIndex])
			li++
			ri++
		case OpReplace:
			li++
			ri++
		case OpDelete:
			li++
		case OpInsert:
			ri++
		}
	}
	assert.Equal(t, len(left), li)
	assert.Equal(t, len(right), ri)
}

func TestAlignLCS_Identical(t *testing.T) {
	a := []int{1, 2, 3, 4}
	ops := Align(len(a), len(a), equalInts(a, a), AlignLCS)
	applyOps(t, a, a, ops)
	for _, op := range ops {
		assert.Equal(t, OpEqual, op.Kind)
	}
}

func TestAlignLCS_InsertDelete(t *testing.T) {
	left := []int{1, 2, 3}
	right := []int{1, 9, 2, 3}
	ops := Align(len(left), len(right), equalInts(left, right), AlignLCS)
	applyOps(t, left, right, ops)

	var inserts int
	for _, op := range ops {
		if op.Kind == OpInsert {
			inserts++
		}
	}
	assert.Equal(t, 1, inserts)
}

func TestAlignPatience_ReorderedBlocks(t *testing.T) {
	left := []int{1, 2, 3, 4, 5}
	right := []int{4, 5, 1, 2, 3}
	ops := Align(len(left), len(right), equalInts(left, right), AlignPatience)
	applyOps(t, left, right, ops)
}

func TestAlignMyers_MatchesLCSLength(t *testing.T) {
	left := []int{1, 2, 3, 4, 5, 6}
	right := []int{1, 9, 3, 4, 9, 6}

	lcsOps := Align(len(left), len(right), equalInts(left, right), AlignLCS)
	myersOps := Align(len(left), len(right), equalInts(left, right), AlignMyers)

	applyOps(t, left, right, lcsOps)
	applyOps(t, left, right, myersOps)

	countEqual := func(ops []Op) int {
		n := 0
		for _, op := range ops {
			if op.Kind == OpEqual {
				n++
			}
		}
		return n
	}
	assert.Equal(t, countEqual(lcsOps), countEqual(myersOps))
}

func TestAlign_EmptyInputs(t *testing.T) {
	ops := Align(0, 0, func(i, j int) bool { return false }, AlignLCS)
	assert.Empty(t, ops)
}

func TestAlign_OneSideEmpty(t *testing.T) {
	right := []int{1, 2, 3}
	ops := Align(0, len(right), func(i, j int) bool { return false }, AlignLCS)
	assert.Len(t, ops, 3)
	for _, op := range ops {
		assert.Equal(t, OpInsert, op.Kind)
	}
}
