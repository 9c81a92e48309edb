package segments

import (
	"math"
	"sort"
	"strings"

	"github.com/forPelevin/tredit/internal/types"
)

// JoinText is the full-text projection: segment texts joined by one space.
func JoinText(segs []types.Segment) string {
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}

// JoinTrimmed joins trimmed segment texts, the way the server stores them.
func JoinTrimmed(segs []types.Segment) string {
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = strings.TrimSpace(s.Text)
	}
	return strings.Join(parts, " ")
}

// IsSorted reports whether segments are non-decreasing by start.
func IsSorted(segs []types.Segment) bool {
	for i := 1; i < len(segs); i++ {
		if segs[i-1].Start > segs[i].Start {
			return false
		}
	}
	return true
}

// SortByStart orders segments by start in place; equal starts keep their order.
func SortByStart(segs []types.Segment) {
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })
}

// InsertPosition is where a new segment goes: right after the selected one,
// or at the end when nothing is selected.
func InsertPosition(n, selected int) int {
	if selected < 0 || selected >= n {
		return n
	}
	return selected + 1
}

// Insert returns segs with s placed at pos.
func Insert(segs []types.Segment, pos int, s types.Segment) []types.Segment {
	out := make([]types.Segment, 0, len(segs)+1)
	out = append(out, segs[:pos]...)
	out = append(out, s)
	return append(out, segs[pos:]...)
}

// Remove returns segs without index i. Out of range is a no-op.
func Remove(segs []types.Segment, i int) []types.Segment {
	if i < 0 || i >= len(segs) {
		return segs
	}
	out := make([]types.Segment, 0, len(segs)-1)
	out = append(out, segs[:i]...)
	return append(out, segs[i+1:]...)
}

// CoerceBoundary applies raw to one field of seg and coerces the pair into
// 0 <= start <= end <= duration. A duration <= 0 means unknown and leaves the
// upper side open. Inverted input is swapped rather than rejected; NaN keeps
// the current value.
func CoerceBoundary(seg types.Segment, field types.Field, raw, duration float64) types.Segment {
	start, end := seg.Start, seg.End
	if !math.IsNaN(raw) {
		switch field {
		case types.FieldStart:
			start = raw
		case types.FieldEnd:
			end = raw
		}
	}
	limit := math.Inf(1)
	if duration > 0 {
		limit = duration
	}

	lo := math.Max(0, math.Min(math.Min(start, end), limit))
	hi := math.Min(math.Max(start, end), limit)
	if hi < lo {
		hi = lo
	}
	seg.Start, seg.End = lo, hi
	return seg
}
