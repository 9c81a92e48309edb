package segments

import "github.com/forPelevin/tredit/internal/types"

// Span locates one segment's text inside the full-text projection.
// Offsets are byte offsets, End exclusive.
type Span struct {
	Index int
	Start int
	End   int
}

// Spans maps each segment to its place in JoinText(segs).
func Spans(segs []types.Segment) []Span {
	out := make([]Span, 0, len(segs))
	off := 0
	for i, s := range segs {
		if i > 0 {
			off++ // separator
		}
		out = append(out, Span{Index: i, Start: off, End: off + len(s.Text)})
		off += len(s.Text)
	}
	return out
}

// IndexAt returns the segment owning byte offset off in the full text.
// A separator belongs to the segment before it.
func IndexAt(segs []types.Segment, off int) (int, bool) {
	if off < 0 || len(segs) == 0 {
		return -1, false
	}
	for _, sp := range Spans(segs) {
		if off <= sp.End {
			return sp.Index, true
		}
	}
	return -1, false
}
