package segments

import (
	"math"
	"testing"

	"github.com/forPelevin/tredit/internal/types"
)

func TestCoerceBoundary_Table(t *testing.T) {
	base := types.Segment{Start: 5, End: 10, Text: "x"}
	tests := []struct {
		name      string
		field     types.Field
		raw       float64
		duration  float64
		wantStart float64
		wantEnd   float64
	}{
		{"end within range", types.FieldEnd, 12, 20, 5, 12},
		{"end past duration", types.FieldEnd, 99, 20, 5, 20},
		{"start negative", types.FieldStart, -3, 20, 0, 10},
		{"start past end swaps", types.FieldStart, 15, 20, 10, 15},
		{"end before start swaps", types.FieldEnd, 2, 20, 2, 5},
		{"start past duration", types.FieldStart, 50, 20, 10, 20},
		{"unknown duration leaves top open", types.FieldEnd, 500, 0, 5, 500},
		{"nan keeps value", types.FieldEnd, math.NaN(), 20, 5, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoerceBoundary(base, tt.field, tt.raw, tt.duration)
			if got.Start != tt.wantStart || got.End != tt.wantEnd {
				t.Fatalf("got [%v,%v], want [%v,%v]", got.Start, got.End, tt.wantStart, tt.wantEnd)
			}
			if got.Text != "x" {
				t.Fatalf("text changed: %q", got.Text)
			}
		})
	}
}

func TestCoerceBoundary_InvariantHolds(t *testing.T) {
	raws := []float64{-100, -1, 0, 0.5, 3, 7.25, 19.99, 20, 21, 1e9, math.Inf(1), math.Inf(-1)}
	const duration = 20.0
	for _, f := range []types.Field{types.FieldStart, types.FieldEnd} {
		for _, s0 := range []float64{0, 4, 20} {
			for _, e0 := range []float64{0, 8, 20} {
				for _, raw := range raws {
					got := CoerceBoundary(types.Segment{Start: s0, End: e0}, f, raw, duration)
					if !(0 <= got.Start && got.Start <= got.End && got.End <= duration) {
						t.Fatalf("field=%s seg=[%v,%v] raw=%v: got [%v,%v]", f, s0, e0, raw, got.Start, got.End)
					}
				}
			}
		}
	}
}

func TestJoinText(t *testing.T) {
	segs := []types.Segment{{Text: "hello"}, {Text: "big"}, {Text: "world"}}
	if got := JoinText(segs); got != "hello big world" {
		t.Fatalf("JoinText = %q", got)
	}
	if got := JoinText(nil); got != "" {
		t.Fatalf("JoinText(nil) = %q", got)
	}
	if got := JoinTrimmed([]types.Segment{{Text: " a "}, {Text: "b\n"}}); got != "a b" {
		t.Fatalf("JoinTrimmed = %q", got)
	}
}

func TestIsSortedAndSort(t *testing.T) {
	segs := []types.Segment{{Start: 5, Text: "b"}, {Start: 0, Text: "a"}, {Start: 5, Text: "c"}}
	if IsSorted(segs) {
		t.Fatalf("expected unsorted")
	}
	SortByStart(segs)
	if !IsSorted(segs) {
		t.Fatalf("expected sorted after SortByStart")
	}
	if segs[1].Text != "b" || segs[2].Text != "c" {
		t.Fatalf("expected stable order for equal starts, got %+v", segs)
	}
	if !IsSorted(nil) {
		t.Fatalf("empty list is sorted")
	}
}

func TestInsertPositionAndInsert(t *testing.T) {
	if got := InsertPosition(2, -1); got != 2 {
		t.Fatalf("no selection should append, got %d", got)
	}
	if got := InsertPosition(3, 0); got != 1 {
		t.Fatalf("after selected 0 should be 1, got %d", got)
	}
	if got := InsertPosition(3, 7); got != 3 {
		t.Fatalf("stale selection should append, got %d", got)
	}

	segs := []types.Segment{{Text: "a"}, {Text: "c"}}
	out := Insert(segs, 1, types.Segment{Text: "b"})
	if JoinText(out) != "a b c" {
		t.Fatalf("Insert = %q", JoinText(out))
	}
	if JoinText(segs) != "a c" {
		t.Fatalf("Insert must not modify input")
	}
	if got := JoinText(Remove(out, 0)); got != "b c" {
		t.Fatalf("Remove = %q", got)
	}
	if got := len(Remove(out, 9)); got != 3 {
		t.Fatalf("out of range Remove should be a no-op, len=%d", got)
	}
}

func TestSpansAndIndexAt(t *testing.T) {
	segs := []types.Segment{{Text: "hello"}, {Text: "big"}, {Text: "world"}}
	full := JoinText(segs)
	for _, sp := range Spans(segs) {
		if full[sp.Start:sp.End] != segs[sp.Index].Text {
			t.Fatalf("span %d = %q", sp.Index, full[sp.Start:sp.End])
		}
	}

	tests := map[int]int{0: 0, 4: 0, 5: 0, 6: 1, 9: 1, 10: 2, 15: 2}
	for off, want := range tests {
		got, ok := IndexAt(segs, off)
		if !ok || got != want {
			t.Fatalf("IndexAt(%d) = %d,%v want %d", off, got, ok, want)
		}
	}
	if _, ok := IndexAt(segs, 16); ok {
		t.Fatalf("offset past end should not match")
	}
	if _, ok := IndexAt(segs, -1); ok {
		t.Fatalf("negative offset should not match")
	}
}

func TestSourceID(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"https://www.youtube.com/watch?v=9fKpbTcAk1E", "9fKpbTcAk1E", true},
		{"https://youtube.com/watch?v=abc&t=10", "abc", true},
		{"https://youtu.be/xyz", "xyz", true},
		{"  https://youtu.be/xyz  ", "xyz", true},
		{"https://youtu.be/", "", false},
		{"https://www.youtube.com/channel/foo", "", false},
		{"https://vimeo.com/123", "", false},
		{"not a url", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := SourceID(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("SourceID(%q) = %q,%v want %q,%v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
