package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/forPelevin/tredit/internal/domain/segments"
	"github.com/forPelevin/tredit/internal/types"
)

// File is the on-disk transcript shape, close to whisper.cpp's JSON output.
type File struct {
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Adapter serves one canned transcript for every source. It stands in for a
// real speech-to-text engine in the dev backend.
type Adapter struct {
	f File
}

func New(f File) *Adapter {
	for i := range f.Segments {
		f.Segments[i].Text = strings.TrimSpace(f.Segments[i].Text)
		for j := range f.Segments[i].Words {
			f.Segments[i].Words[j].Word = strings.TrimSpace(f.Segments[i].Words[j].Word)
		}
	}
	if f.Duration <= 0 && len(f.Segments) > 0 {
		for _, s := range f.Segments {
			f.Duration = max(f.Duration, s.End)
		}
	}
	return &Adapter{f: f}
}

// Load reads a transcript file.
func Load(path string) (*Adapter, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Segments) == 0 {
		return nil, fmt.Errorf("fixture %s has no segments", path)
	}
	return New(f), nil
}

// Sample is used when the dev backend runs without a fixture.
func Sample() *Adapter {
	return New(File{
		Duration: 12,
		Segments: []Segment{
			{Start: 0, End: 3.5, Text: "Welcome back to the channel."},
			{Start: 3.5, End: 7.2, Text: "Today we are editing a transcript."},
			{Start: 7.2, End: 12, Text: "Let's get started."},
		},
	})
}

func (a *Adapter) Transcribe(ctx context.Context, sourceURL, _ string) (types.Transcription, float64, error) {
	if err := ctx.Err(); err != nil {
		return types.Transcription{}, 0, err
	}
	id, ok := segments.SourceID(sourceURL)
	if !ok {
		return types.Transcription{}, 0, fmt.Errorf("unrecognised source %q", sourceURL)
	}
	segs := make([]types.Segment, 0, len(a.f.Segments))
	for _, s := range a.f.Segments {
		segs = append(segs, types.Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	return types.Transcription{
		SourceID: id,
		Text:     segments.JoinTrimmed(segs),
		Segments: segs,
		IsSorted: segments.IsSorted(segs),
	}, a.f.Duration, nil
}

// TranscribeRange returns the speech between start and end. Word timings are
// preferred when the fixture has them; otherwise whole overlapping segments
// are used.
func (a *Adapter) TranscribeRange(ctx context.Context, _ string, start, end float64, _ string) (types.Segment, error) {
	if err := ctx.Err(); err != nil {
		return types.Segment{}, err
	}
	if end < start {
		return types.Segment{}, fmt.Errorf("invalid range %.3f-%.3f", start, end)
	}
	text := wordsText(a.f.Segments, start, end)
	if text == "" {
		text = segmentsText(a.f.Segments, start, end)
	}
	return types.Segment{Start: start, End: end, Text: text}, nil
}

func wordsText(segs []Segment, start, end float64) string {
	var parts []string
	for _, s := range segs {
		for _, w := range s.Words {
			if w.Word == "" || !overlaps(w.Start, w.End, start, end) {
				continue
			}
			parts = append(parts, w.Word)
		}
	}
	return strings.Join(parts, " ")
}

func segmentsText(segs []Segment, start, end float64) string {
	var parts []string
	for _, s := range segs {
		if s.Text == "" || !overlaps(s.Start, s.End, start, end) {
			continue
		}
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}

func overlaps(a0, a1, b0, b1 float64) bool { return a0 < b1 && b0 < a1 }
