package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/forPelevin/tredit/internal/domain/segments"
	"github.com/forPelevin/tredit/internal/types"
)

// syncWriter serializes output from the prompt loop, background
// re-transcriptions and save alerts.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// tableView keeps the latest snapshot. It only prints when asked, so timer
// driven refreshes don't interleave with typing.
type tableView struct {
	w io.Writer

	mu   sync.Mutex
	last types.Snapshot
}

func newTableView(w io.Writer) *tableView {
	return &tableView{w: w, last: types.Snapshot{Active: -1}}
}

func (v *tableView) Render(snap types.Snapshot) {
	v.mu.Lock()
	v.last = snap
	v.mu.Unlock()
}

func (v *tableView) Latest() types.Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.last
}

func (v *tableView) Print(snap types.Snapshot) {
	var b strings.Builder
	sorted := "yes"
	if !snap.Transcription.IsSorted {
		sorted = "no (run 'sort')"
	}
	fmt.Fprintf(&b, "video: %s  duration: %s  sorted: %s\n",
		orDash(snap.Transcription.SourceID), durationText(snap.SourceDuration), sorted)

	busy := map[int]bool{}
	for _, i := range snap.Retranscribing {
		busy[i] = true
	}
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\t#\tSTART\tEND\tDUR\tTEXT")
	for i, s := range snap.Transcription.Segments {
		mark := " "
		switch {
		case busy[i]:
			mark = "~"
		case i == snap.Active:
			mark = ">"
		}
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2fs\t%s\n", mark, i, s.Start, s.End, s.Duration(), s.Text)
	}
	tw.Flush()
	io.WriteString(v.w, b.String())
}

// PrintFull prints the full text with the active segment bracketed. The
// highlight is skipped while a text edit hasn't reached the full text yet.
func (v *tableView) PrintFull(snap types.Snapshot) {
	segs := snap.Transcription.Segments
	text := snap.Transcription.Text
	if snap.Active >= 0 && text == segments.JoinText(segs) {
		for _, sp := range segments.Spans(segs) {
			if sp.Index == snap.Active {
				text = text[:sp.Start] + "[" + text[sp.Start:sp.End] + "]" + text[sp.End:]
				break
			}
		}
	}
	fmt.Fprintln(v.w, text)
}

func durationText(d float64) string {
	if d <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%.2fs", d)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// alerter reports failed background saves.
type alerter struct{ w io.Writer }

func newAlerter(w io.Writer) *alerter { return &alerter{w: w} }

func (a *alerter) Alert(err error) {
	fmt.Fprintf(a.w, "error: %v\n", err)
}
