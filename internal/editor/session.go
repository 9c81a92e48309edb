package editor

import (
	"fmt"
	"sort"

	"github.com/forPelevin/tredit/internal/domain/segments"
	"github.com/forPelevin/tredit/internal/types"
)

// Select makes segment i active and seeks the player to it.
func (s *Store) Select(i int) error {
	s.mu.Lock()
	err := s.checkLocked(i)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if s.sel.Select(i, false) {
		s.renderNow()
	}
	return nil
}

// SelectAtOffset selects the segment owning a byte offset of the full text.
func (s *Store) SelectAtOffset(off int) (int, error) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return -1, ErrNoTranscription
	}
	i, ok := segments.IndexAt(s.tr.Segments, off)
	s.mu.Unlock()
	if !ok {
		return -1, fmt.Errorf("%w: no segment at offset %d", ErrIndexOutOfRange, off)
	}
	return i, s.Select(i)
}

func (s *Store) ClearSelection() {
	s.sel.Clear()
	s.renderNow()
}

// Active returns the selected index.
func (s *Store) Active() (int, bool) { return s.sel.Active() }

func (s *Store) SetAutoContinue(on bool) { s.sel.SetAutoContinue(on) }

func (s *Store) AutoContinue() bool { return s.sel.AutoContinue() }

// SourceDuration is the player's duration, or the configured fallback.
func (s *Store) SourceDuration() float64 {
	if d := s.d.Player.Duration(); d > 0 {
		return d
	}
	return s.o.FallbackDuration
}

// FullText is the cached full-text projection. It catches up with text
// edits when the text debounce fires.
func (s *Store) FullText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tr.Text
}

func (s *Store) IsSorted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tr.IsSorted
}

func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Source returns the URL and prompt the session was transcribed from.
func (s *Store) Source() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceURL, s.prompt
}

// DurationLabel formats the length of segment i, e.g. "4.25s".
func (s *Store) DurationLabel(i int) (string, error) {
	seg, ok := s.segment(i)
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	return fmt.Sprintf("%.2fs", seg.Duration()), nil
}

func (s *Store) Snapshot() types.Snapshot {
	d := s.SourceDuration()
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	snap.SourceDuration = d
	return snap
}

func (s *Store) snapshotLocked() types.Snapshot {
	snap := types.Snapshot{
		Transcription:  s.tr.Clone(),
		Active:         -1,
		SourceDuration: s.o.FallbackDuration,
	}
	if i, ok := s.sel.Active(); ok {
		snap.Active = i
	}
	for i := range s.retranscribing {
		snap.Retranscribing = append(snap.Retranscribing, i)
	}
	sort.Ints(snap.Retranscribing)
	return snap
}

func (s *Store) renderNow() {
	if s.d.View == nil {
		return
	}
	s.render(s.Snapshot())
}

func (s *Store) render(snap types.Snapshot) {
	if s.d.View == nil {
		return
	}
	if d := s.d.Player.Duration(); d > 0 {
		snap.SourceDuration = d
	}
	s.d.View.Render(snap)
}

// Close sends pending saves and releases the player binding.
func (s *Store) Close() {
	s.Flush()
	s.sel.Clear()
	s.text.Stop()
	s.bounds.Stop()
}
