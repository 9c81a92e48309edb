// Package editor holds the segment list of one editing session and routes
// every mutation through the backend.
//
// Field edits (text, start, end) are applied locally at once and persisted
// after a debounce; a failed save is reported but never rolled back.
// Structural edits (add, remove, sort) wait for the backend and replace the
// whole list with its answer, since indices shift; a failed call leaves the
// list untouched.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/tredit/internal/debounce"
	"github.com/forPelevin/tredit/internal/domain/segments"
	"github.com/forPelevin/tredit/internal/playback"
	"github.com/forPelevin/tredit/internal/ports"
	"github.com/forPelevin/tredit/internal/types"
)

var (
	ErrNoTranscription      = errors.New("no transcription loaded")
	ErrIndexOutOfRange      = errors.New("segment index out of range")
	ErrRetranscribeInFlight = errors.New("segment is already being re-transcribed")
	ErrInvalidSource        = errors.New("invalid source URL")
	ErrStaleResponse        = errors.New("segment list changed while the request was in flight")
)

const (
	DefaultTextDebounce   = 300 * time.Millisecond
	DefaultBoundsDebounce = 600 * time.Millisecond
	DefaultPersistTimeout = 90 * time.Second
)

type Deps struct {
	Backend ports.Backend
	Player  ports.Player
	// Notifier and View are optional.
	Notifier ports.Notifier
	View     ports.View
	Logger   *logrus.Logger
}

type Options struct {
	TextDebounce   time.Duration
	BoundsDebounce time.Duration
	PollInterval   time.Duration
	PersistTimeout time.Duration
	AutoContinue   bool
	// FallbackDuration bounds segment ends while the player can't report
	// the source duration. Zero leaves ends unbounded.
	FallbackDuration float64
}

type Store struct {
	d   Deps
	o   Options
	log *logrus.Logger
	sel *playback.Sync

	text   *debounce.Debouncer
	bounds *debounce.Group[int]
	// sendMu orders segment saves with each other and with add, remove
	// and sort, which shift indices.
	sendMu sync.Mutex

	mu             sync.Mutex
	loaded         bool
	tr             types.Transcription
	sourceURL      string
	prompt         string
	gen            uint64
	dirtyText      map[int]struct{}
	retranscribing map[int]struct{}
}

func New(d Deps, o Options) *Store {
	if o.TextDebounce <= 0 {
		o.TextDebounce = DefaultTextDebounce
	}
	if o.BoundsDebounce <= 0 {
		o.BoundsDebounce = DefaultBoundsDebounce
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = DefaultPersistTimeout
	}
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}

	s := &Store{
		d:              d,
		o:              o,
		log:            d.Logger,
		dirtyText:      map[int]struct{}{},
		retranscribing: map[int]struct{}{},
	}
	s.text = debounce.New(o.TextDebounce, s.flushText)
	s.bounds = debounce.NewGroup(o.BoundsDebounce, s.flushBounds)
	s.sel = playback.New(d.Player, s.segment, playback.Options{
		PollInterval: o.PollInterval,
		AutoContinue: o.AutoContinue,
		Logger:       d.Logger,
	})
	return s
}

// Transcribe asks the backend for a new transcription and starts a fresh
// session with it. The previous session is kept if the request fails.
func (s *Store) Transcribe(ctx context.Context, sourceURL, prompt string) error {
	if _, ok := segments.SourceID(sourceURL); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidSource, sourceURL)
	}
	tr, err := s.d.Backend.Transcribe(ctx, sourceURL, prompt)
	if err != nil {
		s.log.WithError(err).WithField("op", "transcribe").Error("transcription failed")
		return fmt.Errorf("transcribe: %w", err)
	}
	s.reset()
	s.install(tr, sourceURL, prompt)
	s.log.WithFields(logrus.Fields{"op": "transcribe", "segments": len(tr.Segments)}).Info("transcription loaded")
	return nil
}

// LoadCached resumes the transcription the backend remembers, if any.
func (s *Store) LoadCached(ctx context.Context) (bool, error) {
	cs, found, err := s.d.Backend.CachedSession(ctx)
	if err != nil {
		return false, fmt.Errorf("load cached transcription: %w", err)
	}
	if !found {
		return false, nil
	}
	s.reset()
	s.install(*cs.Transcription, cs.SourceURL, cs.Prompt)
	s.log.WithFields(logrus.Fields{"op": "load_cached", "segments": len(cs.Transcription.Segments)}).Info("cached transcription loaded")
	return true, nil
}

func (s *Store) reset() {
	s.text.Stop()
	s.bounds.Stop()
	s.sel.Clear()
}

func (s *Store) install(tr types.Transcription, sourceURL, prompt string) {
	s.mu.Lock()
	s.tr = tr.Clone()
	s.tr.Text = segments.JoinText(s.tr.Segments)
	s.sourceURL, s.prompt = sourceURL, prompt
	s.loaded = true
	s.gen++
	s.dirtyText = map[int]struct{}{}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.render(snap)
}

// EditText sets a segment's text. The save and the full-text refresh are
// debounced together.
func (s *Store) EditText(i int, text string) error {
	s.mu.Lock()
	if err := s.checkLocked(i); err != nil {
		s.mu.Unlock()
		return err
	}
	s.tr.Segments[i].Text = text
	s.dirtyText[i] = struct{}{}
	s.mu.Unlock()

	s.text.Trigger()
	return nil
}

func (s *Store) flushText() {
	s.mu.Lock()
	idx := make([]int, 0, len(s.dirtyText))
	for i := range s.dirtyText {
		if i < len(s.tr.Segments) {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	reqs := make([]types.UpdateSegmentRequest, 0, len(idx))
	for _, i := range idx {
		reqs = append(reqs, updateRequest(i, s.tr.Segments[i]))
	}
	s.dirtyText = map[int]struct{}{}
	s.tr.Text = segments.JoinText(s.tr.Segments)
	gen := s.gen
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.render(snap)
	s.persist("edit_text", gen, reqs)
}

// EditBoundary sets start or end of a segment, coerced so that
// 0 <= start <= end <= source duration. The list is marked unsorted.
func (s *Store) EditBoundary(i int, field types.Field, raw float64) (types.Segment, error) {
	if field != types.FieldStart && field != types.FieldEnd {
		return types.Segment{}, fmt.Errorf("unknown segment field %q", field)
	}
	duration := s.SourceDuration()

	s.mu.Lock()
	if err := s.checkLocked(i); err != nil {
		s.mu.Unlock()
		return types.Segment{}, err
	}
	seg := segments.CoerceBoundary(s.tr.Segments[i], field, raw, duration)
	s.tr.Segments[i] = seg
	s.tr.IsSorted = false
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.render(snap)
	s.bounds.Trigger(i)
	return seg, nil
}

func (s *Store) flushBounds(i int) {
	s.mu.Lock()
	if i >= len(s.tr.Segments) {
		s.mu.Unlock()
		return
	}
	req := updateRequest(i, s.tr.Segments[i])
	s.tr.Text = segments.JoinText(s.tr.Segments)
	gen := s.gen
	s.mu.Unlock()

	s.persist("edit_boundary", gen, []types.UpdateSegmentRequest{req})

	// Replay only when the edited segment is the one playing.
	if active, ok := s.sel.Active(); ok && active == i {
		s.sel.Select(i, true)
	}
}

// persist sends saves read from list generation gen. They are dropped if
// the list was replaced before they got their turn.
func (s *Store) persist(op string, gen uint64, reqs []types.UpdateSegmentRequest) {
	if len(reqs) == 0 {
		return
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.mu.Lock()
	stale := gen != s.gen
	s.mu.Unlock()
	if stale {
		s.log.WithFields(logrus.Fields{"op": op, "saves": len(reqs)}).Warn("dropping saves for a replaced segment list")
		return
	}
	for _, req := range reqs {
		ctx, cancel := context.WithTimeout(context.Background(), s.o.PersistTimeout)
		err := s.d.Backend.UpdateSegment(ctx, req)
		cancel()
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"op": op, "index": req.Index}).Error("segment save failed")
			s.alert(fmt.Errorf("save segment %d: %w", req.Index, err))
			continue
		}
		s.log.WithFields(logrus.Fields{"op": op, "index": req.Index}).Debug("segment saved")
	}
}

// Flush sends pending debounced saves now and waits for saves already
// being sent.
func (s *Store) Flush() {
	s.text.Flush()
	s.bounds.Flush()
}

// AddSegment inserts a blank segment spanning the whole source. The backend
// places it after the selected segment, or at the end without a selection.
func (s *Store) AddSegment(ctx context.Context) error {
	if err := s.requireLoaded(); err != nil {
		return err
	}
	s.Flush()
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	selected := -1
	if i, ok := s.sel.Active(); ok {
		selected = i
	}
	req := types.AddSegmentRequest{Start: 0, End: s.SourceDuration(), Text: "", SelectedIndex: selected}
	rep, err := s.d.Backend.AddSegment(ctx, req)
	if err != nil {
		s.log.WithError(err).WithField("op", "add_segment").Error("add segment failed")
		return fmt.Errorf("add segment: %w", err)
	}

	if selected >= 0 {
		s.sel.Clear()
	}
	s.mu.Lock()
	s.replaceLocked(rep, nil)
	s.mu.Unlock()
	if selected >= 0 {
		s.sel.Select(selected+1, false)
	}
	s.renderNow()
	s.log.WithFields(logrus.Fields{"op": "add_segment", "after": selected}).Info("segment added")
	return nil
}

// RemoveSegment deletes segment i. Removing the selected segment clears
// the selection; a selection after i follows its segment.
func (s *Store) RemoveSegment(ctx context.Context, i int) error {
	s.mu.Lock()
	err := s.checkLocked(i)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.Flush()
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	rep, err := s.d.Backend.RemoveSegment(ctx, i)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"op": "remove_segment", "index": i}).Error("remove segment failed")
		return fmt.Errorf("remove segment %d: %w", i, err)
	}

	active, selected := s.sel.Active()
	if selected && active == i {
		s.sel.Clear()
		selected = false
	}
	stale := false
	s.mu.Lock()
	s.replaceLocked(rep, nil)
	if selected {
		next := active
		if active > i {
			next = active - 1
		}
		if next < len(s.tr.Segments) {
			s.sel.Rebind(next)
		} else {
			stale = true
		}
	}
	s.mu.Unlock()
	if stale {
		s.sel.Clear()
	}
	s.renderNow()
	s.log.WithFields(logrus.Fields{"op": "remove_segment", "index": i}).Info("segment removed")
	return nil
}

// SortSegments has the backend order segments by start. Every index may
// change, so the selection is dropped.
func (s *Store) SortSegments(ctx context.Context) error {
	if err := s.requireLoaded(); err != nil {
		return err
	}
	s.Flush()
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	rep, err := s.d.Backend.SortSegments(ctx)
	if err != nil {
		s.log.WithError(err).WithField("op", "sort_segments").Error("sort failed")
		return fmt.Errorf("sort segments: %w", err)
	}

	s.sel.Clear()
	sorted := true
	s.mu.Lock()
	s.replaceLocked(rep, &sorted)
	s.mu.Unlock()
	s.renderNow()
	s.log.WithField("op", "sort_segments").Info("segments sorted")
	return nil
}

// RetranscribeSegment asks the backend to transcribe segment i again and
// replaces only that segment. Only one request per segment may be in flight.
func (s *Store) RetranscribeSegment(ctx context.Context, i int, prompt string) error {
	s.mu.Lock()
	if err := s.checkLocked(i); err != nil {
		s.mu.Unlock()
		return err
	}
	if _, busy := s.retranscribing[i]; busy {
		s.mu.Unlock()
		return fmt.Errorf("segment %d: %w", i, ErrRetranscribeInFlight)
	}
	s.retranscribing[i] = struct{}{}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.render(snap)

	defer func() {
		s.mu.Lock()
		delete(s.retranscribing, i)
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.render(snap)
	}()

	// The backend cuts audio by its stored bounds, so send pending edits first.
	s.Flush()
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	seg, err := s.d.Backend.RetranscribeSegment(ctx, types.RetranscribeRequest{Index: i, Prompt: prompt})
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"op": "retranscribe_segment", "index": i}).Error("re-transcription failed")
		return fmt.Errorf("re-transcribe segment %d: %w", i, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || i >= len(s.tr.Segments) {
		s.log.WithFields(logrus.Fields{"op": "retranscribe_segment", "index": i}).Warn("discarding stale re-transcription")
		return fmt.Errorf("re-transcribe segment %d: %w", i, ErrStaleResponse)
	}
	s.tr.Segments[i] = seg
	s.tr.Text = segments.JoinText(s.tr.Segments)
	s.log.WithFields(logrus.Fields{"op": "retranscribe_segment", "index": i}).Info("segment re-transcribed")
	return nil
}

// Retranscribing reports whether a re-transcription of segment i is pending.
func (s *Store) Retranscribing(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.retranscribing[i]
	return ok
}

// Download fetches an export of the saved transcription.
func (s *Store) Download(ctx context.Context, f types.Format) ([]byte, error) {
	if err := s.requireLoaded(); err != nil {
		return nil, err
	}
	s.Flush()
	b, err := s.d.Backend.Download(ctx, f)
	if err != nil {
		s.log.WithError(err).WithField("op", "download_"+string(f)).Error("download failed")
		return nil, fmt.Errorf("download %s: %w", f, err)
	}
	return b, nil
}

// replaceLocked installs an authoritative list from the backend. sorted
// overrides whatever the response says.
func (s *Store) replaceLocked(rep types.Replacement, sorted *bool) {
	tr := rep.Transcription.Clone()
	tr.Text = segments.JoinText(tr.Segments)
	switch {
	case sorted != nil:
		tr.IsSorted = *sorted
	case rep.IsSorted != nil:
		tr.IsSorted = *rep.IsSorted
	default:
		tr.IsSorted = segments.IsSorted(tr.Segments)
	}
	if tr.SourceID == "" {
		tr.SourceID = s.tr.SourceID
	}
	s.tr = tr
	s.gen++
	s.dirtyText = map[int]struct{}{}
}

func (s *Store) checkLocked(i int) error {
	if !s.loaded {
		return ErrNoTranscription
	}
	if i < 0 || i >= len(s.tr.Segments) {
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, i, len(s.tr.Segments))
	}
	return nil
}

func (s *Store) requireLoaded() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNoTranscription
	}
	return nil
}

func (s *Store) segment(i int) (types.Segment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.tr.Segments) {
		return types.Segment{}, false
	}
	return s.tr.Segments[i], true
}

func updateRequest(i int, seg types.Segment) types.UpdateSegmentRequest {
	return types.UpdateSegmentRequest{Index: i, Start: seg.Start, End: seg.End, Text: seg.Text}
}

func (s *Store) alert(err error) {
	if s.d.Notifier != nil {
		s.d.Notifier.Alert(err)
	}
}
