package editor

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/tredit/internal/domain/export"
	"github.com/forPelevin/tredit/internal/domain/segments"
	"github.com/forPelevin/tredit/internal/ports"
	"github.com/forPelevin/tredit/internal/ports/adapters/simplayer"
	"github.com/forPelevin/tredit/internal/types"
)

// fakeBackend keeps the list the way the real backend does.
type fakeBackend struct {
	mu      sync.Mutex
	tr      types.Transcription
	cached  bool
	updates []types.UpdateSegmentRequest
	adds    []types.AddSegmentRequest

	failUpdate       error
	failAdd          error
	failRemove       error
	failSort         error
	failRetranscribe error

	// gate, when set, holds RetranscribeSegment until closed.
	gate    chan struct{}
	started chan int

	// updateGate, when set, holds UpdateSegment mid-request until closed.
	updateGate    chan struct{}
	updateStarted chan int
}

func newFakeBackend(segs ...types.Segment) *fakeBackend {
	return &fakeBackend{tr: types.Transcription{
		SourceID: "abc",
		Segments: segs,
		Text:     segments.JoinTrimmed(segs),
		IsSorted: segments.IsSorted(segs),
	}}
}

func (f *fakeBackend) snapshot() types.Transcription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tr.Clone()
}

func (f *fakeBackend) Transcribe(_ context.Context, _, _ string) (types.Transcription, error) {
	return f.snapshot(), nil
}

func (f *fakeBackend) CachedSession(_ context.Context) (types.CachedSession, bool, error) {
	if !f.cached {
		return types.CachedSession{}, false, nil
	}
	tr := f.snapshot()
	return types.CachedSession{Transcription: &tr, SourceURL: "https://youtu.be/abc", Prompt: "p"}, true, nil
}

func (f *fakeBackend) UpdateSegment(ctx context.Context, req types.UpdateSegmentRequest) error {
	if f.updateStarted != nil {
		f.updateStarted <- req.Index
	}
	if f.updateGate != nil {
		select {
		case <-f.updateGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, req)
	if f.failUpdate != nil {
		return f.failUpdate
	}
	f.tr.Segments[req.Index] = types.Segment{Start: req.Start, End: req.End, Text: req.Text}
	f.tr.Text = segments.JoinTrimmed(f.tr.Segments)
	return nil
}

func (f *fakeBackend) AddSegment(_ context.Context, req types.AddSegmentRequest) (types.Replacement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds = append(f.adds, req)
	if f.failAdd != nil {
		return types.Replacement{}, f.failAdd
	}
	pos := segments.InsertPosition(len(f.tr.Segments), req.SelectedIndex)
	f.tr.Segments = segments.Insert(f.tr.Segments, pos, types.Segment{Start: req.Start, End: req.End, Text: req.Text})
	sorted := segments.IsSorted(f.tr.Segments)
	return types.Replacement{Transcription: f.tr.Clone(), IsSorted: &sorted}, nil
}

func (f *fakeBackend) RemoveSegment(_ context.Context, i int) (types.Replacement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRemove != nil {
		return types.Replacement{}, f.failRemove
	}
	f.tr.Segments = segments.Remove(f.tr.Segments, i)
	return types.Replacement{Transcription: f.tr.Clone()}, nil
}

func (f *fakeBackend) SortSegments(_ context.Context) (types.Replacement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSort != nil {
		return types.Replacement{}, f.failSort
	}
	segments.SortByStart(f.tr.Segments)
	return types.Replacement{Transcription: f.tr.Clone()}, nil
}

func (f *fakeBackend) RetranscribeSegment(ctx context.Context, req types.RetranscribeRequest) (types.Segment, error) {
	f.mu.Lock()
	seg := f.tr.Segments[req.Index]
	f.mu.Unlock()

	if f.started != nil {
		f.started <- req.Index
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return types.Segment{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRetranscribe != nil {
		return types.Segment{}, f.failRetranscribe
	}
	seg.Text = "again:" + req.Prompt
	if req.Index < len(f.tr.Segments) {
		f.tr.Segments[req.Index] = seg
	}
	return seg, nil
}

func (f *fakeBackend) Download(_ context.Context, format types.Format) ([]byte, error) {
	return export.Render(f.snapshot(), format)
}

func (f *fakeBackend) updateLog() []types.UpdateSegmentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.UpdateSegmentRequest(nil), f.updates...)
}

type fakeNotifier struct {
	mu   sync.Mutex
	errs []error
}

func (n *fakeNotifier) Alert(err error) {
	n.mu.Lock()
	n.errs = append(n.errs, err)
	n.mu.Unlock()
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errs)
}

type fakeView struct {
	mu   sync.Mutex
	n    int
	last types.Snapshot
}

func (v *fakeView) Render(snap types.Snapshot) {
	v.mu.Lock()
	v.n++
	v.last = snap
	v.mu.Unlock()
}

func (v *fakeView) renders() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.n
}

func (v *fakeView) lastSnapshot() types.Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.last
}

type harness struct {
	store    *Store
	backend  *fakeBackend
	player   *simplayer.Adapter
	notifier *fakeNotifier
	view     *fakeView
}

func twoSegments() []types.Segment {
	return []types.Segment{{Start: 0, End: 5, Text: "a"}, {Start: 5, End: 10, Text: "b"}}
}

// newHarness loads segs into a store whose debounces only fire on Flush.
func newHarness(t *testing.T, segs []types.Segment, tweak func(*Options)) *harness {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	h := &harness{
		backend:  newFakeBackend(segs...),
		player:   simplayer.New(20),
		notifier: &fakeNotifier{},
		view:     &fakeView{},
	}
	o := Options{
		TextDebounce:   time.Hour,
		BoundsDebounce: time.Hour,
		PollInterval:   time.Hour,
		AutoContinue:   false,
	}
	if tweak != nil {
		tweak(&o)
	}
	h.store = New(Deps{
		Backend:  h.backend,
		Player:   h.player,
		Notifier: h.notifier,
		View:     h.view,
		Logger:   log,
	}, o)
	t.Cleanup(h.store.Close)

	if err := h.store.Transcribe(context.Background(), "https://youtu.be/abc", ""); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	return h
}

var _ ports.Backend = (*fakeBackend)(nil)
