//go:build integration

package itest

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/sirupsen/logrus"

	"github.com/forPelevin/tredit/internal/app"
	"github.com/forPelevin/tredit/internal/devserver"
	"github.com/forPelevin/tredit/internal/ports/adapters/fixture"
	"github.com/forPelevin/tredit/internal/types"
)

type alerts struct {
	mu   sync.Mutex
	errs []error
}

func (a *alerts) Alert(err error) {
	a.mu.Lock()
	a.errs = append(a.errs, err)
	a.mu.Unlock()
}

func TestE2E(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	tr, err := fixture.Load(filepath.Join(mustRepoRoot(t), "internal", "itest", "testdata", "talk.json"))
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	srv, err := devserver.New(devserver.Options{Transcriber: tr, MaxDuration: 10 * time.Minute, Logger: log})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(adaptor.FiberApp(srv.App()))
	defer ts.Close()

	cfg := app.Config{
		BaseURL:        ts.URL,
		TextDebounce:   20 * time.Millisecond,
		BoundsDebounce: 40 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
		RequestTimeout: 10 * time.Second,
		AutoContinue:   true,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	al := &alerts{}
	sess, err := app.NewSession(cfg, log, al, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()
	store := sess.Store

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := sess.Open(ctx, "https://www.youtube.com/watch?v=e2e", "speaker names"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if n := len(store.Snapshot().Transcription.Segments); n != 4 {
		t.Fatalf("expected 4 segments from fixture, got %d", n)
	}

	// a typing burst settles into one save
	for _, s := range []string{"I", "In", "Intro."} {
		if err := store.EditText(0, s); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := store.EditBoundary(3, types.FieldStart, 1.5); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return strings.HasPrefix(store.FullText(), "Intro. ") })

	if err := store.Select(1); err != nil {
		t.Fatal(err)
	}
	if err := store.AddSegment(ctx); err != nil {
		t.Fatalf("add: %v", err)
	}
	if i, _ := store.Active(); i != 2 {
		t.Fatalf("expected the new segment selected, got %d", i)
	}
	if err := store.RemoveSegment(ctx, 2); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.SortSegments(ctx); err != nil {
		t.Fatalf("sort: %v", err)
	}
	segs := store.Snapshot().Transcription.Segments
	if !store.IsSorted() || segs[1].Start != 1.5 {
		t.Fatalf("expected moved segment second after sort, got %+v", segs)
	}

	if err := store.RetranscribeSegment(ctx, 1, "again"); err != nil {
		t.Fatalf("retranscribe: %v", err)
	}

	dir := t.TempDir()
	for _, f := range []types.Format{types.FormatSRT, types.FormatTXT, types.FormatCSV} {
		b, err := store.Download(ctx, f)
		if err != nil {
			t.Fatalf("download %s: %v", f, err)
		}
		if err := os.WriteFile(filepath.Join(dir, f.Filename()), b, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	txt, _ := os.ReadFile(filepath.Join(dir, "transcript.txt"))
	if got, want := string(txt), strings.Join(trimmedTexts(store.Snapshot().Transcription.Segments), " "); got != want {
		t.Fatalf("server text %q differs from client %q", got, want)
	}

	// the backend's cached session is the edited one
	found, err := sess.Resume(ctx)
	if err != nil || !found {
		t.Fatalf("resume: %v %v", found, err)
	}
	if u, p := store.Source(); u != "https://www.youtube.com/watch?v=e2e" || p != "speaker names" {
		t.Fatalf("unexpected source %q %q", u, p)
	}

	al.mu.Lock()
	defer al.mu.Unlock()
	if len(al.errs) != 0 {
		t.Fatalf("unexpected save failures: %v", al.errs)
	}
}

func trimmedTexts(segs []types.Segment) []string {
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		out = append(out, strings.TrimSpace(s.Text))
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
