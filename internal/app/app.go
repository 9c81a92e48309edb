// Package app wires the backend client, the player and the editor store
// into one editing session.
package app

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/tredit/internal/editor"
	"github.com/forPelevin/tredit/internal/ports"
	"github.com/forPelevin/tredit/internal/ports/adapters/httpapi"
	"github.com/forPelevin/tredit/internal/ports/adapters/simplayer"
)

type Session struct {
	Store  *editor.Store
	Player *simplayer.Adapter

	fallback float64
}

// NewSession connects to the configured backend. notifier and view may be nil.
func NewSession(cfg Config, log *logrus.Logger, notifier ports.Notifier, view ports.View) (*Session, error) {
	backend, err := httpapi.New(httpapi.Options{
		BaseURL:        cfg.BaseURL,
		Token:          cfg.Token,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         log,
	})
	if err != nil {
		return nil, err
	}
	return newSession(cfg, backend, log, notifier, view), nil
}

func newSession(cfg Config, backend ports.Backend, log *logrus.Logger, notifier ports.Notifier, view ports.View) *Session {
	player := simplayer.New(cfg.FallbackDuration)
	store := editor.New(editor.Deps{
		Backend:  backend,
		Player:   player,
		Notifier: notifier,
		View:     view,
		Logger:   log,
	}, editor.Options{
		TextDebounce:     cfg.TextDebounce,
		BoundsDebounce:   cfg.BoundsDebounce,
		PollInterval:     cfg.PollInterval,
		PersistTimeout:   cfg.RequestTimeout,
		AutoContinue:     cfg.AutoContinue,
		FallbackDuration: cfg.FallbackDuration,
	})
	return &Session{Store: store, Player: player, fallback: cfg.FallbackDuration}
}

// Open transcribes sourceURL and cues the player on it.
func (s *Session) Open(ctx context.Context, sourceURL, prompt string) error {
	if err := s.Store.Transcribe(ctx, sourceURL, prompt); err != nil {
		return err
	}
	s.cue()
	return nil
}

// Resume loads the backend's cached session, if there is one.
func (s *Session) Resume(ctx context.Context) (bool, error) {
	found, err := s.Store.LoadCached(ctx)
	if err != nil || !found {
		return found, err
	}
	s.cue()
	return true, nil
}

// cue loads the player with the source length. The simulated player can't
// inspect the media, so the last segment end stands in when no fallback is set.
func (s *Session) cue() {
	d := s.fallback
	if d <= 0 {
		for _, seg := range s.Store.Snapshot().Transcription.Segments {
			d = max(d, seg.End)
		}
	}
	s.Player.Load(d)
}

func (s *Session) Close() {
	s.Store.Close()
	s.Player.Destroy()
}
