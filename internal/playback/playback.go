// Package playback keeps a player inside the time range of the selected
// segment. It polls the player on a fixed interval instead of relying on
// native boundary events, so an overrun is corrected within one interval.
package playback

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/tredit/internal/ports"
	"github.com/forPelevin/tredit/internal/types"
)

const DefaultPollInterval = 100 * time.Millisecond

// Lookup returns the current bounds of segment i.
type Lookup func(i int) (types.Segment, bool)

type Options struct {
	PollInterval time.Duration
	AutoContinue bool
	Logger       *logrus.Logger
}

// Sync is the NoSelection / Selected(i) state machine.
type Sync struct {
	player   ports.Player
	lookup   Lookup
	interval time.Duration
	log      *logrus.Logger

	mu           sync.Mutex
	active       int
	autoContinue bool
	stop         chan struct{}
	done         chan struct{}
}

func New(p ports.Player, lookup Lookup, o Options) *Sync {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	s := &Sync{
		player:       p,
		lookup:       lookup,
		interval:     o.PollInterval,
		log:          o.Logger,
		active:       -1,
		autoContinue: o.AutoContinue,
	}
	p.OnStateChange(s.HandleStateChange)
	return s
}

// Select moves to Selected(i) and seeks to the segment start. Selecting the
// active index again does nothing unless force is set. It reports whether
// the player was moved.
func (s *Sync) Select(i int, force bool) bool {
	seg, ok := s.lookup(i)
	if !ok {
		return false
	}

	s.mu.Lock()
	if s.active == i && !force {
		s.mu.Unlock()
		return false
	}
	s.active = i
	auto := s.autoContinue
	if s.stop == nil {
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.poll(s.stop, s.done)
	}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"index": i, "start": seg.Start, "end": seg.End, "force": force}).Debug("segment selected")
	s.player.Seek(seg.Start)
	if auto {
		s.player.Play()
	} else {
		s.player.Pause()
	}
	return true
}

// Clear moves to NoSelection, stops the poll loop and pauses the player.
// When Clear returns no further bounds check will run.
func (s *Sync) Clear() {
	s.mu.Lock()
	was := s.active
	s.active = -1
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	if was >= 0 {
		s.player.Pause()
		s.log.WithField("index", was).Debug("selection cleared")
	}
}

// Active returns the selected index.
func (s *Sync) Active() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.active >= 0
}

// Rebind points the selection at a new index for the same segment, e.g.
// after an earlier row was removed. The player is not moved.
func (s *Sync) Rebind(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active >= 0 {
		s.active = i
	}
}

func (s *Sync) AutoContinue() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoContinue
}

// SetAutoContinue resumes playback when enabled with a selection and pauses
// when disabled.
func (s *Sync) SetAutoContinue(on bool) {
	s.mu.Lock()
	s.autoContinue = on
	active := s.active
	s.mu.Unlock()

	switch {
	case on && active >= 0:
		s.player.Play()
	case !on:
		s.player.Pause()
	}
}

// HandleStateChange loops back to the segment start when the media ends.
func (s *Sync) HandleStateChange(st ports.PlayerState) {
	if st != ports.PlayerEnded {
		return
	}
	s.mu.Lock()
	i, auto := s.active, s.autoContinue
	s.mu.Unlock()
	if i < 0 || !auto {
		return
	}
	seg, ok := s.lookup(i)
	if !ok {
		return
	}
	s.player.Seek(seg.Start)
	s.player.Play()
}

func (s *Sync) poll(stop, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			s.checkBounds()
		}
	}
}

func (s *Sync) checkBounds() {
	s.mu.Lock()
	i, auto := s.active, s.autoContinue
	s.mu.Unlock()
	if i < 0 {
		return
	}
	seg, ok := s.lookup(i)
	if !ok {
		return
	}

	now := s.player.CurrentTime()
	switch {
	case now >= seg.End:
		if auto {
			s.player.Seek(seg.Start)
			s.player.Play()
			return
		}
		s.player.Pause()
		if now > seg.End {
			s.player.Seek(seg.End)
		}
	case now < seg.Start:
		s.player.Seek(seg.Start)
	}
}

func (s *Sync) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}
