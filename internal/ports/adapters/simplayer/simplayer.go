// Package simplayer is a wall-clock driven stand-in for an embedded video
// player. The playhead advances while playing and stops at the duration.
package simplayer

import (
	"sync"
	"time"

	"github.com/forPelevin/tredit/internal/ports"
)

type Adapter struct {
	duration float64
	now      func() time.Time

	mu        sync.Mutex
	state     ports.PlayerState
	base      float64
	since     time.Time
	destroyed bool
	listener  func(ports.PlayerState)
}

func New(duration float64) *Adapter {
	return newWithClock(duration, time.Now)
}

func newWithClock(duration float64, now func() time.Time) *Adapter {
	return &Adapter{duration: duration, now: now, state: ports.PlayerUnstarted}
}

// Load cues a new source of the given length, paused at zero.
func (a *Adapter) Load(duration float64) {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return
	}
	a.duration = duration
	a.base = 0
	a.since = a.now()
	notify := a.setStateLocked(ports.PlayerUnstarted)
	a.mu.Unlock()
	notify()
}

func (a *Adapter) OnStateChange(fn func(ports.PlayerState)) {
	a.mu.Lock()
	a.listener = fn
	a.mu.Unlock()
}

func (a *Adapter) Seek(sec float64) {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return
	}
	a.base = a.clampLocked(sec)
	a.since = a.now()
	notify := a.setStateLocked(a.resumedStateLocked())
	a.mu.Unlock()
	notify()
}

func (a *Adapter) Play() {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return
	}
	a.base = a.positionLocked()
	a.since = a.now()
	notify := a.setStateLocked(ports.PlayerPlaying)
	a.mu.Unlock()
	notify()
}

func (a *Adapter) Pause() {
	a.mu.Lock()
	if a.destroyed || a.state == ports.PlayerPaused {
		a.mu.Unlock()
		return
	}
	a.base = a.positionLocked()
	notify := a.setStateLocked(ports.PlayerPaused)
	a.mu.Unlock()
	notify()
}

// CurrentTime reports the playhead and emits Ended once it reaches the end.
func (a *Adapter) CurrentTime() float64 {
	a.mu.Lock()
	pos := a.positionLocked()
	notify := func() {}
	if a.state == ports.PlayerPlaying && a.duration > 0 && pos >= a.duration {
		a.base = a.duration
		notify = a.setStateLocked(ports.PlayerEnded)
	}
	a.mu.Unlock()
	notify()
	return pos
}

func (a *Adapter) Duration() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return 0
	}
	return a.duration
}

func (a *Adapter) State() ports.PlayerState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Adapter) Destroy() {
	a.mu.Lock()
	a.destroyed = true
	a.state = ports.PlayerUnstarted
	a.listener = nil
	a.mu.Unlock()
}

func (a *Adapter) positionLocked() float64 {
	if a.state != ports.PlayerPlaying {
		return a.base
	}
	return a.clampLocked(a.base + a.now().Sub(a.since).Seconds())
}

func (a *Adapter) resumedStateLocked() ports.PlayerState {
	if a.state == ports.PlayerEnded {
		return ports.PlayerPaused
	}
	return a.state
}

func (a *Adapter) clampLocked(sec float64) float64 {
	if sec < 0 {
		return 0
	}
	if a.duration > 0 && sec > a.duration {
		return a.duration
	}
	return sec
}

// setStateLocked returns the listener call to make after unlocking.
func (a *Adapter) setStateLocked(st ports.PlayerState) func() {
	if a.state == st {
		return func() {}
	}
	a.state = st
	fn := a.listener
	if fn == nil {
		return func() {}
	}
	return func() { fn(st) }
}
