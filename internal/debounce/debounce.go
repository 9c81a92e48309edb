// Package debounce delays a callback until calls to Trigger have been quiet
// for a fixed interval. The callback reads whatever state it needs when it
// fires, never when it was scheduled.
package debounce

import (
	"sync"
	"time"
)

type Debouncer struct {
	delay time.Duration
	fn    func()

	// run is held while fn executes.
	run sync.Mutex

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	pending bool
}

func New(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger cancels any scheduled run and schedules a new one.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.pending = true
	d.timer = time.AfterFunc(d.delay, func() { d.fire(seq) })
}

func (d *Debouncer) fire(seq uint64) {
	d.run.Lock()
	defer d.run.Unlock()
	d.mu.Lock()
	if seq != d.seq || !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.mu.Unlock()
	d.fn()
}

// Flush runs a scheduled callback now, on the caller's goroutine, after
// any run already in progress has returned. It returns false when nothing
// was pending.
func (d *Debouncer) Flush() bool {
	d.run.Lock()
	defer d.run.Unlock()
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	d.pending = false
	d.mu.Unlock()
	d.fn()
	return true
}

// Stop drops a scheduled callback without running it.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	d.pending = false
}

func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Group keeps one Debouncer per key, so bursts on different keys don't
// cancel each other.
type Group[K comparable] struct {
	delay time.Duration
	fn    func(K)

	mu sync.Mutex
	m  map[K]*Debouncer
}

func NewGroup[K comparable](delay time.Duration, fn func(K)) *Group[K] {
	return &Group[K]{delay: delay, fn: fn, m: make(map[K]*Debouncer)}
}

func (g *Group[K]) Trigger(key K) {
	g.get(key).Trigger()
}

func (g *Group[K]) get(key K) *Debouncer {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.m[key]
	if !ok {
		d = New(g.delay, func() { g.fn(key) })
		g.m[key] = d
	}
	return d
}

func (g *Group[K]) snapshot() []*Debouncer {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Debouncer, 0, len(g.m))
	for _, d := range g.m {
		out = append(out, d)
	}
	return out
}

// Flush runs every pending callback now and returns how many ran.
func (g *Group[K]) Flush() int {
	n := 0
	for _, d := range g.snapshot() {
		if d.Flush() {
			n++
		}
	}
	return n
}

// Stop drops every pending callback and forgets all keys.
func (g *Group[K]) Stop() {
	for _, d := range g.snapshot() {
		d.Stop()
	}
	g.mu.Lock()
	g.m = make(map[K]*Debouncer)
	g.mu.Unlock()
}

func (g *Group[K]) Pending(key K) bool {
	g.mu.Lock()
	d, ok := g.m[key]
	g.mu.Unlock()
	return ok && d.Pending()
}
