package debounce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CollapsesBurst(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{}, 4)
	d := New(20*time.Millisecond, func() {
		calls.Add(1)
		done <- struct{}{}
	})

	for i := 0; i < 10; i++ {
		d.Trigger()
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("debounced callback never fired")
	}
	time.Sleep(60 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 call, got %d", got)
	}
	if d.Pending() {
		t.Fatalf("expected nothing pending after fire")
	}
}

func TestDebouncer_ReadsStateAtFireTime(t *testing.T) {
	var mu sync.Mutex
	value := "a"
	var seen string
	d := New(time.Hour, func() {
		mu.Lock()
		seen = value
		mu.Unlock()
	})

	d.Trigger()
	mu.Lock()
	value = "b"
	mu.Unlock()

	if !d.Flush() {
		t.Fatalf("expected a pending callback")
	}
	if seen != "b" {
		t.Fatalf("expected value at fire time, got %q", seen)
	}
	if d.Flush() {
		t.Fatalf("second flush should find nothing pending")
	}
}

func TestDebouncer_StopDrops(t *testing.T) {
	var calls atomic.Int32
	d := New(10*time.Millisecond, func() { calls.Add(1) })
	d.Trigger()
	d.Stop()
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("stopped debouncer fired")
	}
}

func TestGroup_KeysAreIndependent(t *testing.T) {
	var mu sync.Mutex
	got := map[int]int{}
	g := NewGroup(time.Hour, func(k int) {
		mu.Lock()
		got[k]++
		mu.Unlock()
	})

	g.Trigger(1)
	g.Trigger(1)
	g.Trigger(2)
	if !g.Pending(1) || !g.Pending(2) || g.Pending(3) {
		t.Fatalf("unexpected pending state")
	}
	if n := g.Flush(); n != 2 {
		t.Fatalf("expected 2 flushed keys, got %d", n)
	}
	if got[1] != 1 || got[2] != 1 {
		t.Fatalf("expected one call per key, got %v", got)
	}

	g.Trigger(3)
	g.Stop()
	if n := g.Flush(); n != 0 {
		t.Fatalf("expected nothing after Stop, got %d", n)
	}
}

func TestDebouncer_FlushWaitsForRunningCallback(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	d := New(5*time.Millisecond, func() {
		close(started)
		<-release
		finished.Store(true)
	})

	d.Trigger()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("debounced callback never fired")
	}

	flushed := make(chan bool)
	go func() { flushed <- d.Flush() }()
	select {
	case <-flushed:
		t.Fatalf("flush returned while the callback was still running")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	select {
	case ran := <-flushed:
		if ran {
			t.Fatalf("flush should not run the callback a second time")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("flush never returned")
	}
	if !finished.Load() {
		t.Fatalf("flush returned before the callback finished")
	}
}
