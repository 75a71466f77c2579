// Package timeutil lets the frame loop and the recorder run on a clock that
// tests can step by hand.
package timeutil

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock is the time source for periodic loops.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock is the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// MockClock only moves when Advance is called. Ticks are delivered
// without blocking; a tick the loop has not consumed yet absorbs the next.
type MockClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*mockTicker
	started chan struct{}
}

// NewMockClock returns a clock stopped at start.
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start, started: make(chan struct{}, 8)}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *MockClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	t := &mockTicker{ch: make(chan time.Time, 1), every: d, next: c.now.Add(d)}
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()

	select {
	case c.started <- struct{}{}:
	default:
	}
	return t
}

// Started receives once per ticker created, so a test can wait for a loop
// to be running before it advances time.
func (c *MockClock) Started() <-chan struct{} { return c.started }

// Advance moves the clock forward by d and fires every live ticker that
// has come due. Stopped tickers are dropped.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	live := c.tickers[:0]
	for _, t := range c.tickers {
		if t.stopped.Load() {
			continue
		}
		live = append(live, t)
		if c.now.Before(t.next) {
			continue
		}
		select {
		case t.ch <- c.now:
		default:
		}
		t.next = c.now.Add(t.every)
	}
	c.tickers = live
}

type mockTicker struct {
	ch      chan time.Time
	every   time.Duration
	next    time.Time // guarded by the owning clock's mu
	stopped atomic.Bool
}

func (t *mockTicker) C() <-chan time.Time { return t.ch }
func (t *mockTicker) Stop()               { t.stopped.Store(true) }
