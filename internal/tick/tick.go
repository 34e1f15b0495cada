// Package tick abstracts the host's frame-presentation callback. Ticker
// drives callbacks from the wall clock; Manual is stepped explicitly by
// tests.
package tick

import (
	"context"
	"sync"
	"time"
)

// Func is invoked once per presented frame.
type Func func(ctx context.Context, now time.Time)

// Scheduler delivers ticks to fn until the returned stop function is called.
// Ticks are never delivered concurrently, and stop waits for an in-flight
// tick to return.
type Scheduler interface {
	Start(ctx context.Context, fn Func) (stop func())
}

// Ticker fires at a fixed rate. Ticks that would overlap a slow callback are
// skipped.
type Ticker struct {
	interval time.Duration
}

// NewTicker returns a scheduler firing fps times per second.
func NewTicker(fps int) *Ticker {
	if fps <= 0 {
		fps = 30
	}
	return &Ticker{interval: time.Second / time.Duration(fps)}
}

// Interval is the time between ticks.
func (t *Ticker) Interval() time.Duration { return t.interval }

func (t *Ticker) Start(ctx context.Context, fn Func) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				fn(ctx, now)
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

// Manual delivers ticks only when Advance is called. The clock starts at the
// provided time and moves forward by step per tick.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	step    time.Duration
	fn      Func
	ctx     context.Context
	stopped bool
}

// NewManual returns a manual scheduler.
func NewManual(start time.Time, step time.Duration) *Manual {
	if step <= 0 {
		step = time.Second / 30
	}
	return &Manual{now: start, step: step}
}

func (m *Manual) Start(ctx context.Context, fn Func) func() {
	m.mu.Lock()
	m.fn = fn
	m.ctx = ctx
	m.stopped = false
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.stopped = true
		m.fn = nil
		m.mu.Unlock()
	}
}

// Advance delivers n ticks and returns the clock after the last one. Ticks
// after stop are dropped, but the clock still moves.
func (m *Manual) Advance(n int) time.Time {
	for range n {
		m.mu.Lock()
		m.now = m.now.Add(m.step)
		now, fn, ctx := m.now, m.fn, m.ctx
		if m.stopped {
			fn = nil
		}
		m.mu.Unlock()
		if fn != nil {
			fn(ctx, now)
		}
	}
	return m.Now()
}

// Now returns the manual clock.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t without delivering a tick.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}
