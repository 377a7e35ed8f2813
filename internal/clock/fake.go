// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package clock

import (
	"context"
	"sync"
	"time"
)

// Fake is a manually advanced Clock for tests. Sleep and Advance move time
// forward and fire every timer and ticker that became due.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	fake   *Fake
	at     time.Time
	period time.Duration // zero for timers
	c      chan time.Time
	active bool
}

// NewFake returns a Fake set to now.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Sleep records d and advances the clock by it without blocking.
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, d)
	if d > 0 {
		f.now = f.now.Add(d)
		f.fire()
	}
	return ctx.Err()
}

// Sleeps returns the durations passed to Sleep so far.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	f.fire()
}

// Waiters returns the number of timers and tickers that may still fire.
func (f *Fake) Waiters() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, w := range f.waiters {
		if w.active {
			n++
		}
	}
	return n
}

func (f *Fake) NewTimer(d time.Duration) Timer {
	return fakeTimer{f.add(d, 0)}
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	return fakeTicker{f.add(d, d)}
}

func (f *Fake) add(d, period time.Duration) *fakeWaiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWaiter{fake: f, at: f.now.Add(d), period: period, c: make(chan time.Time, 1), active: true}
	f.waiters = append(f.waiters, w)
	f.fire()
	return w
}

// fire delivers due ticks. Like time.Ticker, a tick is dropped when the
// previous one was not received yet. Callers hold f.mu.
func (f *Fake) fire() {
	kept := f.waiters[:0]
	for _, w := range f.waiters {
		for w.active && !w.at.After(f.now) {
			select {
			case w.c <- f.now:
			default:
			}
			if w.period == 0 {
				w.active = false
				break
			}
			w.at = w.at.Add(w.period)
		}
		if w.active {
			kept = append(kept, w)
		}
	}
	f.waiters = kept
}

// stop deactivates the waiter and reports whether it was still pending.
func (w *fakeWaiter) stop() bool {
	w.fake.mu.Lock()
	defer w.fake.mu.Unlock()
	was := w.active
	w.active = false
	return was
}

type fakeTimer struct{ w *fakeWaiter }

func (t fakeTimer) C() <-chan time.Time { return t.w.c }
func (t fakeTimer) Stop() bool          { return t.w.stop() }

type fakeTicker struct{ w *fakeWaiter }

func (t fakeTicker) C() <-chan time.Time { return t.w.c }
func (t fakeTicker) Stop()               { t.w.stop() }
