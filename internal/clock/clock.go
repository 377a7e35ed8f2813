// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package clock abstracts time for the background loops so tests can
// drive them without waiting.
package clock

import (
	"context"
	"time"
)

// Clock supplies the current time, sleeps, timers and tickers.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
	NewTimer(d time.Duration) Timer
	NewTicker(d time.Duration) Ticker
}

// Timer fires once on C.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Ticker fires on C every period.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// System is the wall clock.
type System struct{}

func (System) Now() time.Time {
	return time.Now()
}

func (System) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (System) NewTimer(d time.Duration) Timer {
	return systemTimer{time.NewTimer(d)}
}

func (System) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

type systemTimer struct{ t *time.Timer }

func (s systemTimer) C() <-chan time.Time { return s.t.C }
func (s systemTimer) Stop() bool          { return s.t.Stop() }

type systemTicker struct{ t *time.Ticker }

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }
