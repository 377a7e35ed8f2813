// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSystem_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := System{}.Sleep(ctx, time.Hour)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestSystem_Sleep(t *testing.T) {
	start := time.Now()

	err := System{}.Sleep(context.Background(), 10*time.Millisecond)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestSystem_TimerAndTicker(t *testing.T) {
	timer := System{}.NewTimer(time.Millisecond)
	select {
	case <-timer.C():
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.False(t, timer.Stop())

	ticker := System{}.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for i := 0; i < 2; i++ {
		select {
		case <-ticker.C():
		case <-time.After(time.Second):
			t.Fatal("ticker did not fire")
		}
	}
}

func TestFake_Timer(t *testing.T) {
	f := NewFake(epoch)
	timer := f.NewTimer(2 * time.Second)
	assert.Equal(t, 1, f.Waiters())

	f.Advance(time.Second)
	assert.Empty(t, timer.C())

	f.Advance(time.Second)
	assert.Equal(t, epoch.Add(2*time.Second), <-timer.C())
	assert.Zero(t, f.Waiters())
	assert.False(t, timer.Stop())
}

func TestFake_TimerStopped(t *testing.T) {
	f := NewFake(epoch)
	timer := f.NewTimer(time.Second)

	assert.True(t, timer.Stop())
	f.Advance(time.Hour)

	assert.Empty(t, timer.C())
	assert.Zero(t, f.Waiters())
}

func TestFake_ZeroTimerFiresImmediately(t *testing.T) {
	f := NewFake(epoch)
	timer := f.NewTimer(0)

	assert.Equal(t, epoch, <-timer.C())
}

func TestFake_Ticker(t *testing.T) {
	f := NewFake(epoch)
	ticker := f.NewTicker(time.Minute)

	f.Advance(time.Minute)
	assert.Equal(t, epoch.Add(time.Minute), <-ticker.C())

	// Ticks nobody received are dropped, not queued.
	f.Advance(3 * time.Minute)
	assert.Len(t, ticker.C(), 1)
	<-ticker.C()

	ticker.Stop()
	f.Advance(time.Minute)
	assert.Empty(t, ticker.C())
	assert.Zero(t, f.Waiters())
}

func TestFake_SleepAdvances(t *testing.T) {
	f := NewFake(epoch)
	timer := f.NewTimer(time.Second)

	require.NoError(t, f.Sleep(context.Background(), 500*time.Millisecond))
	require.NoError(t, f.Sleep(context.Background(), 500*time.Millisecond))
	require.NoError(t, f.Sleep(context.Background(), 0))

	assert.Equal(t, epoch.Add(time.Second), f.Now())
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond, 0}, f.Sleeps())
	assert.Len(t, timer.C(), 1)
}

func TestFake_SleepCancelled(t *testing.T) {
	f := NewFake(epoch)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, f.Sleep(ctx, time.Second), context.Canceled)
}
