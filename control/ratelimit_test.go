// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// admitAsync runs Admit in a goroutine and returns the channel its result
// lands on.
func admitAsync(l RateLimiter, ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() { done <- l.Admit(ctx) }()
	return done
}

func requireBlocked(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		t.Fatalf("admission should have blocked, returned %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func requireAdmitted(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("admission did not complete")
	}
}

func TestFixedDelayLimiter(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewFixedDelayLimiter(clock, time.Second)

	// The first call pays no delay.
	require.NoError(t, l.Admit(context.Background()))

	done := admitAsync(l, context.Background())
	clock.BlockUntil(1)
	requireBlocked(t, done)

	clock.Advance(time.Second)
	requireAdmitted(t, done)
}

func TestFixedDelayLimiterElapsedCounts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewFixedDelayLimiter(clock, time.Second)

	require.NoError(t, l.Admit(context.Background()))
	clock.Advance(2 * time.Second)

	// More than the delay has passed, so no waiting.
	require.NoError(t, l.Admit(context.Background()))
}

func TestSlidingWindowLimiter(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewSlidingWindowLimiter(clock, time.Second, 2)

	require.NoError(t, l.Admit(context.Background()))
	require.NoError(t, l.Admit(context.Background()))

	// Third admission inside the window must wait for the oldest timestamp
	// to slide out.
	done := admitAsync(l, context.Background())
	clock.BlockUntil(1)
	requireBlocked(t, done)

	clock.Advance(time.Second)
	requireAdmitted(t, done)
}

func TestSlidingWindowLimiterRolls(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewSlidingWindowLimiter(clock, time.Second, 2)

	require.NoError(t, l.Admit(context.Background()))
	clock.Advance(600 * time.Millisecond)
	require.NoError(t, l.Admit(context.Background()))
	clock.Advance(600 * time.Millisecond)

	// The first admission is now outside the window.
	require.NoError(t, l.Admit(context.Background()))
}

func TestFixedWindowLimiter(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewFixedWindowLimiter(clock, time.Second, 2)

	require.NoError(t, l.Admit(context.Background()))
	require.NoError(t, l.Admit(context.Background()))

	done := admitAsync(l, context.Background())
	clock.BlockUntil(1)
	requireBlocked(t, done)

	// Rolling into the next window resets the counter.
	clock.Advance(time.Second)
	requireAdmitted(t, done)

	require.NoError(t, l.Admit(context.Background()))
}

func TestLimiterContextCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewSlidingWindowLimiter(clock, time.Minute, 1)

	require.NoError(t, l.Admit(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := admitAsync(l, ctx)
	clock.BlockUntil(1)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled admission did not return")
	}
}

func TestNopLimiter(t *testing.T) {
	require.NoError(t, NopLimiter{}.Admit(context.Background()))
}
