// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RateLimiter gates network attempts. Admit blocks the caller until sending
// is permitted, and must be called immediately before every attempt,
// including retries; each attempt consumes one admission slot.
type RateLimiter interface {
	Admit(ctx context.Context) error
}

// sleepClock waits for d on the given clock, or returns early when the
// context is cancelled.
func sleepClock(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FixedDelayLimiter enforces a minimum interval since the previous admitted
// call.
type FixedDelayLimiter struct {
	clock clockwork.Clock
	delay time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewFixedDelayLimiter returns a limiter spacing admissions at least delay
// apart.
func NewFixedDelayLimiter(clock clockwork.Clock, delay time.Duration) *FixedDelayLimiter {
	return &FixedDelayLimiter{clock: clock, delay: delay}
}

func (l *FixedDelayLimiter) Admit(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() {
		elapsed := l.clock.Since(l.last)
		if elapsed < l.delay {
			if err := sleepClock(ctx, l.clock, l.delay-elapsed); err != nil {
				return err
			}
		}
	}
	l.last = l.clock.Now()
	return nil
}

// SlidingWindowLimiter keeps a rolling log of admission timestamps and blocks
// when the count inside the window would exceed maxRequests, waiting until
// the oldest timestamp exits the window.
type SlidingWindowLimiter struct {
	clock       clockwork.Clock
	window      time.Duration
	maxRequests int

	mu  sync.Mutex
	log []time.Time
}

// NewSlidingWindowLimiter returns a limiter allowing maxRequests admissions
// per rolling window.
func NewSlidingWindowLimiter(clock clockwork.Clock, window time.Duration, maxRequests int) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{clock: clock, window: window, maxRequests: maxRequests}
}

func (l *SlidingWindowLimiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.log) && !l.log[i].After(cutoff) {
		i++
	}
	l.log = l.log[i:]
}

func (l *SlidingWindowLimiter) Admit(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		now := l.clock.Now()
		l.evict(now)
		if len(l.log) < l.maxRequests {
			l.log = append(l.log, now)
			return nil
		}
		wait := l.log[0].Add(l.window).Sub(now)
		if err := sleepClock(ctx, l.clock, wait); err != nil {
			return err
		}
	}
}

// FixedWindowLimiter counts admissions per wall-clock-aligned window and
// blocks once the counter reaches maxRequests until the window rolls over.
// Bursts across a boundary (two windows' worth back to back) are accepted as
// the cost of the simpler accounting.
type FixedWindowLimiter struct {
	clock       clockwork.Clock
	window      time.Duration
	maxRequests int

	mu    sync.Mutex
	start time.Time
	count int
}

// NewFixedWindowLimiter returns a limiter allowing maxRequests admissions per
// aligned window.
func NewFixedWindowLimiter(clock clockwork.Clock, window time.Duration, maxRequests int) *FixedWindowLimiter {
	return &FixedWindowLimiter{clock: clock, window: window, maxRequests: maxRequests}
}

func (l *FixedWindowLimiter) windowStart(now time.Time) time.Time {
	return now.Truncate(l.window)
}

func (l *FixedWindowLimiter) Admit(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		now := l.clock.Now()
		if ws := l.windowStart(now); ws.After(l.start) {
			l.start = ws
			l.count = 0
		}
		if l.count < l.maxRequests {
			l.count++
			return nil
		}
		wait := l.start.Add(l.window).Sub(now)
		if err := sleepClock(ctx, l.clock, wait); err != nil {
			return err
		}
	}
}

// NopLimiter admits every attempt immediately.
type NopLimiter struct{}

func (NopLimiter) Admit(context.Context) error { return nil }
