// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

// Package control provides the pluggable retry strategies and rate limiters
// consumed by the transport layer. Strategies are pure delay calculators;
// limiters own the one piece of mutable shared state in a run and serialize
// admission decisions behind a mutex. All waiting goes through an injected
// clockwork.Clock so tests run on a fake clock.
package control

import (
	"time"
)

// RetryStrategy computes the delay before a given retry attempt. Attempt
// numbering starts at 1 for the first retry.
type RetryStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows the delay geometrically:
// initial × multiplier^(attempt-1), capped at MaxWait when set.
type ExponentialBackoff struct {
	Initial    time.Duration
	Multiplier float64
	MaxWait    time.Duration // 0 means uncapped
}

func (s *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(s.Initial)
	for i := 1; i < attempt; i++ {
		d *= s.Multiplier
	}
	delay := time.Duration(d)
	if s.MaxWait > 0 && delay > s.MaxWait {
		delay = s.MaxWait
	}
	return delay
}

// LinearGrowth grows the delay by a fixed increment per attempt:
// initial + increment×(attempt-1), capped at MaxWait when set.
type LinearGrowth struct {
	Initial   time.Duration
	Increment time.Duration
	MaxWait   time.Duration // 0 means uncapped
}

func (s *LinearGrowth) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := s.Initial + time.Duration(attempt-1)*s.Increment
	if s.MaxWait > 0 && delay > s.MaxWait {
		delay = s.MaxWait
	}
	return delay
}

// FixedWait always waits the same delay.
type FixedWait struct {
	Delay time.Duration
}

func (s *FixedWait) NextDelay(int) time.Duration { return s.Delay }
