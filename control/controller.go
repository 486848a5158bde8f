// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"
)

// Controller composes a retry strategy and a rate limiter into the single
// retry loop used for every network attempt. The limiter is consulted before
// each attempt (retries included); the strategy is consulted only for errors
// the Retryable predicate accepts. Everything else returns immediately.
type Controller struct {
	Strategy   RetryStrategy
	MaxRetries int
	Limiter    RateLimiter
	Retryable  func(error) bool
	Clock      clockwork.Clock
	Logger     *slog.Logger
}

// NewController wires a controller with sane zero-value handling: a nil
// limiter admits everything and a nil logger discards.
func NewController(strategy RetryStrategy, maxRetries int, limiter RateLimiter, retryable func(error) bool, clock clockwork.Clock, logger *slog.Logger) *Controller {
	if limiter == nil {
		limiter = NopLimiter{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{
		Strategy:   strategy,
		MaxRetries: maxRetries,
		Limiter:    limiter,
		Retryable:  retryable,
		Clock:      clock,
		Logger:     logger,
	}
}

// Do runs op under rate admission, retrying retryable failures up to
// MaxRetries times. The error from the final attempt is returned unwrapped so
// the caller can still classify it.
func (c *Controller) Do(ctx context.Context, op func(context.Context) error) error {
	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := c.Limiter.Admit(ctx); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if c.Retryable != nil && !c.Retryable(lastErr) {
			return lastErr
		}
		if attempt > c.MaxRetries {
			c.Logger.Error("giving up after retries", "attempts", attempt, "error", lastErr)
			return lastErr
		}

		delay := c.Strategy.NextDelay(attempt)
		c.Logger.Warn("transient failure, backing off",
			"attempt", attempt, "delay", delay, "error", lastErr)
		if err := sleepClock(ctx, c.Clock, delay); err != nil {
			return err
		}
	}
}
