// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingLimiter struct {
	admits int
}

func (l *countingLimiter) Admit(context.Context) error {
	l.admits++
	return nil
}

var errRetryable = errors.New("try again")

func isRetryable(err error) bool { return errors.Is(err, errRetryable) }

func TestControllerSucceedsFirstAttempt(t *testing.T) {
	limiter := &countingLimiter{}
	c := NewController(&FixedWait{}, 3, limiter, isRetryable, nil, nil)

	calls := 0
	err := c.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Equal(t, 1, limiter.admits)
}

func TestControllerRetriesRetryable(t *testing.T) {
	limiter := &countingLimiter{}
	c := NewController(&FixedWait{}, 3, limiter, isRetryable, nil, nil)

	calls := 0
	err := c.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errRetryable
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	// Every attempt, retries included, goes through admission.
	require.Equal(t, 3, limiter.admits)
}

func TestControllerGivesUpAfterMaxRetries(t *testing.T) {
	c := NewController(&FixedWait{}, 2, nil, isRetryable, nil, nil)

	calls := 0
	err := c.Do(context.Background(), func(context.Context) error {
		calls++
		return errRetryable
	})
	require.ErrorIs(t, err, errRetryable)
	// Initial attempt plus MaxRetries retries.
	require.Equal(t, 3, calls)
}

func TestControllerReturnsNonRetryableImmediately(t *testing.T) {
	c := NewController(&FixedWait{Delay: time.Hour}, 5, nil, isRetryable, nil, nil)

	terminal := errors.New("bad request")
	calls := 0
	err := c.Do(context.Background(), func(context.Context) error {
		calls++
		return terminal
	})
	require.ErrorIs(t, err, terminal)
	require.Equal(t, 1, calls)
}

func TestControllerZeroRetries(t *testing.T) {
	c := NewController(&FixedWait{}, 0, nil, isRetryable, nil, nil)

	calls := 0
	err := c.Do(context.Background(), func(context.Context) error {
		calls++
		return errRetryable
	})
	require.ErrorIs(t, err, errRetryable)
	require.Equal(t, 1, calls)
}
