// Copyright 2026 BlueSkyXN
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff(t *testing.T) {
	s := &ExponentialBackoff{Initial: 500 * time.Millisecond, Multiplier: 2.0}

	require.Equal(t, 500*time.Millisecond, s.NextDelay(1))
	require.Equal(t, 1*time.Second, s.NextDelay(2))
	require.Equal(t, 2*time.Second, s.NextDelay(3))
	require.Equal(t, 8*time.Second, s.NextDelay(5))
}

func TestExponentialBackoffCapped(t *testing.T) {
	s := &ExponentialBackoff{Initial: 500 * time.Millisecond, Multiplier: 2.0, MaxWait: 1500 * time.Millisecond}

	require.Equal(t, 500*time.Millisecond, s.NextDelay(1))
	require.Equal(t, 1*time.Second, s.NextDelay(2))
	require.Equal(t, 1500*time.Millisecond, s.NextDelay(3))
	require.Equal(t, 1500*time.Millisecond, s.NextDelay(10))
}

func TestExponentialBackoffClampsAttempt(t *testing.T) {
	s := &ExponentialBackoff{Initial: time.Second, Multiplier: 2.0}

	require.Equal(t, time.Second, s.NextDelay(0))
	require.Equal(t, time.Second, s.NextDelay(-3))
}

func TestLinearGrowth(t *testing.T) {
	s := &LinearGrowth{Initial: time.Second, Increment: 500 * time.Millisecond}

	require.Equal(t, time.Second, s.NextDelay(1))
	require.Equal(t, 1500*time.Millisecond, s.NextDelay(2))
	require.Equal(t, 3*time.Second, s.NextDelay(5))
}

func TestLinearGrowthCapped(t *testing.T) {
	s := &LinearGrowth{Initial: time.Second, Increment: time.Second, MaxWait: 2500 * time.Millisecond}

	require.Equal(t, 2*time.Second, s.NextDelay(2))
	require.Equal(t, 2500*time.Millisecond, s.NextDelay(3))
	require.Equal(t, 2500*time.Millisecond, s.NextDelay(100))
}

func TestFixedWait(t *testing.T) {
	s := &FixedWait{Delay: 750 * time.Millisecond}

	require.Equal(t, 750*time.Millisecond, s.NextDelay(1))
	require.Equal(t, 750*time.Millisecond, s.NextDelay(42))
}
