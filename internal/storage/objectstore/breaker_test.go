// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package objectstore

import (
	"errors"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

func testBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Hour,
		MinRequests:  4,
		FailureRatio: 0.5,
	}
}

func TestBreaker_OpensOnFailures(t *testing.T) {
	t.Parallel()

	b := newBreaker("test-open", testBreakerConfig())
	boom := errors.New("connection reset")

	for i := 0; i < 4; i++ {
		_, _ = b.execute(func() (interface{}, error) { return nil, boom })
	}

	if b.state() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", b.state())
	}

	_, err := b.execute(func() (interface{}, error) {
		t.Error("fn ran while breaker open")
		return nil, nil
	})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("execute() error = %v, want ErrOpenState", err)
	}
}

func TestBreaker_NotFoundDoesNotTrip(t *testing.T) {
	t.Parallel()

	b := newBreaker("test-notfound", testBreakerConfig())
	for i := 0; i < 10; i++ {
		_, err := b.execute(func() (interface{}, error) { return nil, ErrNotFound })
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("execute() error = %v, want ErrNotFound", err)
		}
	}

	if b.state() != gobreaker.StateClosed {
		t.Errorf("state = %v, want closed", b.state())
	}
}

func TestStateToFloat(t *testing.T) {
	t.Parallel()

	tests := map[gobreaker.State]float64{
		gobreaker.StateClosed:   0,
		gobreaker.StateHalfOpen: 1,
		gobreaker.StateOpen:     2,
	}
	for state, want := range tests {
		if got := stateToFloat(state); got != want {
			t.Errorf("stateToFloat(%v) = %v, want %v", state, got, want)
		}
	}
}
