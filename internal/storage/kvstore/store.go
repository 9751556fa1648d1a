// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package kvstore stores small values by string key with multi-key
// transactions. The last-location views live here.
//
// Update runs its callback optimistically: if another writer commits a
// conflicting change first, the callback is re-run against fresh state.
// Callbacks must therefore be free of side effects outside the Tx.
package kvstore

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

var (
	// ErrNotFound is returned when no value exists under a key.
	ErrNotFound = errors.New("key not found")

	// ErrConflict is returned when an Update kept conflicting with concurrent
	// writers until its retry budget ran out.
	ErrConflict = errors.New("transaction conflict")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("index store closed")
)

// Tx is the view of the store inside Update.
type Tx interface {
	// Get returns the value under key as of the transaction, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Set stages value under key; it becomes visible when Update commits.
	Set(key string, value []byte) error
}

// Store is a transactional key/value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error

	// Update runs fn in a read-write transaction and commits it. fn may run
	// more than once.
	Update(ctx context.Context, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}

// RetryPolicy bounds optimistic retries.
type RetryPolicy struct {
	// MaxRetries is the number of re-runs after the first attempt.
	MaxRetries int
	// BaseBackoff is the first sleep; it doubles per retry up to MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy retries up to 10 times with 1ms..50ms jittered backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  10,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  50 * time.Millisecond,
	}
}

// backoff sleeps before retry number attempt (0-based), returning early with
// the context error if ctx is done.
func (p RetryPolicy) backoff(ctx context.Context, attempt int) error {
	d := p.BaseBackoff << attempt
	if d <= 0 || d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	if d > 0 {
		// Full jitter keeps colliding writers from retrying in lockstep.
		d = time.Duration(rand.Int64N(int64(d)) + 1)
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
