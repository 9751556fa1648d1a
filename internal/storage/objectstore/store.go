// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package objectstore stores byte blobs by key. Record partitions live here.
//
// Three backends implement Store:
//
//   - Pebble: local LSM store; also implements Appender via merge operands.
//   - S3: any S3-compatible bucket (AWS, R2, MinIO) through minio-go, guarded
//     by a circuit breaker.
//   - Memory: process-local map for tests and throwaway instances.
package objectstore

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/waypoint/internal/metrics"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("object store closed")

// Store is a flat key/blob namespace with atomic whole-object replace.
type Store interface {
	// Get returns the full object, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the object under key.
	Put(ctx context.Context, key string, data []byte) error

	// List returns all keys starting with prefix in lexicographic order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Appender is implemented by stores that can append to an object without
// reading it first. Appending to a missing key creates it.
type Appender interface {
	Append(ctx context.Context, key string, data []byte) error
}

// observe records latency and failure of one backend call. Use with a named
// error return:
//
//	defer observe("pebble", "get", time.Now(), &err)
func observe(backend, operation string, start time.Time, errp *error) {
	err := *errp
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	metrics.RecordObjectStoreOp(backend, operation, time.Since(start), err)
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix, or nil when no such bound exists.
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
