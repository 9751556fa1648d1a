// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package objectstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/tomtom215/waypoint/internal/logging"
)

// PebbleConfig configures the local pebble backend.
type PebbleConfig struct {
	// Path is the pebble data directory.
	Path string

	// Sync fsyncs the WAL on every write.
	Sync bool

	// ReadOnly opens an existing store without taking the write lock path.
	ReadOnly bool
}

// PebbleStore stores each object as one pebble key. Append writes a merge
// operand; pebble's default merger concatenates operands, so an append is a
// single write regardless of partition size.
type PebbleStore struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions

	mu     sync.RWMutex
	closed bool
}

// NewPebble opens (or creates) a pebble store at cfg.Path.
func NewPebble(cfg PebbleConfig) (*PebbleStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("pebble path is required")
	}

	opts := &pebble.Options{
		Merger:   pebble.DefaultMerger,
		ReadOnly: cfg.ReadOnly,
		Logger:   pebbleLogger{},
	}
	db, err := pebble.Open(cfg.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", cfg.Path, err)
	}

	writeOpts := pebble.NoSync
	if cfg.Sync {
		writeOpts = pebble.Sync
	}

	logging.Info().Str("path", cfg.Path).Bool("sync", cfg.Sync).Bool("read_only", cfg.ReadOnly).
		Msg("Object store opened (pebble)")
	return &PebbleStore{db: db, writeOpts: writeOpts}, nil
}

// Get returns the merged value under key.
func (s *PebbleStore) Get(_ context.Context, key string) (data []byte, err error) {
	defer observe("pebble", "get", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	value, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pebble get %s: %w", key, err)
	}
	defer closer.Close()

	return append([]byte(nil), value...), nil
}

// Put replaces the value under key, discarding earlier merge operands.
func (s *PebbleStore) Put(_ context.Context, key string, data []byte) (err error) {
	defer observe("pebble", "put", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	if err := s.db.Set([]byte(key), data, s.writeOpts); err != nil {
		return fmt.Errorf("pebble set %s: %w", key, err)
	}
	return nil
}

// Append adds data to the end of the object under key.
func (s *PebbleStore) Append(_ context.Context, key string, data []byte) (err error) {
	defer observe("pebble", "append", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	if err := s.db.Merge([]byte(key), data, s.writeOpts); err != nil {
		return fmt.Errorf("pebble merge %s: %w", key, err)
	}
	return nil
}

// List iterates keys in [prefix, prefixUpperBound(prefix)).
func (s *PebbleStore) List(ctx context.Context, prefix string) (keys []string, err error) {
	defer observe("pebble", "list", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixUpperBound([]byte(prefix)),
	})
	if err != nil {
		return nil, fmt.Errorf("pebble iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		keys = append(keys, string(iter.Key()))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("pebble iterate %s: %w", prefix, err)
	}
	return keys, nil
}

// Ping fails after Close.
func (s *PebbleStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close flushes and closes the database.
func (s *PebbleStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// pebbleLogger routes pebble's internal log lines to zerolog.
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...interface{}) {
	logging.Debug().Str("component", "pebble").Msgf(format, args...)
}

func (pebbleLogger) Errorf(format string, args ...interface{}) {
	logging.Error().Str("component", "pebble").Msgf(format, args...)
}

func (pebbleLogger) Fatalf(format string, args ...interface{}) {
	logging.Fatal().Str("component", "pebble").Msgf(format, args...)
}
