// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package keylock provides a table of mutexes addressed by string key.
// Writers that touch the same key are serialized while writers on different
// keys proceed in parallel.
package keylock

import (
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/tomtom215/waypoint/internal/metrics"
)

// entry is one lock plus the number of goroutines holding or waiting on it.
// refs is guarded by the shard lock of the owning map.
type entry struct {
	mu   sync.Mutex
	refs int
}

// Table is a set of lazily created per-key mutexes. Entries are removed
// once nobody holds or waits on them, so the table does not grow with the
// number of distinct keys ever seen.
type Table struct {
	name  string
	locks cmap.ConcurrentMap[string, *entry]
}

// New returns an empty table. name labels the wait-time metric.
func New(name string) *Table {
	return &Table{
		name:  name,
		locks: cmap.New[*entry](),
	}
}

// Lock acquires the lock for key and returns the function that releases it.
//
//	unlock := table.Lock(key)
//	defer unlock()
func (t *Table) Lock(key string) (unlock func()) {
	start := time.Now()

	e := t.locks.Upsert(key, nil, func(exist bool, current *entry, _ *entry) *entry {
		if !exist {
			current = &entry{}
		}
		current.refs++
		return current
	})
	e.mu.Lock()
	metrics.RecordKeyLockWait(t.name, time.Since(start))

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			t.locks.RemoveCb(key, func(_ string, current *entry, exists bool) bool {
				if !exists || current != e {
					return false
				}
				current.refs--
				return current.refs == 0
			})
		})
	}
}

// Len returns the number of keys currently held or waited on.
func (t *Table) Len() int {
	return t.locks.Count()
}
