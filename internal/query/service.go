// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package query serves the read side: range reads and inventory listings
// over the record log, and last-location lookups.
package query

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/waypoint/internal/cache"
	"github.com/tomtom215/waypoint/internal/models"
)

// InventoryKind tells which listing ListInventory produced.
type InventoryKind string

const (
	KindPartitions InventoryKind = "partitions"
	KindDevices    InventoryKind = "devices"
	KindUsers      InventoryKind = "users"
)

// Inventory is the result of ListInventory.
type Inventory struct {
	Kind  InventoryKind
	Names []string
}

// RecordReader is the read side of the record log engine.
type RecordReader interface {
	ReadRange(ctx context.Context, user, device string, from, to time.Time) ([]json.RawMessage, error)
	ListPartitions(ctx context.Context, user, device string) ([]string, error)
	ListDevices(ctx context.Context, user string) ([]string, error)
	ListUsers(ctx context.Context) ([]string, error)
}

// LastLocationReader is the read side of the last-location index engine.
type LastLocationReader interface {
	Get(ctx context.Context, user, device string) (json.RawMessage, error)
}

// Service is the query service.
type Service struct {
	log   RecordReader
	index LastLocationReader

	// inventory caches user and device listings. nil disables caching.
	inventory *cache.Cache[[]string]

	// generation counts invalidations. A listing loaded across an
	// invalidation is returned but not cached.
	genMu      sync.Mutex
	generation uint64
}

// NewService returns a Service. A positive inventoryTTL enables caching of
// user and device listings.
func NewService(log RecordReader, index LastLocationReader, inventoryTTL time.Duration) *Service {
	s := &Service{log: log, index: index}
	if inventoryTTL > 0 {
		s.inventory = cache.New[[]string]("inventory", inventoryTTL)
	}
	return s
}

// GetLocations returns the reports of (user, device) timestamped in
// [from, to]. Zero bounds default to the epoch and now.
func (s *Service) GetLocations(ctx context.Context, user, device string, from, to time.Time) ([]json.RawMessage, error) {
	return s.log.ReadRange(ctx, user, device, from, to)
}

// ListInventory lists partitions when user and device are set, devices when
// only user is set, and users otherwise.
func (s *Service) ListInventory(ctx context.Context, user, device string) (Inventory, error) {
	switch {
	case user != "" && device != "":
		names, err := s.log.ListPartitions(ctx, user, device)
		return Inventory{Kind: KindPartitions, Names: names}, err
	case user != "":
		names, err := s.cached(cache.Key(string(KindDevices), user), func() ([]string, error) {
			return s.log.ListDevices(ctx, user)
		})
		return Inventory{Kind: KindDevices, Names: names}, err
	default:
		names, err := s.cached(string(KindUsers), func() ([]string, error) {
			return s.log.ListUsers(ctx)
		})
		return Inventory{Kind: KindUsers, Names: names}, err
	}
}

// Last returns the stored last-location array for the most specific view
// matching user and device.
func (s *Service) Last(ctx context.Context, user, device string) (json.RawMessage, error) {
	return s.index.Get(ctx, user, device)
}

// Invalidate drops cached listings that a report for topic may change.
// It has the ingest hook signature.
func (s *Service) Invalidate(_ context.Context, topic models.Topic) {
	if s.inventory == nil {
		return
	}
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.generation++
	s.inventory.Delete(string(KindUsers))
	s.inventory.Delete(cache.Key(string(KindDevices), topic.User))
}

// Close stops the cache janitor.
func (s *Service) Close() {
	if s.inventory != nil {
		s.inventory.Close()
	}
}

func (s *Service) cached(key string, load func() ([]string, error)) ([]string, error) {
	if s.inventory == nil {
		return load()
	}
	if names, ok := s.inventory.Get(key); ok {
		return names, nil
	}

	s.genMu.Lock()
	gen := s.generation
	s.genMu.Unlock()

	names, err := load()
	if err != nil {
		return nil, err
	}

	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.generation == gen {
		s.inventory.Set(key, names)
	}
	return names, nil
}
