// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package services

import (
	"context"
	"time"

	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/metrics"
)

// ValueLogCollector is satisfied by *kvstore.BadgerStore. RunGC returns the
// number of value log files rewritten.
type ValueLogCollector interface {
	RunGC() (int, error)
}

// IndexGCService periodically reclaims space in the last-location index.
// Every ingest rewrites three views, so the value log grows steadily.
type IndexGCService struct {
	index    ValueLogCollector
	interval time.Duration
	name     string
}

// NewIndexGCService collects every interval. A non-positive interval
// becomes 10 minutes.
func NewIndexGCService(index ValueLogCollector, interval time.Duration) *IndexGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &IndexGCService{
		index:    index,
		interval: interval,
		name:     "index-gc",
	}
}

// Serve implements suture.Service. GC errors are logged and counted but do
// not stop the loop.
func (s *IndexGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.collect()
		}
	}
}

func (s *IndexGCService) collect() {
	start := time.Now()
	rewritten, err := s.index.RunGC()
	switch {
	case err != nil:
		metrics.RecordIndexGC("error")
		logging.Error().Err(err).Str("service", s.name).Msg("Index value log GC failed")
	case rewritten == 0:
		metrics.RecordIndexGC("noop")
	default:
		metrics.RecordIndexGC("rewritten")
		logging.Info().
			Int("rewritten", rewritten).
			Dur("duration", time.Since(start)).
			Msg("Index value log GC reclaimed space")
	}
}

// String names the service in supervisor events.
func (s *IndexGCService) String() string {
	return s.name
}
