// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/waypoint/internal/metrics"
)

type fakeCollector struct {
	calls     atomic.Int32
	rewritten int
	err       error
}

func (f *fakeCollector) RunGC() (int, error) {
	f.calls.Add(1)
	return f.rewritten, f.err
}

func TestNewIndexGCService_DefaultInterval(t *testing.T) {
	t.Parallel()

	svc := NewIndexGCService(&fakeCollector{}, 0)
	if svc.interval != 10*time.Minute {
		t.Errorf("interval = %v, want 10m", svc.interval)
	}
	if svc.String() != "index-gc" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestIndexGCService_RunsOnInterval(t *testing.T) {
	t.Parallel()

	collector := &fakeCollector{rewritten: 1}
	svc := NewIndexGCService(collector, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for collector.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
	if collector.calls.Load() < 3 {
		t.Errorf("RunGC calls = %d, want >= 3", collector.calls.Load())
	}
}

func TestIndexGCService_CollectRecordsResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		collector *fakeCollector
		label     string
	}{
		{"error", &fakeCollector{err: errors.New("disk full")}, "error"},
		{"nothing to rewrite", &fakeCollector{}, "noop"},
		{"rewrote files", &fakeCollector{rewritten: 2}, "rewritten"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(metrics.IndexGCRuns.WithLabelValues(tt.label))
			NewIndexGCService(tt.collector, time.Minute).collect()
			after := testutil.ToFloat64(metrics.IndexGCRuns.WithLabelValues(tt.label))
			if after-before != 1 {
				t.Errorf("index_gc_runs_total{result=%q} delta = %v, want 1", tt.label, after-before)
			}
		})
	}
}
