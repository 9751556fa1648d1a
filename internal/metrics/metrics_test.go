// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

// getHistogramCount extracts the sample count from a Prometheus histogram.
func getHistogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m io_prometheus_client.Metric
	if err := h.Write(&m); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/", "200"))

	RecordAPIRequest("POST", "/", "200", 15*time.Millisecond)

	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/", "200"))
	if after-before != 1 {
		t.Errorf("api_requests_total delta = %v, want 1", after-before)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)

	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("active requests = %v, want %v", got, before+1)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("active requests = %v, want %v", got, before)
	}
}

func TestRecordIngest(t *testing.T) {
	tests := []struct {
		source  string
		outcome string
	}{
		{"http", "stored"},
		{"http", "ignored"},
		{"mqtt", "invalid_topic"},
		{"http", "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.source+"/"+tt.outcome, func(t *testing.T) {
			before := testutil.ToFloat64(IngestTotal.WithLabelValues(tt.source, tt.outcome))
			RecordIngest(tt.source, tt.outcome, time.Millisecond)
			after := testutil.ToFloat64(IngestTotal.WithLabelValues(tt.source, tt.outcome))
			if after-before != 1 {
				t.Errorf("ingest_total delta = %v, want 1", after-before)
			}
		})
	}
}

func TestRecordIngest_ObservesOnlyStored(t *testing.T) {
	before := getHistogramCount(t, IngestDuration)

	RecordIngest("http", "ignored", time.Millisecond)
	if got := getHistogramCount(t, IngestDuration); got != before {
		t.Errorf("ignored ingest observed duration: count %d, want %d", got, before)
	}

	RecordIngest("mqtt", "stored", 3*time.Millisecond)
	if got := getHistogramCount(t, IngestDuration); got != before+1 {
		t.Errorf("stored ingest count = %d, want %d", got, before+1)
	}
}

func TestRecordObjectStoreOp_CountsErrors(t *testing.T) {
	before := testutil.ToFloat64(ObjectStoreErrors.WithLabelValues("memory", "put"))

	RecordObjectStoreOp("memory", "put", time.Millisecond, nil)
	RecordObjectStoreOp("memory", "put", time.Millisecond, errors.New("disk full"))

	after := testutil.ToFloat64(ObjectStoreErrors.WithLabelValues("memory", "put"))
	if after-before != 1 {
		t.Errorf("object_store_errors_total delta = %v, want 1", after-before)
	}
}

func TestRecordIndexTxn_Conflicts(t *testing.T) {
	before := testutil.ToFloat64(IndexTxnConflicts.WithLabelValues("badger"))

	RecordIndexTxn("badger", time.Millisecond, 0)
	RecordIndexTxn("badger", time.Millisecond, 3)

	after := testutil.ToFloat64(IndexTxnConflicts.WithLabelValues("badger"))
	if after-before != 3 {
		t.Errorf("index_txn_conflicts_total delta = %v, want 3", after-before)
	}
}

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(CacheHits.WithLabelValues("inventory"))
	misses := testutil.ToFloat64(CacheMisses.WithLabelValues("inventory"))

	RecordCacheLookup("inventory", true)
	RecordCacheLookup("inventory", false)
	RecordCacheLookup("inventory", false)

	if d := testutil.ToFloat64(CacheHits.WithLabelValues("inventory")) - hits; d != 1 {
		t.Errorf("cache hits delta = %v, want 1", d)
	}
	if d := testutil.ToFloat64(CacheMisses.WithLabelValues("inventory")) - misses; d != 2 {
		t.Errorf("cache misses delta = %v, want 2", d)
	}
}

func TestRecordEventPublish(t *testing.T) {
	ok := testutil.ToFloat64(EventsPublished.WithLabelValues("ok"))
	failed := testutil.ToFloat64(EventsPublished.WithLabelValues("error"))

	RecordEventPublish(nil)
	RecordEventPublish(errors.New("no responders"))

	if d := testutil.ToFloat64(EventsPublished.WithLabelValues("ok")) - ok; d != 1 {
		t.Errorf("ok delta = %v, want 1", d)
	}
	if d := testutil.ToFloat64(EventsPublished.WithLabelValues("error")) - failed; d != 1 {
		t.Errorf("error delta = %v, want 1", d)
	}
}
