// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/waypoint/internal/lastloc"
	"github.com/tomtom215/waypoint/internal/models"
	"github.com/tomtom215/waypoint/internal/recorder"
	"github.com/tomtom215/waypoint/internal/storage/kvstore"
	"github.com/tomtom215/waypoint/internal/storage/objectstore"
)

type fixture struct {
	coord *Coordinator
	log   *recorder.Log
	index *lastloc.Index
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	objects := objectstore.NewMemory()
	kv := kvstore.NewMemory()
	t.Cleanup(func() {
		_ = objects.Close()
		_ = kv.Close()
	})

	f := &fixture{log: recorder.New(objects), index: lastloc.New(kv)}
	f.coord = NewCoordinator(f.log, f.index)
	f.coord.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 123456789, time.UTC) }
	return f
}

func (f *fixture) readAll(t *testing.T, user, device string) []string {
	t.Helper()
	reports, err := f.log.ReadRange(context.Background(), user, device,
		time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ReadRange() error = %v", err)
	}
	out := make([]string, len(reports))
	for i, r := range reports {
		out[i] = string(r)
	}
	return out
}

func TestCoordinator_IngestValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantErr error
		stored  bool
	}{
		{"valid", `{"_type":"location","lat":52.1,"lon":4.3,"tst":1704067200,"topic":"owntracks/alice/phone"}`, nil, true},
		{"non-location is ignored", `{"_type":"transition","topic":"owntracks/alice/phone"}`, nil, false},
		{"non-location without anything", `{"_type":"lwt"}`, nil, false},
		{"missing lat", `{"_type":"location","lon":4.3,"topic":"owntracks/alice/phone"}`, ErrInvalidPayload, false},
		{"zero lon", `{"_type":"location","lat":52.1,"lon":0,"topic":"owntracks/alice/phone"}`, ErrInvalidPayload, false},
		{"tst out of range", `{"_type":"location","lat":1,"lon":1,"tst":1e15,"topic":"owntracks/alice/phone"}`, ErrInvalidPayload, false},
		{"not json", `not json`, ErrInvalidPayload, false},
		{"json array", `[1,2]`, nil, false},
		{"non-location with string tst", `{"_type":"card","name":"x","tst":"1700000000"}`, nil, false},
		{"numeric type", `{"_type":5,"lat":"x"}`, nil, false},
		{"missing topic", `{"_type":"location","lat":1,"lon":1}`, ErrMissingTopic, false},
		{"two segments", `{"_type":"location","lat":1,"lon":1,"topic":"foo/bar"}`, ErrInvalidTopic, false},
		{"wrong prefix", `{"_type":"location","lat":1,"lon":1,"topic":"other/alice/phone"}`, ErrInvalidTopic, false},
		{"colon in user", `{"_type":"location","lat":1,"lon":1,"topic":"owntracks/al:ice/phone"}`, ErrInvalidTopic, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			res, err := f.coord.Ingest(context.Background(), []byte(tt.body))
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Ingest() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Ingest() error = %v, want %v", err, tt.wantErr)
			}
			if res.Stored != tt.stored {
				t.Errorf("Stored = %v, want %v", res.Stored, tt.stored)
			}

			_, lastErr := f.index.Get(context.Background(), "", "")
			if tt.stored && lastErr != nil {
				t.Errorf("global view missing after store: %v", lastErr)
			}
			if !tt.stored && !errors.Is(lastErr, lastloc.ErrNotFound) {
				t.Errorf("global view written for rejected report: %v", lastErr)
			}
		})
	}
}

func TestCoordinator_TimestampResolution(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	res, err := f.coord.Ingest(ctx, []byte(`{"_type":"location","lat":1,"lon":1,"tst":1704067200,"topic":"owntracks/alice/phone"}`))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if want := time.Unix(1704067200, 0).UTC(); !res.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", res.Timestamp, want)
	}

	res, err = f.coord.Ingest(ctx, []byte(`{"_type":"location","lat":1,"lon":1,"topic":"owntracks/alice/phone"}`))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if want := time.Date(2024, 6, 1, 12, 0, 0, 123000000, time.UTC); !res.Timestamp.Equal(want) {
		t.Errorf("Timestamp without tst = %v, want %v", res.Timestamp, want)
	}

	keys, err := f.log.ListPartitions(ctx, "alice", "phone")
	if err != nil {
		t.Fatalf("ListPartitions() error = %v", err)
	}
	if strings.Join(keys, ",") != "2024-01.rec,2024-06.rec" {
		t.Errorf("partitions = %v", keys)
	}
}

func TestCoordinator_PreservesExtraFields(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	body := `{ "_type": "location", "lat": 1, "lon": 2, "tst": 1704067200,
		"batt": 87, "tid": "ph", "topic": "owntracks/alice/phone" }`
	if _, err := f.coord.Ingest(context.Background(), []byte(body)); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	got := f.readAll(t, "alice", "phone")
	want := `{"_type":"location","lat":1,"lon":2,"tst":1704067200,"batt":87,"tid":"ph","topic":"owntracks/alice/phone"}`
	if len(got) != 1 || got[0] != want {
		t.Errorf("stored = %v, want [%s]", got, want)
	}
}

type failingLog struct{ err error }

func (f failingLog) Append(context.Context, string, string, time.Time, []byte) error { return f.err }

type failingIndex struct{ err error }

func (f failingIndex) Update(context.Context, models.Topic, json.RawMessage) error { return f.err }

func TestCoordinator_StepFailuresAreIndependent(t *testing.T) {
	t.Parallel()

	indexErr := errors.New("index down")
	logErr := errors.New("log down")
	body := []byte(`{"_type":"location","lat":1,"lon":1,"topic":"owntracks/alice/phone"}`)

	t.Run("index fails, log still appended", func(t *testing.T) {
		t.Parallel()
		log := recorder.New(objectstore.NewMemory())
		c := NewCoordinator(log, failingIndex{indexErr})

		_, err := c.Ingest(context.Background(), body)
		if !errors.Is(err, ErrInternal) || !errors.Is(err, indexErr) {
			t.Fatalf("Ingest() error = %v, want ErrInternal wrapping index error", err)
		}
		parts, _ := log.ListPartitions(context.Background(), "alice", "phone")
		if len(parts) != 1 {
			t.Errorf("log partitions = %v, want one", parts)
		}
	})

	t.Run("log fails, index still updated", func(t *testing.T) {
		t.Parallel()
		index := lastloc.New(kvstore.NewMemory())
		c := NewCoordinator(failingLog{logErr}, index)

		_, err := c.Ingest(context.Background(), body)
		if !errors.Is(err, ErrInternal) || !errors.Is(err, logErr) {
			t.Fatalf("Ingest() error = %v, want ErrInternal wrapping log error", err)
		}
		if _, err := index.Get(context.Background(), "alice", "phone"); err != nil {
			t.Errorf("device view missing: %v", err)
		}
	})

	t.Run("both fail", func(t *testing.T) {
		t.Parallel()
		c := NewCoordinator(failingLog{logErr}, failingIndex{indexErr})

		_, err := c.Ingest(context.Background(), body)
		if !errors.Is(err, indexErr) || !errors.Is(err, logErr) {
			t.Fatalf("Ingest() error = %v, want both causes", err)
		}
	})
}

type recordingPublisher struct {
	mu      sync.Mutex
	topics  []models.Topic
	reports []string
	err     error
}

func (p *recordingPublisher) PublishLocation(_ context.Context, topic models.Topic, report json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.reports = append(p.reports, string(report))
	return p.err
}

// sequencingIndex records the order in which reports reach the index.
type sequencingIndex struct {
	LastLocationIndex

	mu      sync.Mutex
	reports []string
}

func (x *sequencingIndex) Update(ctx context.Context, topic models.Topic, report json.RawMessage) error {
	x.mu.Lock()
	x.reports = append(x.reports, string(report))
	x.mu.Unlock()
	return x.LastLocationIndex.Update(ctx, topic, report)
}

func TestCoordinator_PublishesInIngestOrder(t *testing.T) {
	t.Parallel()

	base := newFixture(t)
	index := &sequencingIndex{LastLocationIndex: base.index}
	c := NewCoordinator(base.log, index)
	pub := &recordingPublisher{}
	c.SetEventPublisher(pub)

	var hooked int
	c.OnIngested(func(context.Context, models.Topic) {
		hooked++
	})

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf(`{"_type":"location","lat":%d,"lon":1,"tst":1704067200,"topic":"owntracks/alice/phone"}`, i+1)
			if _, err := c.Ingest(context.Background(), []byte(body)); err != nil {
				t.Errorf("Ingest() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if len(pub.reports) != n {
		t.Fatalf("published %d reports, want %d", len(pub.reports), n)
	}
	for i := range index.reports {
		if pub.reports[i] != index.reports[i] {
			t.Fatalf("publish %d = %s, ingested %s", i, pub.reports[i], index.reports[i])
		}
	}
	if hooked != n {
		t.Errorf("hooks ran %d times, want %d", hooked, n)
	}
}

func TestCoordinator_PublisherAndHooks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	pub := &recordingPublisher{err: errors.New("nats unavailable")}
	f.coord.SetEventPublisher(pub)

	var hooked []models.Topic
	f.coord.OnIngested(func(_ context.Context, topic models.Topic) {
		hooked = append(hooked, topic)
	})

	ctx := context.Background()
	if _, err := f.coord.Ingest(ctx, []byte(`{"_type":"location","lat":1,"lon":1,"topic":"owntracks/alice/phone"}`)); err != nil {
		t.Fatalf("Ingest() error = %v, publish failure must not fail ingest", err)
	}
	if _, err := f.coord.Ingest(ctx, []byte(`{"_type":"waypoint","topic":"owntracks/alice/phone"}`)); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	want := models.Topic{User: "alice", Device: "phone"}
	if len(pub.topics) != 1 || pub.topics[0] != want {
		t.Errorf("published = %v, want [%v]", pub.topics, want)
	}
	if len(hooked) != 1 || hooked[0] != want {
		t.Errorf("hooks = %v, want [%v]", hooked, want)
	}
}

func TestCoordinator_ConcurrentSameDevice(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := `{"_type":"location","lat":1,"lon":1,"tst":1704067200,"topic":"owntracks/alice/phone"}`
			if _, err := f.coord.Ingest(ctx, []byte(body)); err != nil {
				t.Errorf("Ingest() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := f.readAll(t, "alice", "phone"); len(got) != n {
		t.Errorf("log has %d lines, want %d", len(got), n)
	}

	raw, err := f.index.Get(ctx, "alice", "")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	var view []json.RawMessage
	if err := json.Unmarshal(raw, &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view) != 1 {
		t.Errorf("user view has %d entries, want 1", len(view))
	}
}
