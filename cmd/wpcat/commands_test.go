// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/waypoint/internal/recorder"
	"github.com/tomtom215/waypoint/internal/storage/objectstore"
)

// nopCloseStore keeps the shared memory store open across commands.
type nopCloseStore struct {
	objectstore.Store
}

func (nopCloseStore) Close() error { return nil }

func seededOpen(t *testing.T) openFunc {
	t.Helper()
	mem := objectstore.NewMemory()
	log := recorder.New(mem)
	ctx := context.Background()

	reports := []struct {
		user, device string
		ts           time.Time
		body         string
	}{
		{"alice", "phone", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), `{"_type":"location","lat":1,"lon":2,"tst":1704103200}`},
		{"alice", "phone", time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC), `{"_type":"location","lat":3,"lon":4,"tst":1706781600}`},
		{"bob", "tablet", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), `{"_type":"location","lat":5,"lon":6,"tst":1704103200}`},
	}
	for _, r := range reports {
		if err := log.Append(ctx, r.user, r.device, r.ts, []byte(r.body)); err != nil {
			t.Fatalf("seed %s/%s: %v", r.user, r.device, err)
		}
	}
	return func(string) (objectstore.Store, error) {
		return nopCloseStore{mem}, nil
	}
}

func runCmd(t *testing.T, open openFunc, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--store", "/unused"}, args...))
	err := root.ExecuteContext(context.Background())
	return strings.TrimSpace(out.String()), err
}

func TestCommands(t *testing.T) {
	t.Parallel()
	open := seededOpen(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"users", []string{"users"}, `{"results":["alice","bob"]}`},
		{"devices", []string{"devices", "alice"}, `{"results":["phone"]}`},
		{"devices unknown user", []string{"devices", "carol"}, `{"results":[]}`},
		{"partitions", []string{"partitions", "alice", "phone"}, `["2024-01.rec","2024-02.rec"]`},
		{
			"locations all",
			[]string{"locations", "alice", "phone"},
			`{"data":[{"_type":"location","lat":1,"lon":2,"tst":1704103200},{"_type":"location","lat":3,"lon":4,"tst":1706781600}]}`,
		},
		{
			"locations january",
			[]string{"locations", "alice", "phone", "--from", "2024-01-01", "--to", "2024-01-31"},
			`{"data":[{"_type":"location","lat":1,"lon":2,"tst":1704103200}]}`,
		},
		{"version", []string{"version"}, `{"version":"0.0.1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := runCmd(t, open, tt.args...)
			if err != nil {
				t.Fatalf("wpcat %v: %v", tt.args, err)
			}
			if got != tt.want {
				t.Errorf("wpcat %v = %s, want %s", tt.args, got, tt.want)
			}
		})
	}
}

func TestCommandErrors(t *testing.T) {
	t.Parallel()
	open := seededOpen(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"bad from", []string{"locations", "alice", "phone", "--from", "last week"}, "invalid --from"},
		{"bad to", []string{"locations", "alice", "phone", "--to", "soon"}, "invalid --to"},
		{"missing device", []string{"partitions", "alice"}, "accepts 2 arg(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := runCmd(t, open, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("wpcat %v error = %v, want containing %q", tt.args, err, tt.wantErr)
			}
		})
	}
}

func TestStoreRequired(t *testing.T) {
	t.Setenv("STORAGE_PATH", "")

	root := newRootCmd(seededOpen(t))
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"users"})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "--store") {
		t.Errorf("users without store error = %v", err)
	}
}

func TestOpenPebbleReadOnly(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "records")

	rw, err := objectstore.NewPebble(objectstore.PebbleConfig{Path: dir})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	if err := recorder.New(rw).Append(context.Background(), "alice", "phone",
		time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), []byte(`{"_type":"location","lat":1,"lon":2,"tst":1704103200}`)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	root := newRootCmd(openPebble)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--store", dir, "users"})
	if err := root.Execute(); err != nil {
		t.Fatalf("users: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != `{"results":["alice"]}` {
		t.Errorf("users = %s", got)
	}
}
