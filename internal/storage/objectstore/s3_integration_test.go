// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

//go:build integration

package objectstore

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/tomtom215/waypoint/internal/testinfra"
)

func TestS3Store_Integration(t *testing.T) {
	testinfra.SkipIfNoDocker(t)

	ctx := context.Background()
	minio, err := testinfra.NewMinIOContainer(ctx)
	if err != nil {
		t.Fatalf("start minio: %v", err)
	}
	defer testinfra.CleanupContainer(t, ctx, minio.Container)

	s, err := NewS3(ctx, S3Config{
		Endpoint:     minio.Endpoint,
		Bucket:       "records",
		AccessKey:    minio.AccessKey,
		SecretKey:    minio.SecretKey,
		CreateBucket: true,
		Breaker:      DefaultBreakerConfig(),
	})
	if err != nil {
		t.Fatalf("NewS3() error = %v", err)
	}
	defer s.Close()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	if _, err := s.Get(ctx, "rec/alice/phone/2024-01.rec"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}

	for _, key := range []string{
		"rec/alice/phone/2024-02.rec",
		"rec/alice/phone/2024-01.rec",
		"rec/bob/car/2024-01.rec",
	} {
		if err := s.Put(ctx, key, []byte("2024-01-02T03:04:05.000Z * {}\n")); err != nil {
			t.Fatalf("Put(%s) error = %v", key, err)
		}
	}

	got, err := s.Get(ctx, "rec/alice/phone/2024-01.rec")
	if err != nil || string(got) != "2024-01-02T03:04:05.000Z * {}\n" {
		t.Errorf("Get() = %q, %v", got, err)
	}

	keys, err := s.List(ctx, "rec/alice/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"rec/alice/phone/2024-01.rec", "rec/alice/phone/2024-02.rec"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("List() = %v, want %v", keys, want)
	}
}
