// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/waypoint/internal/config"
	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/storage/kvstore"
	"github.com/tomtom215/waypoint/internal/storage/objectstore"
)

// openObjectStore opens the record partition backend selected by STORAGE_BACKEND.
func openObjectStore(ctx context.Context, cfg config.StorageConfig) (objectstore.Store, error) {
	switch cfg.Backend {
	case config.StorageBackendPebble:
		store, err := objectstore.NewPebble(objectstore.PebbleConfig{
			Path: cfg.Path,
			Sync: cfg.Sync,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageBackendS3:
		store, err := objectstore.NewS3(ctx, objectstore.S3Config{
			Endpoint:     cfg.S3.Endpoint,
			Bucket:       cfg.S3.Bucket,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			Region:       cfg.S3.Region,
			UseSSL:       cfg.S3.UseSSL,
			CreateBucket: cfg.S3.CreateBucket,
			Breaker:      objectstore.DefaultBreakerConfig(),
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageBackendMemory:
		logging.Warn().Msg("Object store is in memory; records are lost on restart")
		return objectstore.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// openIndex opens the last-location index backend selected by INDEX_BACKEND.
func openIndex(cfg config.IndexConfig) (kvstore.Store, error) {
	switch cfg.Backend {
	case config.IndexBackendBadger:
		retry := kvstore.DefaultRetryPolicy()
		retry.MaxRetries = cfg.MaxRetries
		store, err := kvstore.NewBadger(kvstore.BadgerConfig{
			Path:           cfg.Path,
			SyncWrites:     cfg.SyncWrites,
			GCDiscardRatio: cfg.GCDiscardRatio,
			Retry:          retry,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.IndexBackendMemory:
		logging.Warn().Msg("Last-location index is in memory; views are lost on restart")
		return kvstore.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}
