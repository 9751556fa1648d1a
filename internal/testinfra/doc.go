// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package testinfra starts throwaway containers for integration tests.
//
// Everything here is behind the integration build tag:
//
//	go test -tags integration ./internal/storage/objectstore/...
//
// # MinIO Container
//
//	func TestS3Store(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    minio, err := testinfra.NewMinIOContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, minio.Container)
//
//	    store, err := objectstore.NewS3(ctx, objectstore.S3Config{
//	        Endpoint:  minio.Endpoint,
//	        AccessKey: minio.AccessKey,
//	        SecretKey: minio.SecretKey,
//	        Bucket:    "records",
//	        CreateBucket: true,
//	    })
//	}
package testinfra
