// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Command wpcat reads a Waypoint record store directly, without a running
// server. It opens the pebble store read-only, so it can inspect a backup
// or a stopped server's data directory.
//
//	wpcat --store /data/waypoint/records users
//	wpcat devices alice
//	wpcat partitions alice phone
//	wpcat locations alice phone --from 2024-01-01 --to 2024-01-31
package main

import (
	"fmt"
	"os"

	"github.com/tomtom215/waypoint/internal/logging"
)

func main() {
	logging.Init(logging.Config{
		Level:  envOr("LOG_LEVEL", "warn"),
		Format: "console",
	})

	if err := newRootCmd(openPebble).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
