// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package services adapts Waypoint's components to suture.Service.
//
// Components with a blocking or Start/Shutdown lifecycle get a wrapper whose
// Serve blocks until its context is canceled and then stops the component:
//
//   - HTTPServerService: *http.Server with graceful shutdown
//   - IndexGCService: periodic badger value log GC for the last-location index
//   - EmbeddedNATSService: shutdown and liveness of the in-process NATS server
//
// The MQTT subscriber implements suture.Service itself and needs no wrapper.
package services
