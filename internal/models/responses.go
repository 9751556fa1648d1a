// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package models defines the OwnTracks location report, topic parsing and
// the response envelopes of the recorder HTTP API.
package models

import "github.com/goccy/go-json"

// ErrorResponse is the body of every 4xx/5xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// LocationsResponse is returned by /api/0/locations.
type LocationsResponse struct {
	Data []json.RawMessage `json:"data"`
}

// ListResponse is returned by /api/0/list for user and device listings.
type ListResponse struct {
	Results []string `json:"results"`
}

// VersionResponse is returned by /api/0/version.
type VersionResponse struct {
	Version string `json:"version"`
}

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
