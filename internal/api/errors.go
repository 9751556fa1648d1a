// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/waypoint/internal/ingest"
)

// Client-visible error messages. OwnTracks clients and frontends match on them.
const (
	msgInvalidPayload   = "Invalid location payload"
	msgMissingTopic     = "Missing topic"
	msgInvalidTopic     = "Invalid topic format. Expected: owntracks/<username>/<devicename>"
	msgMissingUser      = "User and device parameters are required"
	msgInvalidDate      = "Invalid date parameter"
	msgNotFound         = "No location data found"
	msgInternal         = "Internal server error"
	msgBodyTooLarge     = "Request body too large"
	msgTooManyRequests  = "Too many requests"
	msgRouteNotFound    = "Not found"
	msgMethodNotAllowed = "Method not allowed"
)

// ingestErrorStatus maps a coordinator error to status and message.
func ingestErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ingest.ErrInvalidPayload):
		return http.StatusBadRequest, msgInvalidPayload
	case errors.Is(err, ingest.ErrMissingTopic):
		return http.StatusBadRequest, msgMissingTopic
	case errors.Is(err, ingest.ErrInvalidTopic):
		return http.StatusBadRequest, msgInvalidTopic
	default:
		return http.StatusInternalServerError, msgInternal
	}
}
