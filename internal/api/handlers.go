// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package api

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/waypoint/internal/ingest"
	"github.com/tomtom215/waypoint/internal/query"
)

// Version is reported by /api/0/version.
const Version = "0.0.1"

// DefaultMaxBodyBytes bounds POST / bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

// Ingester accepts raw report bodies. Satisfied by *ingest.Coordinator.
type Ingester interface {
	Ingest(ctx context.Context, body []byte) (ingest.Result, error)
}

// Querier is the read side. Satisfied by *query.Service.
type Querier interface {
	GetLocations(ctx context.Context, user, device string, from, to time.Time) ([]json.RawMessage, error)
	ListInventory(ctx context.Context, user, device string) (query.Inventory, error)
	Last(ctx context.Context, user, device string) (json.RawMessage, error)
}

// Pinger is a dependency checked by /health/ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthCheck struct {
	name   string
	pinger Pinger
}

// Handler holds the dependencies of the HTTP handlers.
//
// Handler methods are split across files:
//   - handlers_owntracks.go: ingest and recorder API endpoints
//   - handlers_health.go: liveness and readiness probes
//   - handlers_helpers.go: response writers and parameter parsing
type Handler struct {
	ingester     Ingester
	query        Querier
	checks       []healthCheck
	maxBodyBytes int64
	startTime    time.Time
}

// NewHandler returns a Handler. A non-positive maxBodyBytes uses DefaultMaxBodyBytes.
func NewHandler(ingester Ingester, q Querier, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		ingester:     ingester,
		query:        q,
		maxBodyBytes: maxBodyBytes,
		startTime:    time.Now(),
	}
}

// AddHealthCheck registers a dependency for /health/ready. Not safe to call
// once the server is running.
func (h *Handler) AddHealthCheck(name string, p Pinger) {
	h.checks = append(h.checks, healthCheck{name: name, pinger: p})
}
