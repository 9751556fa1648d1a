// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/models"
)

// readyTimeout bounds all dependency pings of one readiness probe.
const readyTimeout = 2 * time.Second

// HealthLive answers 200 while the process runs, whatever its dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthResponse{
		Status: "alive",
		Checks: map[string]string{"uptime": time.Since(h.startTime).Round(time.Second).String()},
	})
}

// HealthReady answers 200 when every registered dependency answers its
// ping, 503 otherwise. Failure detail goes to the log, not the response.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.checks))
	for _, c := range h.checks {
		if err := c.pinger.Ping(ctx); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Str("check", c.name).Msg("Readiness check failed")
			checks[c.name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[c.name] = "ok"
	}

	resp := models.HealthResponse{Status: "ready", Checks: checks}
	if status != http.StatusOK {
		resp.Status = "not_ready"
	}
	respondJSON(w, status, resp)
}
