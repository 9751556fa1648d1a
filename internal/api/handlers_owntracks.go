// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/waypoint/internal/lastloc"
	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/models"
	"github.com/tomtom215/waypoint/internal/query"
)

// emptyArray is the OwnTracks HTTP-mode reply: no pending commands.
var emptyArray = []json.RawMessage{}

// Ingest handles POST / from OwnTracks apps in HTTP mode.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return
		}
		respondError(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}

	if _, err := h.ingester.Ingest(r.Context(), body); err != nil {
		status, msg := ingestErrorStatus(err)
		if status == http.StatusInternalServerError {
			respondInternal(w, r, err, "Ingest failed")
			return
		}
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Rejected location report")
		respondError(w, status, msg)
		return
	}

	respondJSON(w, http.StatusOK, emptyArray)
}

// Locations handles GET /api/0/locations?user&device&from&to.
func (h *Handler) Locations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user, device := q.Get("user"), q.Get("device")
	if user == "" || device == "" {
		respondError(w, http.StatusBadRequest, msgMissingUser)
		return
	}

	from, err := parseDateParam(q.Get("from"))
	if err != nil {
		respondError(w, http.StatusBadRequest, msgInvalidDate)
		return
	}
	to, err := parseDateParam(q.Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, msgInvalidDate)
		return
	}

	reports, err := h.query.GetLocations(r.Context(), user, device, from, to)
	if err != nil {
		respondInternal(w, r, err, "Failed to read locations")
		return
	}

	respondJSON(w, http.StatusOK, models.LocationsResponse{Data: nonNil(reports)})
}

// List handles GET /api/0/list?user&device. With both parameters the body
// is a bare array of partition names; otherwise {"results": [...]}.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	inv, err := h.query.ListInventory(r.Context(), q.Get("user"), q.Get("device"))
	if err != nil {
		respondInternal(w, r, err, "Failed to list inventory")
		return
	}

	if inv.Kind == query.KindPartitions {
		respondJSON(w, http.StatusOK, nonNil(inv.Names))
		return
	}
	respondJSON(w, http.StatusOK, models.ListResponse{Results: nonNil(inv.Names)})
}

// Last handles GET /api/0/last?user&device&fields. fields is accepted for
// client compatibility and not applied.
func (h *Handler) Last(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw, err := h.query.Last(r.Context(), q.Get("user"), q.Get("device"))
	if errors.Is(err, lastloc.ErrNotFound) {
		respondError(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		respondInternal(w, r, err, "Failed to read last location")
		return
	}

	respondRawJSON(w, http.StatusOK, raw)
}

// Version handles GET /api/0/version.
func (h *Handler) Version(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, models.VersionResponse{Version: Version})
}
