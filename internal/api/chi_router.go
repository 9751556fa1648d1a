// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/waypoint/internal/middleware"
)

// Router wires handlers and middleware into a chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	// authenticate guards the OwnTracks routes. nil disables auth.
	authenticate func(http.Handler) http.Handler
}

// NewRouter returns a Router. authenticate may be nil (AUTH_MODE=none).
func NewRouter(handler *Handler, chiMW *ChiMiddleware, authenticate func(http.Handler) http.Handler) *Router {
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		chiMiddleware: chiMW,
		authenticate:  authenticate,
	}
}

// SetupChi builds the route tree.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.Recoverer)
	r.Use(chiMiddleware(middleware.PrometheusMetrics))
	r.Use(router.chiMiddleware.CORS())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, msgRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	})

	// Probes and metrics stay outside auth for orchestrators and scrapers.
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		if router.authenticate != nil {
			r.Use(router.authenticate)
		}

		r.Post("/", router.handler.Ingest)

		r.Route("/api/0", func(r chi.Router) {
			r.Use(chimiddleware.Compress(5, "application/json"))
			r.Get("/locations", router.handler.Locations)
			r.Get("/list", router.handler.List)
			r.Get("/last", router.handler.Last)
			r.Get("/version", router.handler.Version)
		})
	})

	return r
}
