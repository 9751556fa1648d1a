// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

/*
Package api serves the OwnTracks recorder HTTP API on a chi router.

Routes:

	POST /                  ingest one report (OwnTracks HTTP mode), answers []
	GET  /api/0/locations   reports of user/device between from and to
	GET  /api/0/list        users, a user's devices, or a device's partitions
	GET  /api/0/last        stored last-location array for the most specific view
	GET  /api/0/version     {"version": "0.0.1"}
	GET  /health/live       liveness, no auth
	GET  /health/ready      pings the stores, no auth
	GET  /metrics           Prometheus, no auth

Response bodies keep the OwnTracks recorder shapes so existing clients and
map frontends work unchanged. Failures answer {"error": "..."}; storage
errors never leak detail and always read "Internal server error".
*/
package api
