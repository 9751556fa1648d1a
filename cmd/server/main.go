// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package main is the entry point for the Waypoint server.
//
// Waypoint records OwnTracks location reports. Apps post reports over HTTP
// (or publish them to an MQTT broker); each report is appended to a monthly
// partition of the device's record log and replaces the device's entry in
// the last-location views. The recorder API serves history, listings and
// last positions to map frontends.
//
// # Startup
//
//  1. Configuration: defaults, config.yaml, environment (Koanf v2)
//  2. Storage: record partitions (pebble, S3 or memory) and the
//     last-location index (badger or memory)
//  3. Engines: record log, last-location index, ingestion coordinator, query service
//  4. Events (optional): embedded NATS server and publisher
//  5. HTTP server, MQTT subscriber and index GC under a suture supervisor tree
//
// # Signal Handling
//
// SIGINT and SIGTERM stop the supervisor tree: the HTTP server drains
// in-flight requests, the MQTT subscriber disconnects, then the stores close.
//
// # Example Usage
//
//	export BASIC_AUTH_USER=owntracks
//	export BASIC_AUTH_PASS=$(openssl rand -base64 18)
//	export STORAGE_PATH=/data/waypoint/records
//	export INDEX_PATH=/data/waypoint/index
//	./waypoint
//
// Development without auth or persistence:
//
//	AUTH_MODE=none STORAGE_BACKEND=memory INDEX_BACKEND=memory ./waypoint
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/waypoint/internal/api"
	"github.com/tomtom215/waypoint/internal/auth"
	"github.com/tomtom215/waypoint/internal/config"
	"github.com/tomtom215/waypoint/internal/ingest"
	"github.com/tomtom215/waypoint/internal/lastloc"
	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/metrics"
	"github.com/tomtom215/waypoint/internal/mqtt"
	"github.com/tomtom215/waypoint/internal/query"
	"github.com/tomtom215/waypoint/internal/recorder"
	"github.com/tomtom215/waypoint/internal/storage/kvstore"
	"github.com/tomtom215/waypoint/internal/supervisor"
	"github.com/tomtom215/waypoint/internal/supervisor/services"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Waypoint stopped with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

//nolint:gocyclo // sequential wiring of optional components
func run(cfg *config.Config) error {
	logging.Info().
		Str("version", api.Version).
		Str("storage_backend", cfg.Storage.Backend).
		Str("index_backend", cfg.Index.Backend).
		Str("auth_mode", cfg.Security.AuthMode).
		Msg("Starting Waypoint")
	metrics.AppInfo.WithLabelValues(api.Version, runtime.Version()).Set(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === STORAGE ===

	objects, err := openObjectStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}
	defer func() {
		if err := objects.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing object store")
		}
	}()

	index, err := openIndex(cfg.Index)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer func() {
		if err := index.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing index")
		}
	}()

	// === ENGINES ===

	recordLog := recorder.New(objects)
	lastLocations := lastloc.New(index)
	coordinator := ingest.NewCoordinator(recordLog, lastLocations)

	queries := query.NewService(recordLog, lastLocations, cfg.Query.InventoryCacheTTL)
	defer queries.Close()
	coordinator.OnIngested(queries.Invalidate)

	// === EVENTS ===

	eventComps, err := InitEvents(ctx, cfg.NATS)
	if err != nil {
		return err
	}
	if eventComps != nil {
		coordinator.SetEventPublisher(eventComps.Publisher)
		defer func() {
			if err := eventComps.Publisher.Close(); err != nil {
				logging.Debug().Err(err).Msg("Event publisher drain incomplete")
			}
		}()
	}

	// === HTTP ===

	handler := api.NewHandler(coordinator, queries, cfg.Server.MaxBodyBytes)
	handler.AddHealthCheck("object_store", objects)
	handler.AddHealthCheck("index", index)
	if eventComps != nil {
		handler.AddHealthCheck("events", eventComps.Publisher)
	}

	authenticate, err := buildAuth(cfg.Security)
	if err != nil {
		return err
	}

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	chiConfig := api.DefaultChiMiddlewareConfig()
	chiConfig.CORSAllowedOrigins = cfg.Security.CORSOrigins
	chiConfig.RateLimitRequests = cfg.Security.RateLimitReqs
	chiConfig.RateLimitWindow = cfg.Security.RateLimitWindow
	chiConfig.RateLimitDisabled = cfg.Security.RateLimitDisabled
	chiMW := api.NewChiMiddleware(chiConfig)
	router := api.NewRouter(handler, chiMW, authenticate)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	// === SUPERVISOR TREE ===

	treeConfig := supervisor.DefaultTreeConfig()
	treeConfig.ShutdownTimeout = cfg.Server.Timeout
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeConfig)
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	if badgerIndex, ok := index.(*kvstore.BadgerStore); ok && cfg.Index.GCInterval > 0 {
		tree.AddStorageService(services.NewIndexGCService(badgerIndex, cfg.Index.GCInterval))
		logging.Info().Dur("interval", cfg.Index.GCInterval).Msg("Index GC service added")
	}

	if eventComps != nil && eventComps.Server != nil {
		tree.AddIngestService(services.NewEmbeddedNATSService(eventComps.Server, cfg.Server.Timeout))
	}

	if cfg.MQTT.Enabled {
		tree.AddIngestService(mqtt.NewSubscriber(mqtt.Config{
			Broker:         cfg.MQTT.Broker,
			ClientID:       cfg.MQTT.ClientID,
			Username:       cfg.MQTT.Username,
			Password:       cfg.MQTT.Password,
			Topic:          cfg.MQTT.Topic,
			QoS:            byte(cfg.MQTT.QoS),
			ConnectTimeout: 30 * time.Second,
			HandleTimeout:  cfg.Server.Timeout,
		}, coordinator))
		logging.Info().Str("broker", cfg.MQTT.Broker).Str("topic", cfg.MQTT.Topic).Msg("MQTT subscriber added")
	}

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Timeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case treeErr = <-errCh:
	}
	for err := range errCh {
		if treeErr == nil {
			treeErr = err
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", treeErr)
	}
	return nil
}

// buildAuth returns the Basic auth middleware, or nil when AUTH_MODE=none.
func buildAuth(cfg config.SecurityConfig) (func(http.Handler) http.Handler, error) {
	if cfg.AuthMode == config.AuthModeNone {
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: Authentication is DISABLED (AUTH_MODE=none)")
		logging.Warn().Msg("  Anyone who can reach this port can read every location.")
		logging.Warn().Msg("============================================================")
		return nil, nil
	}

	mgr, err := auth.NewBasicAuthManager(cfg.BasicAuthUser, cfg.BasicAuthPass, cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("initialize basic auth: %w", err)
	}
	logging.Info().Str("user", cfg.BasicAuthUser).Msg("Basic authentication enabled")
	return mgr.Middleware, nil
}
