// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/waypoint/internal/config"
	"github.com/tomtom215/waypoint/internal/events"
	"github.com/tomtom215/waypoint/internal/logging"
)

// EventComponents holds the NATS pieces started when NATS_ENABLED=true.
type EventComponents struct {
	// Server is nil unless NATS_EMBEDDED=true.
	Server    *events.EmbeddedServer
	Publisher *events.Publisher
}

// InitEvents starts the embedded server when configured and connects the
// publisher. It returns nil, nil when NATS is disabled.
func InitEvents(ctx context.Context, cfg config.NATSConfig) (*EventComponents, error) {
	if !cfg.Enabled {
		logging.Info().Msg("Event publishing disabled (NATS_ENABLED=false)")
		return nil, nil
	}

	comps := &EventComponents{}
	url := cfg.URL
	if cfg.EmbeddedServer {
		srv, err := events.NewEmbeddedServer(events.ServerConfig{
			Host:      cfg.Host,
			Port:      cfg.Port,
			JetStream: cfg.JetStream,
			StoreDir:  cfg.StoreDir,
		})
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS server: %w", err)
		}
		comps.Server = srv
		url = srv.ClientURL()
	}

	pub, err := events.NewPublisher(ctx, events.PublisherConfig{
		URL:           url,
		SubjectPrefix: cfg.SubjectPrefix,
		JetStream:     cfg.JetStream,
		StreamName:    cfg.StreamName,
		MaxAge:        cfg.MaxAge,
	})
	if err != nil {
		if comps.Server != nil {
			if shutdownErr := comps.Server.Shutdown(ctx); shutdownErr != nil {
				logging.Warn().Err(shutdownErr).Msg("Embedded NATS server shutdown incomplete")
			}
		}
		return nil, fmt.Errorf("connect event publisher: %w", err)
	}
	comps.Publisher = pub

	logging.Info().
		Str("url", url).
		Bool("embedded", cfg.EmbeddedServer).
		Bool("jetstream", cfg.JetStream).
		Str("subject_prefix", cfg.SubjectPrefix).
		Msg("Event publishing enabled")
	return comps, nil
}
