// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/tomtom215/waypoint/internal/logging"
)

// ServerConfig configures the embedded NATS server.
type ServerConfig struct {
	Host string
	// Port 0 picks the NATS default (4222); -1 picks a random free port.
	Port int
	// JetStream enables persistence. StoreDir is required when set.
	JetStream bool
	StoreDir  string
	// ReadyTimeout bounds how long NewEmbeddedServer waits for the listener.
	ReadyTimeout time.Duration
}

// EmbeddedServer is an in-process NATS server for single-binary deployments.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer starts a NATS server and waits until it accepts clients.
func NewEmbeddedServer(cfg ServerConfig) (*EmbeddedServer, error) {
	if cfg.JetStream && cfg.StoreDir == "" {
		return nil, fmt.Errorf("nats store dir is required with jetstream")
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 30 * time.Second
	}

	opts := &server.Options{
		ServerName: "waypoint-events",
		Host:       cfg.Host,
		Port:       cfg.Port,
		JetStream:  cfg.JetStream,
		StoreDir:   cfg.StoreDir,
		MaxPayload: 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}
	ns.SetLogger(natsLogger{}, false, false)

	go ns.Start()

	if !ns.ReadyForConnections(cfg.ReadyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within %s", cfg.ReadyTimeout)
	}

	logging.Info().Str("url", ns.ClientURL()).Bool("jetstream", cfg.JetStream).Msg("Embedded NATS server started")
	return &EmbeddedServer{server: ns, clientURL: ns.ClientURL()}, nil
}

// ClientURL returns the URL clients connect to.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// IsRunning reports server health.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}

// Shutdown stops the server and waits for it unless ctx ends first.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.WaitForShutdown()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// natsLogger forwards nats-server logs to zerolog.
type natsLogger struct{}

func (natsLogger) Noticef(format string, v ...interface{}) {
	logging.Debug().Str("component", "nats-server").Msgf(format, v...)
}

func (natsLogger) Warnf(format string, v ...interface{}) {
	logging.Warn().Str("component", "nats-server").Msgf(format, v...)
}

func (natsLogger) Fatalf(format string, v ...interface{}) {
	logging.Error().Str("component", "nats-server").Msgf(format, v...)
}

func (natsLogger) Errorf(format string, v ...interface{}) {
	logging.Error().Str("component", "nats-server").Msgf(format, v...)
}

func (natsLogger) Debugf(format string, v ...interface{}) {
	logging.Debug().Str("component", "nats-server").Msgf(format, v...)
}

func (natsLogger) Tracef(format string, v ...interface{}) {
	logging.Debug().Str("component", "nats-server").Msgf(format, v...)
}
