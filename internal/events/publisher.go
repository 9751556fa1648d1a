// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package events publishes stored location reports to NATS so other
// services can follow devices without polling the HTTP API.
//
// Subjects are <prefix>.<user>.<device>; payloads are the raw report JSON.
// Each message carries a unique id header for consumer de-duplication.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/metrics"
	"github.com/tomtom215/waypoint/internal/models"
)

// MsgIDHeader carries the per-message UUID.
const MsgIDHeader = "Waypoint-Msg-Id"

// ErrPublisherClosed is returned after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// PublisherConfig configures the NATS publisher.
type PublisherConfig struct {
	URL           string
	SubjectPrefix string

	// JetStream publishes through a stream so events survive restarts of
	// consumers. The stream is created when missing.
	JetStream  bool
	StreamName string
	MaxAge     time.Duration
}

// Publisher publishes location events.
type Publisher struct {
	cfg PublisherConfig
	nc  *nats.Conn
	js  jetstream.JetStream

	mu     sync.RWMutex
	closed bool
}

// NewPublisher connects to NATS and, in JetStream mode, ensures the stream.
func NewPublisher(ctx context.Context, cfg PublisherConfig) (*Publisher, error) {
	if cfg.SubjectPrefix == "" {
		return nil, fmt.Errorf("nats subject prefix is required")
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("waypoint"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logging.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	p := &Publisher{cfg: cfg, nc: nc}
	if cfg.JetStream {
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create JetStream context: %w", err)
		}
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:       cfg.StreamName,
			Subjects:   []string{cfg.SubjectPrefix + ".>"},
			MaxAge:     cfg.MaxAge,
			Duplicates: 2 * time.Minute,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.StreamName, err)
		}
		p.js = js
	}
	return p, nil
}

// Subject returns the subject for topic. NATS tokens cannot contain '.',
// '*', '>' or whitespace, so those characters are replaced with '_'.
func Subject(prefix string, topic models.Topic) string {
	return prefix + "." + subjectToken(topic.User) + "." + subjectToken(topic.Device)
}

func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// PublishLocation publishes report on the subject of topic.
func (p *Publisher) PublishLocation(ctx context.Context, topic models.Topic, report json.RawMessage) (err error) {
	defer func() { metrics.RecordEventPublish(err) }()

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	id := uuid.NewString()
	msg := nats.NewMsg(Subject(p.cfg.SubjectPrefix, topic))
	msg.Data = report
	msg.Header.Set(MsgIDHeader, id)

	if p.js != nil {
		if _, err := p.js.PublishMsg(ctx, msg, jetstream.WithMsgID(id)); err != nil {
			return fmt.Errorf("jetstream publish: %w", err)
		}
		return nil
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Ping reports whether the connection is up.
func (p *Publisher) Ping(context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected: %s", p.nc.Status())
	}
	return nil
}

// Close drains the connection so buffered messages are flushed.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.nc.Drain()
}
