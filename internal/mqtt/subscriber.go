// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package mqtt receives OwnTracks reports from an MQTT broker, the transport
// most OwnTracks apps use in MQTT mode.
//
// Messages arrive on owntracks/<user>/<device>. The apps do not repeat the
// topic inside the payload, so the subscriber adds it before handing the
// report to the ingestion coordinator.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/tomtom215/waypoint/internal/ingest"
	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/metrics"
	"github.com/tomtom215/waypoint/internal/models"
)

// Config configures the subscriber.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string

	// Topic is the subscription filter, usually owntracks/+/+.
	Topic string
	QoS   byte

	ConnectTimeout time.Duration
	// HandleTimeout bounds the ingest of a single message.
	HandleTimeout time.Duration
}

// Client is the subset of paho.Client the subscriber uses.
type Client interface {
	Connect() paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
	Disconnect(quiesce uint)
	IsConnectionOpen() bool
}

// Ingester is the ingestion entry point for parsed reports.
type Ingester interface {
	IngestReport(ctx context.Context, report *models.LocationReport, source string) (ingest.Result, error)
}

// Subscriber is a supervised service that feeds MQTT messages to an Ingester.
type Subscriber struct {
	cfg       Config
	ingester  Ingester
	newClient func(opts *paho.ClientOptions) Client

	mu     sync.RWMutex
	client Client
	ctx    context.Context
}

// NewSubscriber returns a subscriber that connects when served.
func NewSubscriber(cfg Config, ingester Ingester) *Subscriber {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.HandleTimeout <= 0 {
		cfg.HandleTimeout = 10 * time.Second
	}
	return &Subscriber{
		cfg:      cfg,
		ingester: ingester,
		newClient: func(opts *paho.ClientOptions) Client {
			return paho.NewClient(opts)
		},
		ctx: context.Background(),
	}
}

// Serve connects, subscribes and blocks until ctx is done. A failed connect
// or subscribe returns an error so the supervisor restarts the service.
func (s *Subscriber) Serve(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetUsername(s.cfg.Username).
		SetPassword(s.cfg.Password).
		SetAutoReconnect(true).
		SetCleanSession(false).
		SetConnectTimeout(s.cfg.ConnectTimeout).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logging.Warn().Err(err).Msg("MQTT connection lost")
		})
	// Subscriptions are re-established on every (re)connect.
	opts.SetOnConnectHandler(func(c paho.Client) {
		token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.onMessage)
		if token.WaitTimeout(s.cfg.ConnectTimeout) && token.Error() != nil {
			logging.Error().Err(token.Error()).Str("topic", s.cfg.Topic).Msg("MQTT subscribe failed")
			return
		}
		logging.Info().Str("broker", s.cfg.Broker).Str("topic", s.cfg.Topic).Msg("MQTT subscribed")
	})

	client := s.newClient(opts)
	s.mu.Lock()
	s.client = client
	s.ctx = ctx
	s.mu.Unlock()

	token := client.Connect()
	if !token.WaitTimeout(s.cfg.ConnectTimeout) {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connect to %s: timed out after %s", s.cfg.Broker, s.cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect to %s: %w", s.cfg.Broker, err)
	}

	<-ctx.Done()

	client.Unsubscribe(s.cfg.Topic).WaitTimeout(time.Second)
	client.Disconnect(250)
	logging.Info().Msg("MQTT subscriber stopped")
	return ctx.Err()
}

// String names the service in supervisor logs.
func (s *Subscriber) String() string {
	return "mqtt-subscriber"
}

// Connected reports whether the broker connection is up.
func (s *Subscriber) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil && s.client.IsConnectionOpen()
}

func (s *Subscriber) onMessage(_ paho.Client, msg paho.Message) {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.HandleTimeout)
	defer cancel()
	_ = s.HandleMessage(ctx, msg.Topic(), msg.Payload())
}

// HandleMessage ingests one MQTT message. The MQTT topic is used when the
// payload has no topic of its own.
func (s *Subscriber) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	log := logging.Ctx(ctx).With().Str("mqtt_topic", topic).Logger()

	report, err := models.ParseLocationReport(payload)
	if err == nil && report.Topic == "" && report.IsLocation() {
		var withTopic []byte
		if withTopic, err = models.WithTopic(report.Raw(), topic); err == nil {
			report, err = models.ParseLocationReport(withTopic)
		}
	}
	if err != nil {
		metrics.RecordMQTTMessage("invalid")
		log.Warn().Err(err).Msg("Dropping malformed MQTT message")
		return err
	}

	res, err := s.ingester.IngestReport(ctx, report, ingest.SourceMQTT)
	switch {
	case err == nil && res.Stored:
		metrics.RecordMQTTMessage("stored")
	case err == nil:
		metrics.RecordMQTTMessage("ignored")
	case errors.Is(err, ingest.ErrInternal):
		metrics.RecordMQTTMessage("error")
		log.Error().Err(err).Msg("Failed to store MQTT location")
	default:
		metrics.RecordMQTTMessage("invalid")
		log.Warn().Err(err).Msg("Rejected MQTT location")
	}
	return err
}
