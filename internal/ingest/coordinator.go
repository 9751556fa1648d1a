// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package ingest accepts OwnTracks reports and writes them to the record log
// and the last-location index.
//
// For each report the coordinator validates it, resolves its timestamp,
// updates the index and appends to the log. The two writes run under a
// per-(user, device) lock so reports of one device are applied in the order
// they are ingested. They are independent steps: a failure in one does not
// stop the other, and both failures are reported. Events and ingest hooks
// for one device are also delivered in ingest order.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/waypoint/internal/keylock"
	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/metrics"
	"github.com/tomtom215/waypoint/internal/models"
)

var (
	// ErrInvalidPayload means the body is not a usable location report.
	ErrInvalidPayload = errors.New("invalid location payload")

	// ErrMissingTopic means the report has no topic.
	ErrMissingTopic = errors.New("missing topic")

	// ErrInvalidTopic means the topic is not owntracks/<user>/<device>.
	ErrInvalidTopic = errors.New("invalid topic format")

	// ErrInternal means a storage step failed. The wrapped errors carry the
	// causes and must not be shown to clients.
	ErrInternal = errors.New("internal error")
)

// Source labels where a report came from in metrics and logs.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

// RecordLog is the write side of the record log engine.
type RecordLog interface {
	Append(ctx context.Context, user, device string, ts time.Time, report []byte) error
}

// LastLocationIndex is the write side of the last-location index engine.
type LastLocationIndex interface {
	Update(ctx context.Context, topic models.Topic, report json.RawMessage) error
}

// EventPublisher receives every successfully stored report. Publishing is
// best effort; errors are logged and do not fail the ingest.
type EventPublisher interface {
	PublishLocation(ctx context.Context, topic models.Topic, report json.RawMessage) error
}

// Hook runs after a report has been stored.
type Hook func(ctx context.Context, topic models.Topic)

// Result describes a processed report.
type Result struct {
	// Stored is false for messages that are not location reports.
	Stored    bool
	Topic     models.Topic
	Timestamp time.Time
}

// Coordinator is the ingestion coordinator.
type Coordinator struct {
	log   RecordLog
	index LastLocationIndex
	locks *keylock.Table
	now   func() time.Time

	mu        sync.RWMutex
	publisher EventPublisher
	hooks     []Hook
}

// NewCoordinator wires a coordinator to its two storage engines.
func NewCoordinator(log RecordLog, index LastLocationIndex) *Coordinator {
	return &Coordinator{
		log:   log,
		index: index,
		locks: keylock.New("device"),
		now:   time.Now,
	}
}

// SetEventPublisher sets the optional publisher. nil disables publishing.
func (c *Coordinator) SetEventPublisher(publisher EventPublisher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publisher = publisher
}

// OnIngested registers a hook that runs after every stored report.
func (c *Coordinator) OnIngested(hook Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, hook)
}

// Ingest parses body and processes it. Used by the HTTP endpoint.
func (c *Coordinator) Ingest(ctx context.Context, body []byte) (Result, error) {
	report, err := models.ParseLocationReport(body)
	if err != nil {
		metrics.RecordIngest(SourceHTTP, "invalid_payload", 0)
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return c.IngestReport(ctx, report, SourceHTTP)
}

// IngestReport processes an already parsed report.
func (c *Coordinator) IngestReport(ctx context.Context, report *models.LocationReport, source string) (res Result, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordIngest(source, outcome(res, err), time.Since(start))
	}()

	if !report.IsLocation() {
		return Result{}, nil
	}
	if err := report.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	topic, err := models.ParseTopic(report.Topic)
	switch {
	case errors.Is(err, models.ErrMissingTopic):
		return Result{}, ErrMissingTopic
	case err != nil:
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidTopic, report.Topic)
	}

	ts := report.Timestamp(c.now())
	raw := report.Raw()

	if err := c.store(ctx, topic, ts, raw); err != nil {
		return Result{}, err
	}

	res = Result{Stored: true, Topic: topic, Timestamp: ts}
	logging.ForDevice(ctx, topic.User, topic.Device).Debug().Str("source", source).Time("tst", ts).Msg("Location recorded")
	return res, nil
}

// store runs both writes under the device lock. Each step runs even when
// the other fails. The publish and the hooks run under the same lock, so
// they see one device's reports in ingest order.
func (c *Coordinator) store(ctx context.Context, topic models.Topic, ts time.Time, raw json.RawMessage) error {
	log := logging.ForDevice(ctx, topic.User, topic.Device)

	unlock := c.locks.Lock(topic.User + "/" + topic.Device)
	defer unlock()

	indexErr := c.index.Update(ctx, topic, raw)
	if indexErr != nil {
		metrics.RecordIngestStepFailure("index")
		log.Error().Err(indexErr).Msg("Failed to update last-location index")
	}
	logErr := c.log.Append(ctx, topic.User, topic.Device, ts, raw)
	if logErr != nil {
		metrics.RecordIngestStepFailure("log")
		log.Error().Err(logErr).Time("tst", ts).Msg("Failed to append to record log")
	}

	if indexErr != nil || logErr != nil {
		return fmt.Errorf("%w: %w", ErrInternal, errors.Join(indexErr, logErr))
	}
	c.afterStore(ctx, topic, raw)
	return nil
}

func (c *Coordinator) afterStore(ctx context.Context, topic models.Topic, raw json.RawMessage) {
	c.mu.RLock()
	publisher := c.publisher
	hooks := c.hooks
	c.mu.RUnlock()

	if publisher != nil {
		if err := publisher.PublishLocation(ctx, topic, raw); err != nil {
			logging.ForDevice(ctx, topic.User, topic.Device).Warn().Err(err).
				Msg("Failed to publish location event")
		}
	}
	for _, hook := range hooks {
		hook(ctx, topic)
	}
}

func outcome(res Result, err error) string {
	switch {
	case err == nil && res.Stored:
		return "stored"
	case err == nil:
		return "ignored"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrMissingTopic), errors.Is(err, ErrInvalidTopic):
		return "invalid_topic"
	default:
		return "error"
	}
}
