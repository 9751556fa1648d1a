// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/tomtom215/waypoint/internal/models"
)

func startServer(t *testing.T, jetStream bool) *EmbeddedServer {
	t.Helper()
	cfg := ServerConfig{Host: "127.0.0.1", Port: -1, ReadyTimeout: 10 * time.Second}
	if jetStream {
		cfg.JetStream = true
		cfg.StoreDir = t.TempDir()
	}
	srv, err := NewEmbeddedServer(cfg)
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func TestSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		topic models.Topic
		want  string
	}{
		{models.Topic{User: "alice", Device: "phone"}, "owntracks.alice.phone"},
		{models.Topic{User: "a.b", Device: "my phone"}, "owntracks.a_b.my_phone"},
		{models.Topic{User: "*", Device: ">"}, "owntracks._._"},
	}
	for _, tt := range tests {
		if got := Subject("owntracks", tt.topic); got != tt.want {
			t.Errorf("Subject(%v) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

func TestNewEmbeddedServer_RequiresStoreDir(t *testing.T) {
	t.Parallel()

	if _, err := NewEmbeddedServer(ServerConfig{JetStream: true}); err == nil {
		t.Fatal("NewEmbeddedServer() without store dir should fail")
	}
}

func TestPublisher_CorePublish(t *testing.T) {
	t.Parallel()

	srv := startServer(t, false)
	if !srv.IsRunning() {
		t.Fatal("server not running")
	}
	ctx := context.Background()

	sub, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("connect subscriber: %v", err)
	}
	defer sub.Close()
	ch := make(chan *nats.Msg, 1)
	if _, err := sub.ChanSubscribe("waypoint.>", ch); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	p, err := NewPublisher(ctx, PublisherConfig{URL: srv.ClientURL(), SubjectPrefix: "waypoint"})
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	defer p.Close()
	if err := p.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	report := json.RawMessage(`{"_type":"location","lat":1,"lon":2}`)
	if err := p.PublishLocation(ctx, models.Topic{User: "alice", Device: "phone"}, report); err != nil {
		t.Fatalf("PublishLocation() error = %v", err)
	}

	select {
	case msg := <-ch:
		if msg.Subject != "waypoint.alice.phone" {
			t.Errorf("subject = %q", msg.Subject)
		}
		if string(msg.Data) != string(report) {
			t.Errorf("data = %s", msg.Data)
		}
		if _, err := uuid.Parse(msg.Header.Get(MsgIDHeader)); err != nil {
			t.Errorf("%s header = %q: %v", MsgIDHeader, msg.Header.Get(MsgIDHeader), err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}

func TestPublisher_JetStream(t *testing.T) {
	t.Parallel()

	srv := startServer(t, true)
	ctx := context.Background()

	p, err := NewPublisher(ctx, PublisherConfig{
		URL:           srv.ClientURL(),
		SubjectPrefix: "waypoint",
		JetStream:     true,
		StreamName:    "LOCATIONS",
		MaxAge:        time.Hour,
	})
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := p.PublishLocation(ctx, models.Topic{User: "alice", Device: "phone"}, json.RawMessage(`{}`)); err != nil {
			t.Fatalf("PublishLocation() error = %v", err)
		}
	}

	info, err := p.js.Stream(ctx, "LOCATIONS")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	state, err := info.Info(ctx)
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if state.State.Msgs != 3 {
		t.Errorf("stream has %d messages, want 3", state.State.Msgs)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.PublishLocation(ctx, models.Topic{User: "a", Device: "b"}, json.RawMessage(`{}`)); !errors.Is(err, ErrPublisherClosed) {
		t.Errorf("PublishLocation() after Close = %v, want ErrPublisherClosed", err)
	}
}
