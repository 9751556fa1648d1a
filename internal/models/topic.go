// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package models

import (
	"errors"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/waypoint/internal/validation"
)

const (
	// TopicPrefix is the first segment of every accepted topic.
	TopicPrefix = "owntracks"

	// ReservedUser would share its index key with the global view.
	ReservedUser = "all"
)

var (
	// ErrMissingTopic is returned when a report has no topic.
	ErrMissingTopic = errors.New("missing topic")

	// ErrInvalidTopic is returned when a topic is not owntracks/<user>/<device>.
	ErrInvalidTopic = errors.New("invalid topic format")
)

// Topic identifies the user and device a report belongs to.
type Topic struct {
	User   string `json:"user" validate:"required,idsegment"`
	Device string `json:"device" validate:"required,idsegment"`
}

// ParseTopic parses owntracks/<user>/<device>. The user name "all" is
// rejected.
func ParseTopic(topic string) (Topic, error) {
	if topic == "" {
		return Topic{}, ErrMissingTopic
	}
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != TopicPrefix {
		return Topic{}, ErrInvalidTopic
	}
	t := Topic{User: parts[1], Device: parts[2]}
	if t.User == ReservedUser || validation.ValidateStruct(&t) != nil {
		return Topic{}, ErrInvalidTopic
	}
	return t, nil
}

// String renders the topic in owntracks/<user>/<device> form.
func (t Topic) String() string {
	return TopicPrefix + "/" + t.User + "/" + t.Device
}

// StoredTopic extracts the user and device segments from the topic of a
// stored report. ok is false when the element has no string topic or fewer
// than three segments.
func StoredTopic(report json.RawMessage) (user, device string, ok bool) {
	var probe struct {
		Topic *string `json:"topic"`
	}
	if err := json.Unmarshal(report, &probe); err != nil || probe.Topic == nil {
		return "", "", false
	}
	parts := strings.Split(*probe.Topic, "/")
	if len(parts) < 3 {
		return "", "", false
	}
	return parts[1], parts[2], true
}
