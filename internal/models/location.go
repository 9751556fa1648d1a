// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package models

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/waypoint/internal/validation"
)

// TypeLocation is the only OwnTracks _type that is recorded.
const TypeLocation = "location"

var (
	// ErrMalformedReport is returned when a payload is not JSON or a location
	// report's routing fields have the wrong JSON type.
	ErrMalformedReport = errors.New("malformed location report")

	// ErrMissingCoordinates is returned when lat or lon is absent or zero.
	ErrMissingCoordinates = errors.New("lat and lon are required")

	// ErrTimestampRange is returned when tst cannot be rendered as a calendar date.
	ErrTimestampRange = errors.New("tst out of range")
)

// minTst and maxTst bound tst to years 1..9999 so the ISO8601 rendering and
// the yyyy-mm partition name stay well formed.
var (
	minTst = float64(time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC).Unix())
	maxTst = float64(time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC).Unix())
)

// LocationReport is one OwnTracks message. Only the fields needed for routing
// are decoded; the complete payload is kept in Raw and is what gets stored
// and returned.
type LocationReport struct {
	Type  string   `json:"_type"`
	Lat   float64  `json:"lat" validate:"required"`
	Lon   float64  `json:"lon" validate:"required"`
	Tst   *float64 `json:"tst,omitempty"`
	Topic string   `json:"topic"`

	raw json.RawMessage
}

// ParseLocationReport keeps a compact single-line copy of data and decodes
// its routing fields. Only _type is read from messages that are not location
// reports, and valid JSON that is not an object is such a message, so their
// other fields may hold anything.
func ParseLocationReport(data []byte) (*LocationReport, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, bytes.TrimSpace(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	compact := buf.Bytes()
	if len(compact) == 0 || compact[0] != '{' {
		return &LocationReport{raw: compact}, nil
	}

	var head struct {
		Type any `json:"_type"`
	}
	if err := json.Unmarshal(compact, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	if head.Type != TypeLocation {
		typ, _ := head.Type.(string)
		return &LocationReport{Type: typ, raw: compact}, nil
	}

	r := &LocationReport{}
	if err := json.Unmarshal(compact, r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	r.raw = compact
	return r, nil
}

// IsLocation reports whether the message is a location report.
func (r *LocationReport) IsLocation() bool {
	return r.Type == TypeLocation
}

// Validate checks the coordinate and timestamp fields. Topic checks are left
// to ParseTopic so callers can report them separately.
func (r *LocationReport) Validate() error {
	if verr := validation.ValidateStruct(r); verr != nil {
		return fmt.Errorf("%w: %v", ErrMissingCoordinates, verr)
	}
	if r.Tst != nil {
		tst := *r.Tst
		if math.IsNaN(tst) || tst < minTst || tst > maxTst {
			return fmt.Errorf("%w: %v", ErrTimestampRange, tst)
		}
	}
	return nil
}

// Timestamp returns tst as a UTC instant with millisecond precision, or now
// when tst is absent or zero.
func (r *LocationReport) Timestamp(now time.Time) time.Time {
	if r.Tst == nil || *r.Tst == 0 {
		return now.UTC().Truncate(time.Millisecond)
	}
	return time.UnixMilli(int64(*r.Tst * 1000)).UTC()
}

// Raw returns the compact JSON payload.
func (r *LocationReport) Raw() json.RawMessage {
	return r.raw
}

// MarshalJSON returns the stored payload so extra fields survive verbatim.
func (r *LocationReport) MarshalJSON() ([]byte, error) {
	if r.raw == nil {
		return []byte("null"), nil
	}
	return r.raw, nil
}

// WithTopic returns payload with its "topic" member set to topic. MQTT
// clients do not repeat the topic in the payload, so the subscriber adds it.
// The new member comes first; any existing topic members are removed and
// the other members keep their order and bytes.
func WithTopic(payload []byte, topic string) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, bytes.TrimSpace(payload)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	members, err := objectMembers(buf.Bytes())
	if err != nil {
		return nil, err
	}
	quoted, err := json.Marshal(topic)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, buf.Len()+len(quoted)+10)
	out = append(out, `{"topic":`...)
	out = append(out, quoted...)
	for _, m := range members {
		if m.key == "topic" {
			continue
		}
		out = append(out, ',')
		out = append(out, m.raw...)
	}
	return append(out, '}'), nil
}

// member is one top-level "key":value pair of a compact JSON object.
type member struct {
	key string
	raw []byte
}

// objectMembers splits a compact JSON object into its top-level members.
func objectMembers(obj []byte) ([]member, error) {
	malformed := fmt.Errorf("%w: payload is not a JSON object", ErrMalformedReport)
	if len(obj) < 2 || obj[0] != '{' || obj[len(obj)-1] != '}' {
		return nil, malformed
	}

	var members []member
	for i := 1; i < len(obj)-1; {
		keyEnd := scanString(obj, i)
		if keyEnd < 0 || keyEnd >= len(obj) || obj[keyEnd] != ':' {
			return nil, malformed
		}
		var key string
		if err := json.Unmarshal(obj[i:keyEnd], &key); err != nil {
			return nil, malformed
		}
		valEnd := scanValue(obj, keyEnd+1)
		if valEnd < 0 {
			return nil, malformed
		}
		members = append(members, member{key: key, raw: obj[i:valEnd]})
		i = valEnd
		if obj[i] == ',' {
			i++
		}
	}
	return members, nil
}

// scanString returns the index just past the string starting at b[i], or -1.
func scanString(b []byte, i int) int {
	if i >= len(b) || b[i] != '"' {
		return -1
	}
	for j := i + 1; j < len(b); j++ {
		switch b[j] {
		case '\\':
			j++
		case '"':
			return j + 1
		}
	}
	return -1
}

// scanValue returns the index of the ',' or '}' that ends the value starting
// at b[i], or -1.
func scanValue(b []byte, i int) int {
	depth := 0
	for j := i; j < len(b); j++ {
		switch b[j] {
		case '"':
			end := scanString(b, j)
			if end < 0 {
				return -1
			}
			j = end - 1
		case '{', '[':
			depth++
		case ']':
			depth--
		case '}':
			if depth == 0 {
				return j
			}
			depth--
		case ',':
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}
