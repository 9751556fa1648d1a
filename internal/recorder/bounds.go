// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package recorder

import "time"

// boundLayouts are tried in order by ParseBound.
var boundLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseBound parses a ReadRange bound given as text. Values without a zone
// are UTC. An empty value yields the zero time, which ReadRange treats as
// unbounded.
func ParseBound(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	var firstErr error
	for _, layout := range boundLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
