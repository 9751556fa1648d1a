// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package lastloc maintains the last-location views.
//
// Three JSON arrays of raw reports are kept in the index store:
//
//	last:<user>:<device>  the latest report of one device (one element)
//	last:<user>           the latest report of each device of a user
//	last:all              the latest report of each (user, device)
//
// All three are rewritten in a single transaction per ingested report.
// "Latest" means most recently ingested, not highest tst.
package lastloc

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/waypoint/internal/models"
	"github.com/tomtom215/waypoint/internal/storage/kvstore"
)

const (
	keyPrefix = "last:"
	globalKey = keyPrefix + "all"
)

// ErrNotFound is returned by Get when the view has never been written.
var ErrNotFound = errors.New("no location data found")

// DeviceKey returns the key of the device view.
func DeviceKey(user, device string) string {
	return keyPrefix + user + ":" + device
}

// UserKey returns the key of the user view.
func UserKey(user string) string {
	return keyPrefix + user
}

// GlobalKey returns the key of the global view.
func GlobalKey() string {
	return globalKey
}

// KeyFor selects the most specific view for the supplied identifiers: both
// set selects the device view, user alone the user view, neither the global
// view. A device without a user falls back to the global view.
func KeyFor(user, device string) string {
	switch {
	case user != "" && device != "":
		return DeviceKey(user, device)
	case user != "":
		return UserKey(user)
	default:
		return GlobalKey()
	}
}

// Index is the last-location index engine.
type Index struct {
	store kvstore.Store
}

// New returns an Index over store.
func New(store kvstore.Store) *Index {
	return &Index{store: store}
}

// Update records report as the latest for topic in all three views.
// report must be the compact JSON of a report whose topic field names the
// same user and device.
func (x *Index) Update(ctx context.Context, topic models.Topic, report json.RawMessage) error {
	single, err := json.MarshalNoEscape([]json.RawMessage{report})
	if err != nil {
		return fmt.Errorf("encode device view: %w", err)
	}

	return x.store.Update(ctx, func(tx kvstore.Tx) error {
		if err := tx.Set(DeviceKey(topic.User, topic.Device), single); err != nil {
			return err
		}

		userKey := UserKey(topic.User)
		if err := replaceEntry(tx, userKey, report, func(_, device string) bool {
			return device == topic.Device
		}); err != nil {
			return err
		}

		return replaceEntry(tx, globalKey, report, func(user, device string) bool {
			return user == topic.User && device == topic.Device
		})
	})
}

// replaceEntry reads the array under key, drops the elements for which
// matches returns true, appends report and writes the array back. Elements
// whose topic cannot be read are kept.
func replaceEntry(tx kvstore.Tx, key string, report json.RawMessage, matches func(user, device string) bool) error {
	existing, err := readView(tx, key)
	if err != nil {
		return err
	}

	kept := make([]json.RawMessage, 0, len(existing)+1)
	for _, elem := range existing {
		if user, device, ok := models.StoredTopic(elem); ok && matches(user, device) {
			continue
		}
		kept = append(kept, elem)
	}
	kept = append(kept, report)

	data, err := json.MarshalNoEscape(kept)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return tx.Set(key, data)
}

func readView(tx kvstore.Tx, key string) ([]json.RawMessage, error) {
	data, err := tx.Get(key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	var view []json.RawMessage
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return view, nil
}

// Get returns the stored array for the view selected by KeyFor, verbatim.
func (x *Index) Get(ctx context.Context, user, device string) (json.RawMessage, error) {
	key := KeyFor(user, device)
	data, err := x.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}
