// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package recorder keeps the monthly location logs.
//
// Each (user, device) has one partition per UTC calendar month under
// rec/<user>/<device>/<yyyy-mm>.rec. A partition is a sequence of lines
//
//	<ISO8601 timestamp> * <compact JSON report>\n
//
// in arrival order. Because tst may be backdated, lines inside a partition
// are not necessarily sorted by timestamp.
package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/waypoint/internal/keylock"
	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/metrics"
	"github.com/tomtom215/waypoint/internal/storage/objectstore"
)

const (
	// RootPrefix is the object key prefix of every partition.
	RootPrefix = "rec/"

	// PartitionExt is the file extension of a partition name.
	PartitionExt = ".rec"

	// TimestampLayout renders timestamps like JavaScript's toISOString.
	TimestampLayout = "2006-01-02T15:04:05.000Z"

	monthLayout = "2006-01"
	separator   = " * "
)

// ErrMalformedLine is returned by ParseLine.
var ErrMalformedLine = errors.New("malformed record line")

// Log is the record log engine.
type Log struct {
	store objectstore.Store
	locks *keylock.Table
	now   func() time.Time
}

// New returns a Log over store.
func New(store objectstore.Store) *Log {
	return &Log{
		store: store,
		locks: keylock.New("partition"),
		now:   time.Now,
	}
}

// PartitionKey returns the object key of the partition holding a report
// timestamped ts.
func PartitionKey(user, device string, ts time.Time) string {
	return devicePrefix(user, device) + ts.UTC().Format(monthLayout) + PartitionExt
}

func userPrefix(user string) string {
	return RootPrefix + user + "/"
}

func devicePrefix(user, device string) string {
	return userPrefix(user) + device + "/"
}

// FormatLine renders one partition line including the trailing newline.
func FormatLine(ts time.Time, report []byte) []byte {
	stamp := ts.UTC().Format(TimestampLayout)
	line := make([]byte, 0, len(stamp)+len(separator)+len(report)+1)
	line = append(line, stamp...)
	line = append(line, separator...)
	line = append(line, report...)
	return append(line, '\n')
}

// ParseLine splits a partition line (without newline) into its timestamp
// and report. The split is on the first " * ", so reports may contain the
// separator.
func ParseLine(line []byte) (time.Time, json.RawMessage, error) {
	stamp, report, ok := bytes.Cut(line, []byte(separator))
	if !ok {
		return time.Time{}, nil, fmt.Errorf("%w: no separator", ErrMalformedLine)
	}
	ts, err := time.Parse(time.RFC3339Nano, string(stamp))
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("%w: bad timestamp: %v", ErrMalformedLine, err)
	}
	if !json.Valid(report) {
		return time.Time{}, nil, fmt.Errorf("%w: invalid JSON", ErrMalformedLine)
	}
	return ts, json.RawMessage(report), nil
}

// Append adds report to the partition for ts. When the backend has a native
// append the write is a single call; otherwise the partition is read and
// rewritten while holding the partition lock.
func (l *Log) Append(ctx context.Context, user, device string, ts time.Time, report []byte) error {
	key := PartitionKey(user, device, ts)
	line := FormatLine(ts, report)

	if appender, ok := l.store.(objectstore.Appender); ok {
		if err := appender.Append(ctx, key, line); err != nil {
			return fmt.Errorf("append %s: %w", key, err)
		}
		return nil
	}

	unlock := l.locks.Lock(key)
	defer unlock()

	existing, err := l.store.Get(ctx, key)
	if err != nil && !errors.Is(err, objectstore.ErrNotFound) {
		return fmt.Errorf("read %s: %w", key, err)
	}

	data := make([]byte, 0, len(existing)+len(line))
	data = append(data, existing...)
	data = append(data, line...)
	if err := l.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// ReadRange returns the reports of (user, device) whose timestamps fall in
// [from, to]. A zero from means the epoch and a zero to means now.
// Partitions are visited in month order; lines keep file order. Malformed
// lines are logged and skipped.
func (l *Log) ReadRange(ctx context.Context, user, device string, from, to time.Time) ([]json.RawMessage, error) {
	if from.IsZero() {
		from = time.Unix(0, 0)
	}
	if to.IsZero() {
		to = l.now()
	}
	from, to = from.UTC(), to.UTC()

	reports := make([]json.RawMessage, 0)
	if to.Before(from) {
		return reports, nil
	}

	log := logging.ForDevice(ctx, user, device)
	last := monthStart(to)
	for month := monthStart(from); !month.After(last); month = month.AddDate(0, 1, 0) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		key := PartitionKey(user, device, month)
		data, err := l.store.Get(ctx, key)
		if errors.Is(err, objectstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}

		for _, line := range bytes.Split(data, []byte{'\n'}) {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			ts, report, err := ParseLine(line)
			if err != nil {
				metrics.RecordSkippedLine("malformed")
				log.Warn().Err(err).Str("key", key).Str("line", truncate(line, 200)).
					Msg("Skipping malformed record line")
				continue
			}
			if ts.Before(from) || ts.After(to) {
				continue
			}
			reports = append(reports, report)
		}
	}
	return reports, nil
}

// ListPartitions returns the partition file names of (user, device).
func (l *Log) ListPartitions(ctx context.Context, user, device string) ([]string, error) {
	prefix := devicePrefix(user, device)
	keys, err := l.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	names := make([]string, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimPrefix(key, prefix)
		if strings.Contains(name, "/") || !strings.HasSuffix(name, PartitionExt) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ListDevices returns the devices of user that have at least one partition.
func (l *Log) ListDevices(ctx context.Context, user string) ([]string, error) {
	return l.distinctSegment(ctx, userPrefix(user), 2)
}

// ListUsers returns every user that has at least one partition.
func (l *Log) ListUsers(ctx context.Context) ([]string, error) {
	return l.distinctSegment(ctx, RootPrefix, 1)
}

// distinctSegment lists keys under prefix and returns the sorted distinct
// values of path segment idx (rec/<user>/<device>/<file>).
func (l *Log) distinctSegment(ctx context.Context, prefix string, idx int) ([]string, error) {
	keys, err := l.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, key := range keys {
		parts := strings.Split(key, "/")
		if len(parts) <= idx || parts[idx] == "" {
			continue
		}
		if _, dup := seen[parts[idx]]; dup {
			continue
		}
		seen[parts[idx]] = struct{}{}
		names = append(names, parts[idx])
	}
	sort.Strings(names)
	return names, nil
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
