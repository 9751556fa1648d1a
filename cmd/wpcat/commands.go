// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/waypoint/internal/api"
	"github.com/tomtom215/waypoint/internal/models"
	"github.com/tomtom215/waypoint/internal/recorder"
	"github.com/tomtom215/waypoint/internal/storage/objectstore"
)

// openFunc opens the record store at path.
type openFunc func(path string) (objectstore.Store, error)

func openPebble(path string) (objectstore.Store, error) {
	store, err := objectstore.NewPebble(objectstore.PebbleConfig{Path: path, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// withLog opens the store named by --store, runs fn, then closes the store.
func withLog(cmd *cobra.Command, open openFunc, fn func(*recorder.Log) error) error {
	path, _ := cmd.Flags().GetString("store")
	if path == "" {
		return fmt.Errorf("--store or STORAGE_PATH is required")
	}
	store, err := open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(recorder.New(store))
}

// newRootCmd builds the wpcat command tree. open is swapped in tests.
func newRootCmd(open openFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "wpcat",
		Short:         "Read a Waypoint record store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("store", envOr("STORAGE_PATH", ""), "pebble record store directory")

	root.AddCommand(
		&cobra.Command{
			Use:   "users",
			Short: "List users with recorded locations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withLog(cmd, open, func(l *recorder.Log) error {
					users, err := l.ListUsers(cmd.Context())
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), models.ListResponse{Results: nonNil(users)})
				})
			},
		},
		&cobra.Command{
			Use:   "devices <user>",
			Short: "List a user's devices",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withLog(cmd, open, func(l *recorder.Log) error {
					devices, err := l.ListDevices(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), models.ListResponse{Results: nonNil(devices)})
				})
			},
		},
		&cobra.Command{
			Use:   "partitions <user> <device>",
			Short: "List a device's monthly partitions",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withLog(cmd, open, func(l *recorder.Log) error {
					names, err := l.ListPartitions(cmd.Context(), args[0], args[1])
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), nonNil(names))
				})
			},
		},
		newLocationsCmd(open),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return writeJSON(cmd.OutOrStdout(), models.VersionResponse{Version: api.Version})
			},
		},
	)
	return root
}

func newLocationsCmd(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locations <user> <device>",
		Short: "Print a device's reports within a time range",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fromFlag, _ := cmd.Flags().GetString("from")
			toFlag, _ := cmd.Flags().GetString("to")
			from, err := recorder.ParseBound(fromFlag)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			to, err := recorder.ParseBound(toFlag)
			if err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}
			return withLog(cmd, open, func(l *recorder.Log) error {
				reports, err := l.ReadRange(cmd.Context(), args[0], args[1], from, to)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), models.LocationsResponse{Data: reports})
			})
		},
	}
	cmd.Flags().String("from", "", "start of range (RFC3339 or YYYY-MM-DD, default epoch)")
	cmd.Flags().String("to", "", "end of range (RFC3339 or YYYY-MM-DD, default now)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalNoEscape(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
