// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package kvstore

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"
)

func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			s := NewMemory()
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		"badger": func(t *testing.T) Store {
			s, err := NewBadger(BadgerConfig{InMemory: true, Retry: DefaultRetryPolicy()})
			if err != nil {
				t.Fatalf("NewBadger() error = %v", err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestStore_GetPut(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s := factory(t)

			if _, err := s.Get(ctx, "last:all"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
			}
			if err := s.Put(ctx, "last:all", []byte("[]")); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			got, err := s.Get(ctx, "last:all")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if string(got) != "[]" {
				t.Errorf("Get() = %q, want []", got)
			}
		})
	}
}

func TestStore_UpdateCommitsAllKeys(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s := factory(t)

			err := s.Update(ctx, func(tx Tx) error {
				if _, err := tx.Get("a"); !errors.Is(err, ErrNotFound) {
					t.Errorf("tx.Get(a) error = %v, want ErrNotFound", err)
				}
				if err := tx.Set("a", []byte("1")); err != nil {
					return err
				}
				if err := tx.Set("b", []byte("2")); err != nil {
					return err
				}
				// Reads observe the transaction's own writes.
				v, err := tx.Get("a")
				if err != nil || string(v) != "1" {
					t.Errorf("tx.Get(a) = %q, %v", v, err)
				}
				return nil
			})
			if err != nil {
				t.Fatalf("Update() error = %v", err)
			}

			for key, want := range map[string]string{"a": "1", "b": "2"} {
				got, err := s.Get(ctx, key)
				if err != nil || string(got) != want {
					t.Errorf("Get(%s) = %q, %v; want %q", key, got, err, want)
				}
			}
		})
	}
}

func TestStore_UpdateRollsBackOnError(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s := factory(t)

			err := s.Update(ctx, func(tx Tx) error {
				if err := tx.Set("a", []byte("1")); err != nil {
					return err
				}
				return errBoom
			})
			if !errors.Is(err, errBoom) {
				t.Fatalf("Update() error = %v, want errBoom", err)
			}
			if _, err := s.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(a) after rollback error = %v, want ErrNotFound", err)
			}
		})
	}
}

// TestStore_ConcurrentReadModifyWrite checks that no increment is lost when
// many goroutines read-modify-write the same key.
func TestStore_ConcurrentReadModifyWrite(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s := factory(t)

			if bs, ok := s.(*BadgerStore); ok {
				bs.cfg.Retry = RetryPolicy{MaxRetries: 1000, BaseBackoff: time.Microsecond, MaxBackoff: time.Millisecond}
			}

			const workers = 8
			const perWorker = 25

			var wg sync.WaitGroup
			errs := make(chan error, workers)
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < perWorker; i++ {
						err := s.Update(ctx, func(tx Tx) error {
							n := 0
							v, err := tx.Get("counter")
							switch {
							case errors.Is(err, ErrNotFound):
							case err != nil:
								return err
							default:
								n, _ = strconv.Atoi(string(v))
							}
							return tx.Set("counter", []byte(strconv.Itoa(n+1)))
						})
						if err != nil {
							errs <- err
							return
						}
					}
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Fatalf("Update() error = %v", err)
			}

			got, err := s.Get(ctx, "counter")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if string(got) != strconv.Itoa(workers*perWorker) {
				t.Errorf("counter = %s, want %d", got, workers*perWorker)
			}
		})
	}
}

func TestStore_Closed(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s := factory(t)

			if err := s.Ping(ctx); err != nil {
				t.Fatalf("Ping() error = %v", err)
			}
			if err := s.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}
			if err := s.Ping(ctx); !errors.Is(err, ErrClosed) {
				t.Errorf("Ping() after close = %v, want ErrClosed", err)
			}
			if err := s.Update(ctx, func(Tx) error { return nil }); !errors.Is(err, ErrClosed) {
				t.Errorf("Update() after close = %v, want ErrClosed", err)
			}
		})
	}
}

func TestBadger_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewBadger(BadgerConfig{Path: dir, SyncWrites: true, Retry: DefaultRetryPolicy()})
	if err != nil {
		t.Fatalf("NewBadger() error = %v", err)
	}
	if err := s.Put(ctx, "last:alice", []byte(`[{"lat":1}]`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := s.RunGC(); err != nil {
		t.Errorf("RunGC() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = NewBadger(BadgerConfig{Path: dir, Retry: DefaultRetryPolicy()})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	got, err := s.Get(ctx, "last:alice")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != `[{"lat":1}]` {
		t.Errorf("Get() = %s", got)
	}
}

func TestNewBadger_RequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := NewBadger(BadgerConfig{}); err == nil {
		t.Fatal("NewBadger() without path should fail")
	}
}

func TestRetryPolicy_BackoffHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := RetryPolicy{BaseBackoff: time.Hour, MaxBackoff: time.Hour}
	if err := p.backoff(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("backoff() = %v, want context.Canceled", err)
	}
}
