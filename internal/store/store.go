// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides a BadgerDB-backed key/value store for the
// runtime's persisted JSON documents, all in one database: the saved
// session/connection state, the user's app configuration, and one
// track-preference document per series. Badger was
// chosen over flat files so reads and writes are crash-safe without
// hand-rolling atomic rename-on-write.
package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/hewel/jmsr/internal/logging"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("store: key not found")

// Keys under which the runtime's persisted documents live.
const (
	KeySavedSession     = "saved_session"
	KeyAppConfig        = "app_config"
	KeyTrackPreferences = "track_preferences:"
)

// Store is a thin JSON-document wrapper around a BadgerDB handle.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) a Badger database at dir. Badger's
// own logger is routed through badgerLogAdapter into zerolog: its
// default logger writes to stderr, which would interleave badly with
// zerolog's structured output.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogAdapter{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put marshals v as JSON and stores it under key.
func (s *Store) Put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal value for key %q: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Get unmarshals the JSON value stored under key into out, returning
// ErrNotFound if no value is stored.
func (s *Store) Get(key string, out any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get key %q: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}

// Delete removes the value stored under key, if any.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// ListByPrefix returns all keys starting with prefix, without their values.
func (s *Store) ListByPrefix(prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		rawPrefix := []byte(prefix)
		for it.Seek(rawPrefix); it.ValidForPrefix(rawPrefix); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

// badgerLogAdapter routes Badger's internal logging through zerolog at
// a level low enough to stay out of the way during normal operation.
type badgerLogAdapter struct{}

func (badgerLogAdapter) Errorf(format string, args ...any) {
	logging.Error().Msgf("badger: "+format, args...)
}

func (badgerLogAdapter) Warningf(format string, args ...any) {
	logging.Warn().Msgf("badger: "+format, args...)
}

func (badgerLogAdapter) Infof(format string, args ...any) {
	logging.Debug().Msgf("badger: "+format, args...)
}

func (badgerLogAdapter) Debugf(format string, args ...any) {
	logging.Debug().Msgf("badger: "+format, args...)
}
