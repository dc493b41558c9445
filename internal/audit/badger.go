// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

package audit

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// eventKeyPrefix namespaces audit events in the BadgerDB keyspace.
const eventKeyPrefix = "event:"

// BadgerStore implements Store using BadgerDB for durable storage.
// Keys are ordered by timestamp so range scans return events in time
// order. Entries carry a TTL equal to the retention window, which makes
// Badger's own expiry a backstop for the periodic sweep.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerStore creates a BadgerDB-backed audit store. ttl <= 0 disables
// the per-entry TTL backstop; pruning still works via Prune.
func NewBadgerStore(db *badger.DB, ttl time.Duration) *BadgerStore {
	return &BadgerStore{db: db, ttl: ttl}
}

// eventKey builds a time-ordered key: event:<unixnano-20d>:<id>.
func eventKey(event *Event) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", eventKeyPrefix, event.Timestamp.UnixNano(), event.ID))
}

// Record appends an event.
func (s *BadgerStore) Record(event Event) error {
	data, err := json.Marshal(&event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(eventKey(&event), data)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Query returns events matching the filter, most recent first.
func (s *BadgerStore) Query(filter Filter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	var results []Event
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts past the newest event key.
		seek := []byte(eventKeyPrefix + "\xff")
		prefix := []byte(eventKeyPrefix)

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			var event Event
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &event)
			})
			if err != nil {
				return fmt.Errorf("unmarshal event: %w", err)
			}

			// Keys are time-ordered; once we cross the lower bound in a
			// reverse scan there is nothing left to match.
			if !filter.Since.IsZero() && event.Timestamp.Before(filter.Since) {
				break
			}
			if !matchesFilter(&event, &filter) {
				continue
			}

			results = append(results, event)
			if len(results) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// Count returns the number of events matching the filter.
func (s *BadgerStore) Count(filter Filter) (int64, error) {
	var count int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(eventKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var event Event
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &event)
			})
			if err != nil {
				return fmt.Errorf("unmarshal event: %w", err)
			}
			if matchesFilter(&event, &filter) {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Prune removes events older than the given time.
func (s *BadgerStore) Prune(olderThan time.Time) (int64, error) {
	// Collect expired keys first; deleting inside an iterator txn is
	// not allowed.
	var keys [][]byte
	cutoff := []byte(fmt.Sprintf("%s%020d", eventKeyPrefix, olderThan.UnixNano()))

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(eventKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if string(key) >= string(cutoff) {
				break
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	var removed int64
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return removed, fmt.Errorf("delete event: %w", err)
		}
		removed++
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush deletes: %w", err)
	}

	return removed, nil
}
