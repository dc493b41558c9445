// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

package audit

import (
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Store using in-memory storage. This is the
// default store; durable persistence is the host's concern (see
// BadgerStore for an optional durable implementation).
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
	maxLen int
}

// NewMemoryStore creates an in-memory audit store holding at most maxLen
// events. maxLen <= 0 defaults to 100000.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 100_000
	}
	return &MemoryStore{
		events: make([]Event, 0, min(maxLen, 1024)),
		maxLen: maxLen,
	}
}

// Record stores an event, keeping the slice in timestamp order. Query and
// Prune depend on that order, and events can arrive slightly out of order:
// timestamps are assigned before the store lock is taken, and callers may
// record with an explicit earlier timestamp. When the store is full, the
// oldest 10% of events are dropped to make room.
func (s *MemoryStore) Record(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) >= s.maxLen {
		removeCount := s.maxLen / 10
		if removeCount < 1 {
			removeCount = 1
		}
		s.events = append(s.events[:0], s.events[removeCount:]...)
	}

	// Arrivals are almost always newest, so this scan is O(1) in the
	// common case.
	i := len(s.events)
	for i > 0 && s.events[i-1].Timestamp.After(event.Timestamp) {
		i--
	}
	s.events = append(s.events, Event{})
	copy(s.events[i+1:], s.events[i:])
	s.events[i] = event
	return nil
}

// Query returns events matching the filter, most recent first.
func (s *MemoryStore) Query(filter Filter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	var results []Event
	for i := len(s.events) - 1; i >= 0; i-- {
		event := s.events[i]

		// Events are kept in time order; once we pass the lower bound
		// there is nothing older worth scanning.
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

	return results, nil
}

// Count returns the number of events matching the filter.
func (s *MemoryStore) Count(filter Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for i := range s.events {
		if matchesFilter(&s.events[i], &filter) {
			count++
		}
	}
	return count, nil
}

// Prune removes events older than the given time.
func (s *MemoryStore) Prune(olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Events are time-ordered, so the survivors are a suffix.
	cut := 0
	for cut < len(s.events) && s.events[cut].Timestamp.Before(olderThan) {
		cut++
	}
	if cut == 0 {
		return 0, nil
	}

	s.events = append(s.events[:0], s.events[cut:]...)
	return int64(cut), nil
}

// Len returns the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// matchesFilter returns true if the event matches all filter criteria.
func matchesFilter(event *Event, filter *Filter) bool {
	if len(filter.ThreatTypes) > 0 {
		found := false
		for _, t := range filter.ThreatTypes {
			if event.ThreatType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(filter.Severities) > 0 {
		found := false
		for _, sev := range filter.Severities {
			if event.Severity == sev {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if filter.SourceComponent != "" && event.SourceComponent != filter.SourceComponent {
		return false
	}
	if filter.Identifier != "" && event.Identifier != filter.Identifier {
		return false
	}

	if !filter.Since.IsZero() && event.Timestamp.Before(filter.Since) {
		return false
	}
	if !filter.Until.IsZero() && event.Timestamp.After(filter.Until) {
		return false
	}

	if filter.DescriptionContains != "" {
		if !strings.Contains(
			strings.ToLower(event.Description),
			strings.ToLower(filter.DescriptionContains),
		) {
			return false
		}
	}

	return true
}
