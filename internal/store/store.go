// Package store holds the client's single cached event collection.
//
// The collection is only ever replaced as a whole. List fetches that may
// overlap take a Ticket before the request goes out; when the response
// arrives, Apply drops it if a newer fetch (or a direct ReplaceAll) has
// already been applied, so the last-issued request wins.
//
// A failed fetch does not block older fetches still in flight: their data is
// newer than what the store holds, so it is applied. The error recorded by
// the newer failure stays until a fetch issued after it succeeds.
package store

import (
	"sync"

	"eventhub/internal/model"
)

// Ticket identifies one list fetch.
type Ticket uint64

// Store is safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	events  []model.Event
	loading bool
	errMsg  string

	// issued is the last ticket handed out, applied the newest ticket whose
	// result is in events. version counts every replacement.
	issued  Ticket
	applied Ticket
	failed  Ticket
	version uint64
	pending int
}

// Snapshot is a consistent view of the store taken under one lock.
type Snapshot struct {
	Events  []model.Event
	Loading bool
	Err     string
	Version uint64
}

func New() *Store {
	return &Store{events: []model.Event{}}
}

// ReplaceAll swaps in events. Fetches issued before this call can no
// longer overwrite the result.
func (s *Store) ReplaceAll(events []model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(events)
	s.applied = s.issued
}

func (s *Store) replaceLocked(events []model.Event) {
	cp := make([]model.Event, len(events))
	copy(cp, events)
	s.events = cp
	s.version++
}

// All returns a copy of the current collection in server order.
func (s *Store) All() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]model.Event, len(s.events))
	copy(cp, s.events)
	return cp
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *Store) SetLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// SetError records a user-facing failure message; "" clears it.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
}

func (s *Store) ClearError() { s.SetError("") }

func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// Begin issues a ticket for a new list fetch and marks the store loading.
func (s *Store) Begin() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	s.pending++
	s.loading = true
	return s.issued
}

// Apply replaces the collection with the result of fetch t unless a newer
// result has already been applied. It reports whether events were used.
func (s *Store) Apply(t Ticket, events []model.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleLocked()
	if t <= s.applied {
		return false
	}
	s.replaceLocked(events)
	s.applied = t
	if t > s.failed {
		s.errMsg = ""
	}
	return true
}

// Fail records msg for fetch t unless a newer result has already been
// applied. The collection itself is left as it was.
func (s *Store) Fail(t Ticket, msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleLocked()
	if t <= s.applied {
		return false
	}
	if t > s.failed {
		s.failed = t
	}
	s.errMsg = msg
	return true
}

func (s *Store) settleLocked() {
	if s.pending > 0 {
		s.pending--
	}
	s.loading = s.pending > 0
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]model.Event, len(s.events))
	copy(cp, s.events)
	return Snapshot{
		Events:  cp,
		Loading: s.loading,
		Err:     s.errMsg,
		Version: s.version,
	}
}
