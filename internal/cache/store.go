// Package cache implements Vesper's query-keyed mirror of remote reads.
//
// # Overview
//
// The cache holds the last-known value for each query key together with a
// staleness flag and a generation counter. Reads never touch the network;
// refetching stale entries is the caller's job (the planner session does it
// lazily on the next read). Writes replace the whole value at a key via a
// pure projector function and return a rollback snapshot, which is what the
// mutation coordinator needs to run the optimistic-write protocol.
//
// # Generations
//
// Every state change to a key - optimistic write, rollback, refetch or
// invalidation - bumps the key's generation counter. The counter is
// monotonically non-decreasing and is the sole mechanism for detecting that
// two in-flight mutations interleaved on the same key. It detects
// interference rather than preventing it: mutations are never blocked or
// cancelled.
//
// # Value ownership
//
// Projectors must be pure and must return a fresh value rather than mutating
// the old one in place; callers must treat values returned from Read as
// immutable. All mutation of a key goes through Write, Restore, Invalidate
// or Remove.
package cache

import "sync"

// Entry is the read-side view of one cached key.
type Entry struct {
	Value      any    // Last-known value: a single entity or a collection
	Stale      bool   // True once the entry has been invalidated
	Generation uint64 // Bumped on every write to this key
}

// Snapshot captures a key's state before an optimistic write, for rollback.
// Exists is false when the key had no entry at snapshot time; restoring such
// a snapshot removes the entry again.
type Snapshot struct {
	Value      any
	Stale      bool
	Exists     bool
	Generation uint64
}

// Projector maps a key's old value to its new value. The old value is nil
// when the entry is absent or empty. Projectors must not mutate old.
type Projector func(old any) any

type entry struct {
	key        Key
	value      any
	stale      bool
	generation uint64
}

// Store is the in-memory query cache. It is an owned object with an explicit
// lifecycle - created at session start, torn down (via Remove of the user
// scope) on sign-out - never a package-level singleton.
//
// Store is safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	entries   map[string]*entry
	suspended map[string]int // key -> active refetch suspensions
}

// NewStore creates an empty cache store.
func NewStore() *Store {
	return &Store{
		entries:   make(map[string]*entry),
		suspended: make(map[string]int),
	}
}

// Read returns the current entry for a key. The boolean is false when the
// key has never been written. Read never blocks on the network and never
// modifies the entry.
func (s *Store) Read(key Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key.String()]
	if !ok {
		return Entry{}, false
	}

	return Entry{Value: e.value, Stale: e.stale, Generation: e.generation}, true
}

// Write applies a pure projector to the entry's value, creating the entry if
// absent. The whole value is replaced with the projector's result, the
// generation counter is bumped, and the staleness flag is cleared (a written
// value is current until something invalidates it).
//
// Returns the new generation and a snapshot of the prior state, which the
// mutation coordinator records for rollback. The snapshot-and-write pair is
// atomic: no other write can interleave between them.
func (s *Store) Write(key Key, project Projector) (uint64, Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := key.String()
	e, ok := s.entries[id]
	if !ok {
		e = &entry{key: key}
		s.entries[id] = e
	}

	snap := Snapshot{
		Value:      e.value,
		Stale:      e.stale,
		Exists:     ok,
		Generation: e.generation,
	}

	e.value = project(e.value)
	e.stale = false
	e.generation++

	return e.generation, snap
}

// Restore reinstates a rollback snapshot verbatim. If the snapshot recorded
// "no prior entry", the entry is removed. Restoring still bumps the
// generation counter: generations are monotonic even across rollbacks.
func (s *Store) Restore(key Key, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := key.String()
	e, ok := s.entries[id]

	if !snap.Exists {
		delete(s.entries, id)
		return
	}

	if !ok {
		e = &entry{key: key}
		s.entries[id] = e
	}

	e.value = snap.Value
	e.stale = snap.Stale
	e.generation++
}

// RestoreIf reinstates a rollback snapshot only when the key's generation
// still equals gen, and reports whether it did. The check-and-restore pair is
// atomic, the mirror of Write's snapshot-and-project pair: without it a
// mutation on another goroutine could apply its optimistic write between the
// caller's generation check and the restore, and the restore would stomp the
// newer state.
//
// Returns false, leaving the entry untouched, when the entry is missing or
// another write has bumped the generation since gen was observed.
func (s *Store) RestoreIf(key Key, snap Snapshot, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := key.String()
	e, ok := s.entries[id]
	if !ok || e.generation != gen {
		return false
	}

	if !snap.Exists {
		delete(s.entries, id)
		return true
	}

	e.value = snap.Value
	e.stale = snap.Stale
	e.generation++
	return true
}

// Invalidate marks every entry matching the key or prefix as stale. Values
// are left untouched; the next read of a stale entry triggers a refetch.
// Invalidation bumps the generation counter of each entry it marks, so an
// in-flight mutation whose key gets invalidated underneath it will fail its
// generation check and re-derive from the store instead of restoring a
// snapshot over the invalidation. Returns the number of entries marked.
func (s *Store) Invalidate(prefix Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.entries {
		if e.key.HasPrefix(prefix) && !e.stale {
			e.stale = true
			e.generation++
			n++
		}
	}
	return n
}

// Remove evicts every entry matching the key or prefix. Used on sign-out
// (user scope) and on confirmed entity deletion. Returns the number of
// entries evicted.
func (s *Store) Remove(prefix Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, e := range s.entries {
		if e.key.HasPrefix(prefix) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

// SuspendRefetch pauses background refetches for a key while an optimistic
// mutation takes its snapshot and applies. Suspensions are counted, so
// overlapping mutations on one key compose. The returned resume function is
// idempotent.
//
// Suspension only pauses new refetches; it does not abort one already in
// flight.
func (s *Store) SuspendRefetch(key Key) (resume func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := key.String()
	s.suspended[id]++

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			s.suspended[id]--
			if s.suspended[id] <= 0 {
				delete(s.suspended, id)
			}
		})
	}
}

// RefetchSuspended reports whether refetching the key is currently paused.
func (s *Store) RefetchSuspended(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.suspended[key.String()] > 0
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}
