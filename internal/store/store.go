// Package store contains the in-memory storage engine shared by the leader
// and follower nodes of the replicated key-value system.
//
// This store:
//   - Keeps all data in memory (fast reads/writes, no durability)
//   - Tracks a global version that advances on local Set and Delete and
//     follows the highest applied version on replicated writes
//   - Tracks a per-key version that orders replicated writes
//   - Keeps an append-only in-memory write log for debugging
//
// Big idea:
//
//  1. Per-key versions
//     The leader bumps a counter for each key on every write and ships the
//     counter together with the value. A replica installs an incoming
//     (value, version) pair only when the version is strictly greater than
//     what it already holds for that key. Replication messages may arrive
//     in any order; stale ones are simply discarded, so every replica
//     converges to the highest version it has ever seen.
//
//  2. Global version
//     A per-node monotonic counter bumped by 1 on every Set and successful
//     Delete, and raised to max(global, version) when ApplyWrite installs
//     a replicated write. It is informational (health checks, stats, divergence debugging); ordering
//     correctness rests entirely on the per-key versions.
//
//  3. Concurrency
//     A single sync.Mutex serializes readers and writers. Callers that
//     already hold the lock use the unexported *Locked variants, which is
//     how nested introspection works without a reentrant lock.
package store

import (
	"fmt"
	"sync"
	"time"
)

// WriteRecord is one entry of the in-memory write log.
//
// The log exists purely for observability: it is never replayed, never
// persisted, and never consulted by the replication protocol.
type WriteRecord struct {
	Version    int64     `json:"version"`     // global version after the write
	KeyVersion int64     `json:"key_version"` // per-key version after the write
	Key        string    `json:"key"`
	Value      any       `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}

// Store is the versioned key-value map.
//
// It is safe for concurrent use.
//
// Fields:
//   - mu: single mutex serializing every operation (no reader/writer split)
//   - data: in-memory key-value storage; values are opaque JSON payloads
//   - keyVersions: replication ordering token per key
//   - version: global monotonic version of this replica
//   - writeLog: append-only record of local writes, debugging only
type Store struct {
	mu          sync.Mutex
	data        map[string]any
	keyVersions map[string]int64
	version     int64
	writeLog    []WriteRecord
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		data:        make(map[string]any),
		keyVersions: make(map[string]int64),
	}
}

// ─── Public API ───────────────────────────────────────────────────────────────

// Get returns the value for a key, or false when the key is absent.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Set stores or updates a key and returns the new per-key version.
//
// Steps:
//  1. Bump the per-key version for key by 1
//  2. Bump the global version by 1
//  3. Install the value and append to the write log
//
// The returned per-key version is exactly what the leader must ship to
// followers: it is the ordering token of this write.
func (s *Store) Set(key string, value any) (int64, error) {
	if key == "" {
		return 0, fmt.Errorf("key cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.keyVersions[key]++
	keyVersion := s.keyVersions[key]
	s.version++

	s.data[key] = value
	s.writeLog = append(s.writeLog, WriteRecord{
		Version:    s.version,
		KeyVersion: keyVersion,
		Key:        key,
		Value:      value,
		Timestamp:  time.Now().UTC(),
	})
	return keyVersion, nil
}

// ApplyWrite applies a replicated write received from the leader.
//
// The incoming version is the leader's per-key version for this write. The
// value is installed only when that version is strictly greater than the
// version currently held for the key; an older version is skipped and the
// state is left untouched.
//
// A skipped write is NOT an error. Replication tasks complete in arbitrary
// order, so a replica routinely sees version 3 before version 2; discarding
// the stale arrival is precisely how all replicas converge on the newest
// value. The boolean reports whether the value was installed.
func (s *Store) ApplyWrite(key string, value any, version int64) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("key cannot be empty")
	}
	if version <= 0 {
		return false, fmt.Errorf("version must be positive, got %d", version)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if version <= s.keyVersions[key] {
		return false, nil // stale arrival, already superseded
	}

	s.data[key] = value
	s.keyVersions[key] = version
	if version > s.version {
		s.version = version
	}
	return true, nil
}

// Delete removes a key and reports whether it existed.
//
// Deletes are local-only: they are never replicated, so a delete on the
// leader leaves the key alive on every follower until a later Set to the
// same key supersedes it.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return false
	}
	delete(s.data, key)
	s.version++
	return true
}

// GetAll returns a detached copy of the full mapping.
func (s *Store) GetAll() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]any, len(s.data))
	for k, v := range s.data {
		snapshot[k] = v
	}
	return snapshot
}

// Version returns the global version of this replica.
func (s *Store) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// KeyVersion returns the per-key version for key (0 when never written).
func (s *Store) KeyVersion(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyVersions[key]
}

// GetWithVersion returns the value and per-key version together, read under
// one lock acquisition so the pair is never torn.
func (s *Store) GetWithVersion(key string) (any, int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.data[key]
	if !ok {
		return nil, 0, false
	}
	return v, s.keyVersions[key], true
}

// Size returns the number of stored keys.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sizeLocked()
}

// Summary returns the size and global version in one lock acquisition, so
// health and stats endpoints never report a torn pair.
func (s *Store) Summary() (size int, version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sizeLocked(), s.versionLocked()
}

// Keys returns all keys in the store.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// WriteLog returns a copy of the write log.
func (s *Store) WriteLog() []WriteRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := make([]WriteRecord, len(s.writeLog))
	copy(log, s.writeLog)
	return log
}

// Clear wipes all data, versions and the write log. For tests and the
// administrative /clear endpoint.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]any)
	s.keyVersions = make(map[string]int64)
	s.version = 0
	s.writeLog = nil
}

// ─── Lock-free inner forms ────────────────────────────────────────────────────
//
// sync.Mutex is not reentrant. Code in this package that already holds
// s.mu uses these instead of the public methods.

func (s *Store) sizeLocked() int {
	return len(s.data)
}

func (s *Store) versionLocked() int64 {
	return s.version
}
