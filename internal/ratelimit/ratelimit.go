// Package ratelimit implements a per-client sliding-window admission
// filter: at most `limit` requests within any trailing `window`.
//
// Each client (usually an IP address) gets an ordered log of request
// timestamps. On every admission check the log is pruned from the front,
// which makes the cost amortized O(1) per call and the memory O(limit)
// per active client.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a thread-safe sliding-window rate limiter keyed by client id.
//
// A single mutex guards the whole client map; the hold time is bounded by
// the per-client log length, which never exceeds limit at call start.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[string][]time.Time

	// now is the clock; swapped out in tests.
	now func() time.Time
}

// New creates a Limiter admitting at most limit requests per window.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		clients: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow decides whether a request from clientID is admitted.
//
// Steps:
//  1. Prune timestamps at or before now-window from the front of the log
//  2. If the log still holds limit entries, deny without recording now
//  3. Otherwise record now and admit
//
// The clock is assumed to never move backwards for the life of the
// limiter; if it does, the worst case is extra admissions in one window.
func (l *Limiter) Allow(clientID string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	log := l.clients[clientID]

	cutoff := now.Add(-l.window)
	pruned := 0
	for pruned < len(log) && !log[pruned].After(cutoff) {
		pruned++
	}
	log = log[pruned:]

	if len(log) >= l.limit {
		l.clients[clientID] = log
		return false
	}

	l.clients[clientID] = append(log, now)
	return true
}

// Pending returns how many timestamps are currently recorded for clientID,
// including ones that would be pruned on the next Allow. Introspection
// only.
func (l *Limiter) Pending(clientID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients[clientID])
}

// Reset drops all recorded state. For tests.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clients = make(map[string][]time.Time)
}
