// Package counter maintains per-path request hit counts for the file
// server, with explicitly selectable concurrency behavior.
//
// The counter exists in five modes. Two of them (race, threadsafe) differ
// only in whether the read-modify-write on the count map is guarded by a
// mutex; race mode keeps a small artificial delay between the read and the
// write so that concurrent increments reliably trample each other. That
// lost-update behavior is the whole point of the mode: it makes the race
// observable from a test instead of a matter of luck.
package counter

import (
	"fmt"
	"sync"
	"time"
)

// Mode selects how the server admits requests and maintains counts.
type Mode string

const (
	// ModeSingle handles requests serially and keeps no counts.
	ModeSingle Mode = "single"
	// ModeMulti handles requests concurrently and keeps no counts.
	ModeMulti Mode = "multi"
	// ModeRace counts without any locking, with an artificial delay
	// between read and write. Demonstrates lost updates.
	ModeRace Mode = "race"
	// ModeThreadsafe counts under a mutex covering the whole map.
	ModeThreadsafe Mode = "threadsafe"
	// ModeRateLimit behaves like ModeThreadsafe and additionally puts the
	// rate limiter in front of every request.
	ModeRateLimit Mode = "ratelimit"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSingle, ModeMulti, ModeRace, ModeThreadsafe, ModeRateLimit:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown server mode %q (want single, multi, race, threadsafe or ratelimit)", s)
}

// Counts reports whether this mode maintains hit counts at all.
func (m Mode) Counts() bool {
	return m == ModeRace || m == ModeThreadsafe || m == ModeRateLimit
}

// Serial reports whether requests must be admitted one at a time.
func (m Mode) Serial() bool {
	return m == ModeSingle
}

// RateLimited reports whether the front-door rate limiter applies.
func (m Mode) RateLimited() bool {
	return m == ModeRateLimit
}

// updateDelay sits between the read and the write of an increment. In
// race mode it widens the window in which another goroutine can read the
// same stale count; in the safe modes it stays inside the critical
// section, stretching lock hold time without affecting correctness.
const updateDelay = time.Millisecond

// Counter tracks hit counts per canonical request path (directories end
// with '/', files do not).
type Counter struct {
	mode   Mode
	mu     sync.Mutex
	counts map[string]int
}

// New creates a Counter operating in the given mode.
func New(mode Mode) *Counter {
	return &Counter{
		mode:   mode,
		counts: make(map[string]int),
	}
}

// Mode returns the counter's operating mode.
func (c *Counter) Mode() Mode {
	return c.mode
}

// Increment bumps the count for path. In modes that keep no counts it is
// a no-op.
func (c *Counter) Increment(path string) {
	switch {
	case !c.mode.Counts():
		return
	case c.mode == ModeRace:
		// Deliberately unguarded read-modify-write. Two concurrent calls
		// read the same value, both add one, and one update is lost.
		n := c.counts[path]
		time.Sleep(updateDelay)
		c.counts[path] = n + 1
	default:
		c.mu.Lock()
		n := c.counts[path]
		time.Sleep(updateDelay)
		c.counts[path] = n + 1
		c.mu.Unlock()
	}
}

// Get returns the current count for path.
func (c *Counter) Get(path string) int {
	if !c.mode.Counts() {
		return 0
	}
	if c.mode == ModeRace {
		return c.counts[path]
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[path]
}

// Snapshot returns a detached copy of all counts.
func (c *Counter) Snapshot() map[string]int {
	if c.mode == ModeRace {
		out := make(map[string]int, len(c.counts))
		for k, v := range c.counts {
			out[k] = v
		}
		return out
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}
