package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests move time by hand.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(limit int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := New(limit, window)
	l.now = clock.Now
	return l, clock
}

func TestBurstIsCappedAtLimit(t *testing.T) {
	l, _ := newTestLimiter(5, time.Second)

	allowed := 0
	for i := 0; i < 20; i++ {
		if l.Allow("1.2.3.4") {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed)
}

func TestWindowSlides(t *testing.T) {
	l, clock := newTestLimiter(5, time.Second)

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("ip"))
	}
	assert.False(t, l.Allow("ip"))

	clock.Advance(1100 * time.Millisecond)
	assert.True(t, l.Allow("ip"), "requests older than the window are pruned")
}

func TestDenialsAreNotRecorded(t *testing.T) {
	l, clock := newTestLimiter(3, time.Second)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("ip"))
	}
	// Denied requests must not extend the window.
	for i := 0; i < 10; i++ {
		assert.False(t, l.Allow("ip"))
	}
	assert.Equal(t, 3, l.Pending("ip"))

	clock.Advance(1100 * time.Millisecond)
	assert.True(t, l.Allow("ip"))
}

func TestPartialWindowExpiry(t *testing.T) {
	l, clock := newTestLimiter(2, time.Second)

	assert.True(t, l.Allow("ip"))
	clock.Advance(600 * time.Millisecond)
	assert.True(t, l.Allow("ip"))
	assert.False(t, l.Allow("ip"))

	// The first timestamp falls out; the second is still inside.
	clock.Advance(500 * time.Millisecond)
	assert.True(t, l.Allow("ip"))
	assert.False(t, l.Allow("ip"))
}

func TestClientsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(2, time.Second)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	assert.True(t, l.Allow("b"))
	assert.True(t, l.Allow("b"))
	assert.False(t, l.Allow("b"))
}

func TestReset(t *testing.T) {
	l, _ := newTestLimiter(1, time.Second)
	assert.True(t, l.Allow("ip"))
	assert.False(t, l.Allow("ip"))

	l.Reset()
	assert.True(t, l.Allow("ip"))
}

func TestConcurrentCallersNeverExceedLimit(t *testing.T) {
	l := New(10, time.Minute) // real clock; one minute window swallows test runtime

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
}
