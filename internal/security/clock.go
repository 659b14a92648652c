package security

import (
	"sync"
	"time"
)

// Clock abstracts time so windows can be tested deterministically
type Clock interface {
	Now() time.Time
}

// SystemClock uses the system time
type SystemClock struct{}

// Now returns the current system time
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock returns a settable time (for testing)
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixedClock creates a clock stopped at t
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

// Now returns the fixed time
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Set moves the clock to t
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
