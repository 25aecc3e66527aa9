package testfixtures

import (
	"context"
	"sync"
	"time"

	"github.com/example/timecapsule/internal/application"
)

// Clock is a manual time source for store tests. Simulated round trips
// advance it instead of sleeping.
type Clock struct {
	mu         sync.Mutex
	current    time.Time
	roundTrips int
}

// NewClock returns a clock set to start, or to ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now returns the clock time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc returns Now for injection into store deps. A nil clock yields time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// InDays returns the instant n whole days after the clock time. Negative n
// yields a past date.
func (c *Clock) InDays(n int) time.Time {
	return c.Now().AddDate(0, 0, n)
}

// Latency returns a Delay that advances the clock by d on every call and
// counts the call. It fails with the context error once ctx is done.
func (c *Clock) Latency(d time.Duration) application.Delay {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.mu.Lock()
		c.current = c.current.Add(d)
		c.roundTrips++
		c.mu.Unlock()
		return nil
	}
}

// RoundTrips returns how many times a Latency delay has run.
func (c *Clock) RoundTrips() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roundTrips
}
