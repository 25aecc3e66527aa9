package application

import (
	"context"
	"time"
)

// Delay simulates the round trip of a remote call. It returns the context
// error when ctx ends first.
type Delay func(ctx context.Context) error

// FixedDelay waits for d on every call. A non-positive d behaves like NoDelay.
func FixedDelay(d time.Duration) Delay {
	if d <= 0 {
		return NoDelay
	}
	return func(ctx context.Context) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}

// NoDelay returns immediately unless ctx is already done.
func NoDelay(ctx context.Context) error {
	return ctx.Err()
}

func defaultDelay(d Delay) Delay {
	if d != nil {
		return d
	}
	return NoDelay
}
