// Package resource bounds the background work the store performs: a weighted
// semaphore caps concurrent background tasks (archival uploads, bulk
// vectorization) and a token-bucket limiter throttles archive I/O bandwidth.
package resource

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Options configures a Controller.
type Options struct {
	// MaxBackgroundTasks caps concurrently running background tasks.
	// Zero or negative means 4.
	MaxBackgroundTasks int64

	// IOBytesPerSecond throttles archive reads and writes.
	// Zero or negative means unlimited.
	IOBytesPerSecond int
}

// Controller enforces the configured limits. The zero value is not usable;
// use NewController.
type Controller struct {
	slots   *semaphore.Weighted
	limiter *rate.Limiter
}

// NewController creates a Controller from opts.
func NewController(opts Options) *Controller {
	if opts.MaxBackgroundTasks <= 0 {
		opts.MaxBackgroundTasks = 4
	}
	c := &Controller{
		slots: semaphore.NewWeighted(opts.MaxBackgroundTasks),
	}
	if opts.IOBytesPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.IOBytesPerSecond), opts.IOBytesPerSecond)
	}
	return c
}

// Acquire blocks until a background task slot is available or ctx is done.
func (c *Controller) Acquire(ctx context.Context) error {
	return c.slots.Acquire(ctx, 1)
}

// Release returns a background task slot.
func (c *Controller) Release() {
	c.slots.Release(1)
}

// WaitIO blocks until n bytes of archive I/O budget are available.
// A nil limiter (unlimited) returns immediately.
func (c *Controller) WaitIO(ctx context.Context, n int) error {
	if c.limiter == nil || n <= 0 {
		return nil
	}
	burst := c.limiter.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := c.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
