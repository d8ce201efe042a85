package resource

import (
	"context"
	"io"
)

// ThrottledReader wraps r so every read consumes I/O budget from the
// controller before returning data.
func (c *Controller) ThrottledReader(ctx context.Context, r io.Reader) io.Reader {
	if c.limiter == nil {
		return r
	}
	return &throttledReader{ctx: ctx, ctrl: c, r: r}
}

type throttledReader struct {
	ctx  context.Context
	ctrl *Controller
	r    io.Reader
}

func (t *throttledReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		if werr := t.ctrl.WaitIO(t.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
