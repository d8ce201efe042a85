package resource

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	ctx := context.Background()
	c := NewController(Options{MaxBackgroundTasks: 1})

	require.NoError(t, c.Acquire(ctx))

	// Second acquire must block until release.
	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.Error(t, c.Acquire(blocked))

	c.Release()
	require.NoError(t, c.Acquire(ctx))
	c.Release()
}

func TestWaitIOUnlimited(t *testing.T) {
	c := NewController(Options{})
	assert.NoError(t, c.WaitIO(context.Background(), 1<<30))
}

func TestWaitIOLargerThanBurst(t *testing.T) {
	c := NewController(Options{IOBytesPerSecond: 1 << 20})

	// A request above the burst size is split into chunks rather than failing.
	assert.NoError(t, c.WaitIO(context.Background(), 1<<20+1024))
}

func TestThrottledReaderPassesData(t *testing.T) {
	ctx := context.Background()
	c := NewController(Options{IOBytesPerSecond: 1 << 20})

	r := c.ThrottledReader(ctx, strings.NewReader("throttled data"))
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "throttled data", string(got))
}

func TestThrottledReaderUnlimitedPassthrough(t *testing.T) {
	c := NewController(Options{})
	src := strings.NewReader("x")
	assert.Equal(t, io.Reader(src), c.ThrottledReader(context.Background(), src))
}
