package blobstore

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	data := "archive payload"
	require.NoError(t, store.Put(ctx, "archives/a.snapshot", strings.NewReader(data), int64(len(data))))

	r, size, err := store.Open(ctx, "archives/a.snapshot")
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, int64(len(data)), size)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, string(got))
}

func TestLocalStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "a", strings.NewReader("one"), 3))
	require.NoError(t, store.Put(ctx, "a", strings.NewReader("two"), 3))

	r, _, err := store.Open(ctx, "a")
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))
}

func TestLocalStoreNotFound(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Open(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "a", strings.NewReader("x"), 1))
	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "a")) // already gone

	_, _, err = store.Open(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreList(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"archives/b", "archives/a", "other/c"} {
		require.NoError(t, store.Put(ctx, name, strings.NewReader("x"), 1))
	}

	names, err := store.List(ctx, "archives/")
	require.NoError(t, err)
	assert.Equal(t, []string{"archives/a", "archives/b"}, names)
}
