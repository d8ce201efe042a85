package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestWAL(t *testing.T, path string, opts Options) *WAL {
	t.Helper()
	w, err := Open(path, opts)
	require.NoError(t, err)
	return w
}

func collect(t *testing.T, w *WAL) []Entry {
	t.Helper()
	var entries []Entry
	require.NoError(t, w.Replay(func(e Entry) error {
		entries = append(entries, e)
		return nil
	}))
	return entries
}

func TestAppendAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w := openTestWAL(t, path, Options{})
	defer w.Close()

	seq1, err := w.Append(OpPut, "[0.100]", []byte(`{"id":1}`))
	require.NoError(t, err)
	seq2, err := w.Append(OpPut, "[0.200]", []byte(`{"id":2}`))
	require.NoError(t, err)
	_, err = w.Append(OpDelete, "[0.100]", nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), seq1)
	assert.Equal(t, uint64(2), seq2)

	entries := collect(t, w)
	require.Len(t, entries, 3)
	assert.Equal(t, OpPut, entries[0].Op)
	assert.Equal(t, "[0.100]", entries[0].Key)
	assert.Equal(t, []byte(`{"id":1}`), entries[0].Payload)
	assert.Equal(t, OpDelete, entries[2].Op)
	assert.Nil(t, entries[2].Payload)
}

func TestReplayAfterReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")

	w := openTestWAL(t, path, Options{})
	_, err := w.Append(OpPut, "k1", []byte("v1"))
	require.NoError(t, err)
	_, err = w.Append(OpPut, "k2", []byte("v2"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w = openTestWAL(t, path, Options{})
	defer w.Close()

	entries := collect(t, w)
	require.Len(t, entries, 2)
	assert.Equal(t, "k1", entries[0].Key)
	assert.Equal(t, "k2", entries[1].Key)

	// New appends continue the sequence.
	seq, err := w.Append(OpPut, "k3", []byte("v3"))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seq)
}

func TestAppendBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w := openTestWAL(t, path, Options{Mode: ModeSync})
	defer w.Close()

	err := w.AppendBatch([]Entry{
		{Op: OpPut, Key: "a", Payload: []byte("1")},
		{Op: OpPut, Key: "b", Payload: []byte("2")},
		{Op: OpPut, Key: "c", Payload: []byte("3")},
	})
	require.NoError(t, err)

	entries := collect(t, w)
	require.Len(t, entries, 3)
	assert.Equal(t, uint64(3), entries[2].Seq)
}

func TestTornTailTruncatedOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")

	w := openTestWAL(t, path, Options{Mode: ModeSync})
	_, err := w.Append(OpPut, "good", []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// Simulate a crash mid-append by appending garbage.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o600)
	require.NoError(t, err)
	_, err = f.Write([]byte{0x10, 0x00, 0x00, 0x00, 0xde, 0xad})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w = openTestWAL(t, path, Options{})
	defer w.Close()

	entries := collect(t, w)
	require.Len(t, entries, 1)
	assert.Equal(t, "good", entries[0].Key)

	// The torn tail is gone; appends land on a clean prefix.
	_, err = w.Append(OpPut, "after", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())

	entries = collect(t, w)
	require.Len(t, entries, 2)
	assert.Equal(t, "after", entries[1].Key)
}

func TestTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w := openTestWAL(t, path, Options{})
	defer w.Close()

	_, err := w.Append(OpPut, "k", []byte("v"))
	require.NoError(t, err)
	require.NoError(t, w.Truncate())

	assert.Empty(t, collect(t, w))
	assert.Equal(t, int64(headerSize), w.Size())

	// Sequence numbers restart after truncation.
	seq, err := w.Append(OpPut, "k2", []byte("v2"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
}

func TestSetMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w := openTestWAL(t, path, Options{})
	defer w.Close()

	assert.Equal(t, ModeBuffered, w.Mode())

	_, err := w.Append(OpPut, "buffered", []byte("v"))
	require.NoError(t, err)

	// Switching to sync flushes the buffered tail.
	require.NoError(t, w.SetMode(ModeSync))
	assert.Equal(t, ModeSync, w.Mode())

	_, err = w.Append(OpPut, "synced", []byte("v"))
	require.NoError(t, err)

	entries := collect(t, w)
	assert.Len(t, entries, 2)

	require.NoError(t, w.SetMode(ModeBuffered))
	assert.Equal(t, ModeBuffered, w.Mode())
}

func TestCompressionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")

	payload := []byte(`{"text":"a reasonably compressible payload payload payload payload"}`)

	w := openTestWAL(t, path, Options{Compress: true, Mode: ModeSync})
	_, err := w.Append(OpPut, "k", payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// The compression flag is recorded in the header, so reopening without
	// the option still decompresses correctly.
	w = openTestWAL(t, path, Options{})
	defer w.Close()

	entries := collect(t, w)
	require.Len(t, entries, 1)
	assert.Equal(t, payload, entries[0].Payload)
}

func TestClosedOperations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w := openTestWAL(t, path, Options{})
	require.NoError(t, w.Close())

	_, err := w.Append(OpPut, "k", nil)
	assert.Error(t, err)
	assert.Error(t, w.Sync())
	assert.Error(t, w.Truncate())
	assert.NoError(t, w.Close()) // idempotent
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "buffered", ModeBuffered.String())
	assert.Equal(t, "sync", ModeSync.String())
}
