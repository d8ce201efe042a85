package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/engramgo/codec"
	"github.com/hupe1980/engramgo/coordinate"
	"github.com/hupe1980/engramgo/model"
)

func testState() *snapshotState {
	vec := coordinate.Vector{0.1, 0.2}
	rec := &model.MemoryRecord{
		ID:        1,
		Text:      "snapshot record",
		Summary:   "snapshot record",
		Vector:    vec,
		Key:       coordinate.Encode(vec),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	rec.Links.Add(model.Link{TargetID: 2, Kind: model.LinkSuccession, Strength: 0.9})
	return &snapshotState{NextID: 5, Records: []*model.MemoryRecord{rec}}
}

func TestSnapshotRoundTrip(t *testing.T) {
	for _, comp := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(comp.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "test.snapshot")
			state := testState()

			require.NoError(t, writeSnapshot(path, codec.Default, comp, state))

			got, err := readSnapshot(path)
			require.NoError(t, err)
			assert.Equal(t, uint64(5), got.NextID)
			require.Len(t, got.Records, 1)
			assert.Equal(t, state.Records[0].Text, got.Records[0].Text)
			assert.Equal(t, state.Records[0].Key, got.Records[0].Key)
			assert.Equal(t, 1, got.Records[0].Links.Total)
		})
	}
}

func TestSnapshotCodecRecordedInHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.snapshot")

	// Written with the stdlib codec; readable without knowing which.
	require.NoError(t, writeSnapshot(path, codec.JSON{}, CompressionNone, testState()))

	got, err := readSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got.NextID)
}

func TestSnapshotChecksumMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.snapshot")
	require.NoError(t, writeSnapshot(path, codec.Default, CompressionNone, testState()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-10] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err = readSnapshot(path)
	assert.Error(t, err)
}

func TestSnapshotMissingFile(t *testing.T) {
	_, err := readSnapshot(filepath.Join(t.TempDir(), "missing.snapshot"))
	assert.True(t, os.IsNotExist(err))
}

func TestSnapshotBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.snapshot")
	require.NoError(t, os.WriteFile(path, []byte("XXXXsomething"), 0o600))

	_, err := readSnapshot(path)
	assert.Error(t, err)
}
