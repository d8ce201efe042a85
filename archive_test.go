package engramgo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/engramgo/blobstore"
	"github.com/hupe1980/engramgo/resource"
)

func TestArchiveSnapshot(t *testing.T) {
	ctx := context.Background()
	archive := blobstore.NewMemoryStore()

	es := openTestStore(t,
		WithVectorizer(scenarioVectorizer()),
		WithArchive(archive, "archives"),
		WithResourceController(resource.NewController(resource.Options{
			MaxBackgroundTasks: 2,
			IOBytesPerSecond:   1 << 20,
		})),
	)

	_, err := es.Store(ctx, "alpha", nil)
	require.NoError(t, err)

	require.NoError(t, es.ArchiveSnapshot(ctx, "weekly.snapshot"))

	names, err := es.ListArchives(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"archives/weekly.snapshot"}, names)

	r, size, err := archive.Open(ctx, "archives/weekly.snapshot")
	require.NoError(t, err)
	defer r.Close()
	assert.Greater(t, size, int64(0))
}

func TestArchiveWithoutBackend(t *testing.T) {
	es := openTestStore(t)

	err := es.ArchiveSnapshot(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoArchive)

	_, err = es.ListArchives(context.Background())
	assert.ErrorIs(t, err, ErrNoArchive)
}
