package engramgo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/engramgo/coordinate"
	"github.com/hupe1980/engramgo/metadata"
	"github.com/hupe1980/engramgo/testutil"
)

func openTestStore(t *testing.T, optFns ...Option) *EngramStore {
	t.Helper()
	es, err := Open(t.TempDir(), optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { es.Close() })
	return es
}

func scenarioVectorizer() *testutil.StaticVectorizer {
	return testutil.NewStaticVectorizer(map[string]coordinate.Vector{
		"alpha": testutil.Vec(0),
		"beta":  testutil.Vec(0.1),
		"gamma": testutil.Vec(0.2),
		"delta": testutil.Vec(0.9),
	})
}

func TestStoreAndRetrieve(t *testing.T) {
	ctx := context.Background()
	es := openTestStore(t, WithVectorizer(scenarioVectorizer()))

	rec, err := es.Store(ctx, "alpha", metadata.Metadata{"topic": "go"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.ID)
	assert.Equal(t, "alpha", rec.Summary)

	got, err := es.RetrieveByCoordinates(testutil.Vec(0))
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "go", got.Metadata["topic"])

	byKey, err := es.RetrieveByKey(rec.Key)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, byKey.ID)

	byID, err := es.GetByID(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha", byID.Text)
}

func TestStoreVectorizationFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	es := openTestStore(t, WithVectorizer(testutil.FailingVectorizer{
		Err: errors.New("model unavailable"),
	}))

	_, err := es.Store(ctx, "anything", nil)

	var verr *VectorizationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, es.Stats().Records)
	assert.Equal(t, 0, es.Stats().CacheLen)
}

func TestNotFoundTranslation(t *testing.T) {
	es := openTestStore(t)

	_, err := es.RetrieveByCoordinates(testutil.Vec(0.7))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = es.GetByID(42)
	assert.ErrorIs(t, err, ErrNotFound)

	err = es.Delete(context.Background(), testutil.Vec(0.7))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchTextAndSimilar(t *testing.T) {
	ctx := context.Background()
	es := openTestStore(t, WithVectorizer(scenarioVectorizer()))

	for _, text := range []string{"alpha", "beta", "delta"} {
		_, err := es.Store(ctx, text, nil)
		require.NoError(t, err)
	}

	results, err := es.SearchText(ctx, "alpha", 2, 0, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].Record.Text)
	assert.Equal(t, "beta", results[1].Record.Text)

	nearest, err := es.SearchNearest(ctx, testutil.Vec(0.85), 1)
	require.NoError(t, err)
	require.Len(t, nearest, 1)
	assert.Equal(t, "delta", nearest[0].Record.Text)

	matches, err := es.SearchContent(ctx, "BET", 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "beta", matches[0].Text)
}

func TestLinkLifecycle(t *testing.T) {
	ctx := context.Background()
	es := openTestStore(t,
		WithVectorizer(scenarioVectorizer()),
		WithRadialThreshold(0.3),
		WithMaxRadialLinks(2),
		WithCacheCapacity(3),
		WithBatchSize(2),
	)

	a, err := es.Store(ctx, "alpha", nil)
	require.NoError(t, err)
	_, err = es.Store(ctx, "beta", nil)
	require.NoError(t, err)

	// Second contributing store trips the batch flush.
	g, err := es.Store(ctx, "gamma", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Links.Total)
	assert.Equal(t, 0, es.Stats().PendingTargets)

	linked, err := es.LinkedMemories(a.Key, "", 0)
	require.NoError(t, err)
	assert.Len(t, linked, 2)
}

func TestBulkStore(t *testing.T) {
	ctx := context.Background()
	es := openTestStore(t, WithVectorizer(scenarioVectorizer()))

	results, err := es.BulkStore(ctx, []BulkItem{
		{Text: "alpha"},
		{Text: "unknown text"}, // not in the vectorizer table
		{Text: "beta"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.NoError(t, results[0].Err)
	require.NoError(t, results[2].Err)
	var verr *VectorizationError
	assert.ErrorAs(t, results[1].Err, &verr)

	// Succession follows input order across the failed item.
	require.Len(t, results[2].Record.Links.Succession, 1)
	assert.Equal(t, results[0].Record.ID, results[2].Record.Links.Succession[0].TargetID)
	assert.Equal(t, 2, es.Stats().Records)
}

func TestModeSwitching(t *testing.T) {
	ctx := context.Background()
	es := openTestStore(t, WithVectorizer(scenarioVectorizer()), WithBatchSize(100))

	assert.Equal(t, Bulk, es.Mode().Mode)
	assert.False(t, es.Mode().SyncWrites)

	a, err := es.Store(ctx, "alpha", nil)
	require.NoError(t, err)
	_, err = es.Store(ctx, "beta", nil)
	require.NoError(t, err)

	require.NoError(t, es.SwitchToDurable(ctx))
	assert.Equal(t, Durable, es.Mode().Mode)
	assert.True(t, es.Mode().SyncWrites)

	// The switch drained the queue.
	got, err := es.RetrieveByKey(a.Key)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Links.Total)

	require.NoError(t, es.SwitchToBulk(ctx))
	assert.Equal(t, Bulk, es.Mode().Mode)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	es, err := Open(dir, WithVectorizer(scenarioVectorizer()))
	require.NoError(t, err)

	rec, err := es.Store(ctx, "alpha", metadata.Metadata{"topic": "go"})
	require.NoError(t, err)
	require.NoError(t, es.Close())

	es2, err := Open(dir, WithVectorizer(scenarioVectorizer()))
	require.NoError(t, err)
	defer es2.Close()

	got, err := es2.RetrieveByKey(rec.Key)
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Text)

	results, err := es2.SearchSimilar(ctx, testutil.Vec(0), 1, 0, metadata.Filter{"topic": "go"})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestClosedStore(t *testing.T) {
	es, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, es.Close())

	_, err = es.Store(context.Background(), "text", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMetricsCollection(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}
	es := openTestStore(t,
		WithVectorizer(scenarioVectorizer()),
		WithMetricsCollector(metrics),
	)

	_, err := es.Store(ctx, "alpha", nil)
	require.NoError(t, err)
	_, err = es.SearchSimilar(ctx, testutil.Vec(0), 1, 0, nil)
	require.NoError(t, err)
	_, err = es.Store(ctx, "not registered", nil)
	require.Error(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(2), stats.StoreCount)
	assert.Equal(t, int64(1), stats.StoreErrors)
	assert.Equal(t, int64(1), stats.SearchCount)
}
