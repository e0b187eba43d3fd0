package analytics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"productsearch/internal/analytics"
	"productsearch/internal/store"
)

func TestRecordQuery_IncrementsCountersAndPopularity(t *testing.T) {
	kv := store.NewMemoryKV()
	rec := analytics.New(kv)

	require.NoError(t, rec.RecordQuery(context.Background(), "proj1", "ноутбук"))
	require.NoError(t, rec.RecordQuery(context.Background(), "proj1", "ноутбук"))
	require.NoError(t, rec.RecordQuery(context.Background(), "proj1", "телефон"))

	queries, _, err := rec.Snapshot(context.Background(), "proj1")
	require.NoError(t, err)
	require.Equal(t, int64(3), queries)

	popular, err := kv.ZRange(context.Background(), store.Keys{}.AnalyticsPopularQueries("proj1"))
	require.NoError(t, err)
	scores := map[string]float64{}
	for _, m := range popular {
		scores[m.Member] = m.Score
	}
	require.Equal(t, 2.0, scores["ноутбук"])
	require.Equal(t, 1.0, scores["телефон"])
}

func TestRecordClick_IncrementsCountersAndConvertingQuery(t *testing.T) {
	kv := store.NewMemoryKV()
	rec := analytics.New(kv)

	require.NoError(t, rec.RecordClick(context.Background(), "proj1", "p1", "ноутбук"))

	_, clicks, err := rec.Snapshot(context.Background(), "proj1")
	require.NoError(t, err)
	require.Equal(t, int64(1), clicks)

	converting, err := kv.ZRange(context.Background(), store.Keys{}.AnalyticsConvertingQueries("proj1"))
	require.NoError(t, err)
	require.Len(t, converting, 1)
	require.Equal(t, "ноутбук", converting[0].Member)

	popularProducts, err := kv.ZRange(context.Background(), store.Keys{}.AnalyticsPopularProducts("proj1"))
	require.NoError(t, err)
	require.Len(t, popularProducts, 1)
	require.Equal(t, "p1", popularProducts[0].Member)
}
