package indexer_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"productsearch/internal/indexer"
	"productsearch/internal/project"
	"productsearch/internal/store"
)

func oldPrice(v float64) *float64 { return &v }

func sampleProducts() []project.Product {
	return []project.Product{
		{
			ID:       "p1",
			Name:     "Смартфон Samsung Galaxy",
			Brand:    "Samsung",
			Category: "Смартфоны",
			Price:    29990,
			OldPrice: oldPrice(34990),
			InStock:  true,
		},
		{
			ID:       "p2",
			Name:     "Наушники Sony",
			Brand:    "Sony",
			Category: "Аксессуары",
			Price:    4990,
			InStock:  true,
		},
		// duplicate ID: last occurrence should win with a different price.
		{
			ID:       "p1",
			Name:     "Смартфон Samsung Galaxy S24",
			Brand:    "Samsung",
			Category: "Смартфоны",
			Price:    27990,
			OldPrice: oldPrice(34990),
			InStock:  true,
		},
	}
}

func TestIndexProducts_DedupesLastOccurrenceWins(t *testing.T) {
	kv := store.NewMemoryKV()
	rel := store.NewMemoryRelational()
	ix := indexer.New(kv, rel, 3, nil)

	count, err := ix.IndexProducts(context.Background(), "proj1", sampleProducts())
	require.NoError(t, err)
	require.Equal(t, 2, count)

	raw, ok, err := kv.Get(context.Background(), store.Keys{}.Product("proj1", "p1"))
	require.NoError(t, err)
	require.True(t, ok)

	var stored project.Product
	require.NoError(t, json.Unmarshal(raw, &stored))
	require.Equal(t, "Смартфон Samsung Galaxy S24", stored.Name)
	require.Equal(t, 27990.0, stored.Price)
}

func TestIndexProducts_PopulatesInvertedAndNGramIndexes(t *testing.T) {
	kv := store.NewMemoryKV()
	rel := store.NewMemoryRelational()
	ix := indexer.New(kv, rel, 3, nil)

	_, err := ix.IndexProducts(context.Background(), "proj1", sampleProducts())
	require.NoError(t, err)

	postings, err := kv.ZRange(context.Background(), store.Keys{}.InvertedPosting("proj1", "samsung"))
	require.NoError(t, err)
	require.Len(t, postings, 1)
	require.Equal(t, "p1", postings[0].Member)
	require.Greater(t, postings[0].Score, 0.0)

	grams, err := kv.SMembers(context.Background(), store.Keys{}.NGramSet("proj1", "sam"))
	require.NoError(t, err)
	require.Contains(t, grams, "samsung")
}

func TestIndexProducts_BuildsSuggestionPrefixes(t *testing.T) {
	kv := store.NewMemoryKV()
	rel := store.NewMemoryRelational()
	ix := indexer.New(kv, rel, 3, nil)

	_, err := ix.IndexProducts(context.Background(), "proj1", sampleProducts())
	require.NoError(t, err)

	phrases, err := kv.ZRange(context.Background(), store.Keys{}.Suggest("proj1"))
	require.NoError(t, err)
	require.NotEmpty(t, phrases)

	var found bool
	for _, p := range phrases {
		if p.Member == "смартфон" {
			found = true
		}
	}
	require.True(t, found, "expected single-word prefix phrase from product name")
}

func TestIndexProducts_ReplacesPriorIndex(t *testing.T) {
	kv := store.NewMemoryKV()
	rel := store.NewMemoryRelational()
	ix := indexer.New(kv, rel, 3, nil)

	_, err := ix.IndexProducts(context.Background(), "proj1", sampleProducts())
	require.NoError(t, err)

	_, err = ix.IndexProducts(context.Background(), "proj1", []project.Product{
		{ID: "p3", Name: "Клавиатура", Brand: "Logitech", InStock: true},
	})
	require.NoError(t, err)

	_, ok, err := kv.Get(context.Background(), store.Keys{}.Product("proj1", "p1"))
	require.NoError(t, err)
	require.False(t, ok, "stale product from the prior generation must be gone")

	postings, err := kv.ZRange(context.Background(), store.Keys{}.InvertedPosting("proj1", "samsung"))
	require.NoError(t, err)
	require.Empty(t, postings)
}

func TestUpdateStockPrices_RecomputesDiscount(t *testing.T) {
	kv := store.NewMemoryKV()
	rel := store.NewMemoryRelational()
	ix := indexer.New(kv, rel, 3, nil)

	_, err := ix.IndexProducts(context.Background(), "proj1", sampleProducts())
	require.NoError(t, err)

	newPrice := 20990.0
	count, err := ix.UpdateStockPrices(context.Background(), "proj1", []indexer.StockPriceUpdate{
		{ProductID: "p1", Price: &newPrice},
	})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	raw, ok, err := kv.Get(context.Background(), store.Keys{}.Product("proj1", "p1"))
	require.NoError(t, err)
	require.True(t, ok)

	var stored project.Product
	require.NoError(t, json.Unmarshal(raw, &stored))
	require.Equal(t, newPrice, stored.Price)
	require.NotNil(t, stored.DiscountPercent)
	require.Equal(t, 40, *stored.DiscountPercent)
}

func TestUpdateStockPrices_HalvesScoresOnStockOut(t *testing.T) {
	kv := store.NewMemoryKV()
	rel := store.NewMemoryRelational()
	ix := indexer.New(kv, rel, 3, nil)

	_, err := ix.IndexProducts(context.Background(), "proj1", sampleProducts())
	require.NoError(t, err)

	before, err := kv.ZRange(context.Background(), store.Keys{}.InvertedPosting("proj1", "samsung"))
	require.NoError(t, err)
	require.Len(t, before, 1)
	beforeScore := before[0].Score

	outOfStock := false
	_, err = ix.UpdateStockPrices(context.Background(), "proj1", []indexer.StockPriceUpdate{
		{ProductID: "p1", InStock: &outOfStock},
	})
	require.NoError(t, err)

	after, err := kv.ZRange(context.Background(), store.Keys{}.InvertedPosting("proj1", "samsung"))
	require.NoError(t, err)
	require.Len(t, after, 1)
	require.InDelta(t, beforeScore*0.5, after[0].Score, 0.0001)
}

func TestUpdateStockPrices_RestoresScoresOnRestock(t *testing.T) {
	kv := store.NewMemoryKV()
	rel := store.NewMemoryRelational()
	ix := indexer.New(kv, rel, 3, nil)

	_, err := ix.IndexProducts(context.Background(), "proj1", sampleProducts())
	require.NoError(t, err)

	before, err := kv.ZRange(context.Background(), store.Keys{}.InvertedPosting("proj1", "samsung"))
	require.NoError(t, err)
	beforeScore := before[0].Score

	outOfStock := false
	_, err = ix.UpdateStockPrices(context.Background(), "proj1", []indexer.StockPriceUpdate{
		{ProductID: "p1", InStock: &outOfStock},
	})
	require.NoError(t, err)

	backInStock := true
	_, err = ix.UpdateStockPrices(context.Background(), "proj1", []indexer.StockPriceUpdate{
		{ProductID: "p1", InStock: &backInStock},
	})
	require.NoError(t, err)

	after, err := kv.ZRange(context.Background(), store.Keys{}.InvertedPosting("proj1", "samsung"))
	require.NoError(t, err)
	require.InDelta(t, beforeScore, after[0].Score, 0.0001)
}

func TestUpdateStockPrices_UnknownProductIsSkipped(t *testing.T) {
	kv := store.NewMemoryKV()
	rel := store.NewMemoryRelational()
	ix := indexer.New(kv, rel, 3, nil)

	_, err := ix.IndexProducts(context.Background(), "proj1", sampleProducts())
	require.NoError(t, err)

	count, err := ix.UpdateStockPrices(context.Background(), "proj1", []indexer.StockPriceUpdate{
		{ProductID: "does-not-exist", Price: oldPrice(1)},
	})
	require.NoError(t, err)
	require.Equal(t, 0, count)
}
