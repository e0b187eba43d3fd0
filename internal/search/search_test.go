package search_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"productsearch/internal/indexer"
	"productsearch/internal/project"
	"productsearch/internal/search"
	"productsearch/internal/store"
)

func setupProject(t *testing.T, kv store.KV, products []project.Product) *project.Project {
	t.Helper()
	ix := indexer.New(kv, store.NewMemoryRelational(), 3, nil)
	_, err := ix.IndexProducts(context.Background(), "proj1", products)
	require.NoError(t, err)
	return &project.Project{ID: "proj1"}
}

func TestSearch_PrimaryRetrieval(t *testing.T) {
	kv := store.NewMemoryKV()
	proj := setupProject(t, kv, []project.Product{
		{ID: "p1", Name: "Смартфон Samsung Galaxy", InStock: true, Price: 29990},
		{ID: "p2", Name: "Чехол для телефона", InStock: true, Price: 990},
	})

	eng := search.New(kv, 3)
	res, err := eng.Search(context.Background(), proj, search.Request{Query: "samsung", Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	require.Equal(t, "p1", res.Items[0].ID)
}

func TestSearch_EmptyQueryReturnsEmptyResult(t *testing.T) {
	kv := store.NewMemoryKV()
	proj := setupProject(t, kv, []project.Product{{ID: "p1", Name: "Товар", InStock: true}})

	eng := search.New(kv, 3)
	res, err := eng.Search(context.Background(), proj, search.Request{Query: "   ", Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 0, res.Total)
	require.Empty(t, res.Items)
}

func TestSearch_LayoutFallbackRecoversWrongKeyboard(t *testing.T) {
	kv := store.NewMemoryKV()
	proj := setupProject(t, kv, []project.Product{
		{ID: "p1", Name: "Телефон", InStock: true, Price: 5000},
	})

	eng := search.New(kv, 3)
	// "ntktajy" typed in EN layout maps to the RU layout's "телефон".
	res, err := eng.Search(context.Background(), proj, search.Request{Query: "ntktajy", Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	require.Less(t, res.Items[0].Score, 3.0) // discounted by the 0.9 layout factor
}

func TestSearch_NGramFallbackForMisspelling(t *testing.T) {
	kv := store.NewMemoryKV()
	proj := setupProject(t, kv, []project.Product{
		{ID: "p1", Name: "Наушники беспроводные", InStock: true, Price: 3000},
	})

	eng := search.New(kv, 3)
	res, err := eng.Search(context.Background(), proj, search.Request{Query: "наушникки", Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
}

func TestSearch_FiltersByPriceAndStock(t *testing.T) {
	kv := store.NewMemoryKV()
	proj := setupProject(t, kv, []project.Product{
		{ID: "p1", Name: "Ноутбук Dell", InStock: true, Price: 50000},
		{ID: "p2", Name: "Ноутбук Acer", InStock: false, Price: 30000},
	})

	eng := search.New(kv, 3)
	inStock := true
	maxPrice := 40000.0
	res, err := eng.Search(context.Background(), proj, search.Request{
		Query: "ноутбук", Limit: 10,
		Filters: search.Filters{InStock: &inStock, MaxPrice: &maxPrice},
	})
	require.NoError(t, err)
	require.Equal(t, 0, res.Total) // Dell is in stock but over budget; Acer is within budget but out of stock.
}

func TestSearch_MinPriceAboveMaxPriceYieldsEmptyNotError(t *testing.T) {
	kv := store.NewMemoryKV()
	proj := setupProject(t, kv, []project.Product{
		{ID: "p1", Name: "Ноутбук Dell", InStock: true, Price: 50000},
	})

	eng := search.New(kv, 3)
	minPrice := 90000.0
	maxPrice := 10000.0
	res, err := eng.Search(context.Background(), proj, search.Request{
		Query: "ноутбук", Limit: 10,
		Filters: search.Filters{MinPrice: &minPrice, MaxPrice: &maxPrice},
	})
	require.NoError(t, err)
	require.Equal(t, 0, res.Total)
}

func TestSearch_SortByPrice(t *testing.T) {
	kv := store.NewMemoryKV()
	proj := setupProject(t, kv, []project.Product{
		{ID: "p1", Name: "Ноутбук Dell", InStock: true, Price: 50000},
		{ID: "p2", Name: "Ноутбук Acer", InStock: true, Price: 30000},
	})

	eng := search.New(kv, 3)
	res, err := eng.Search(context.Background(), proj, search.Request{Query: "ноутбук", Limit: 10, Sort: search.SortPriceAsc})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	require.Equal(t, "p2", res.Items[0].ID)
	require.Equal(t, "p1", res.Items[1].ID)
}

func TestSearch_Pagination(t *testing.T) {
	kv := store.NewMemoryKV()
	proj := setupProject(t, kv, []project.Product{
		{ID: "p1", Name: "Товар тест", InStock: true, Price: 100},
		{ID: "p2", Name: "Товар тест второй", InStock: true, Price: 200},
		{ID: "p3", Name: "Товар тест третий", InStock: true, Price: 300},
	})

	eng := search.New(kv, 3)
	res, err := eng.Search(context.Background(), proj, search.Request{Query: "товар", Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Equal(t, 3, res.Total)
	require.Len(t, res.Items, 1)
}

func TestSearch_RelatedItems(t *testing.T) {
	kv := store.NewMemoryKV()
	products := []project.Product{
		{ID: "p1", Name: "Apple iPhone", Brand: "Apple", InStock: true, Price: 1000},
	}
	for i := 0; i < 7; i++ {
		products = append(products, project.Product{
			ID: "apple-" + string(rune('a'+i)), Name: "Apple Product", Brand: "Apple", InStock: true, Price: 500,
		})
	}

	ix := indexer.New(kv, store.NewMemoryRelational(), 3, nil)
	_, err := ix.IndexProducts(context.Background(), "proj1", products)
	require.NoError(t, err)

	proj := &project.Project{ID: "proj1", SearchSettings: project.SearchSettings{
		RelatedProductsField: "brand",
		RelatedProductsLimit: 3,
	}}

	eng := search.New(kv, 3)
	res, err := eng.Search(context.Background(), proj, search.Request{Query: "apple", Limit: 10})
	require.NoError(t, err)
	require.NotNil(t, res.Related)
	require.Equal(t, "brand", res.Related.Field)
	require.Equal(t, "Apple", res.Related.Value)
	require.LessOrEqual(t, len(res.Related.Items), 3)
}

func TestSearch_SynonymExpansionMatchesAlternateSurfaceForm(t *testing.T) {
	kv := store.NewMemoryKV()
	ix := indexer.New(kv, store.NewMemoryRelational(), 3, nil)
	_, err := ix.IndexProducts(context.Background(), "proj1", []project.Product{
		{ID: "p1", Name: "Headphones", InStock: true, Price: 1500},
	})
	require.NoError(t, err)

	proj := &project.Project{
		ID:       "proj1",
		Synonyms: []project.SynonymGroup{{"наушники", "headphones", "earbuds"}},
	}

	eng := search.New(kv, 3)
	res, err := eng.Search(context.Background(), proj, search.Request{Query: "наушники", Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	require.Equal(t, "p1", res.Items[0].ID)
}

func TestSearch_HydrationMissIsSilentlyDropped(t *testing.T) {
	kv := store.NewMemoryKV()
	proj := setupProject(t, kv, []project.Product{
		{ID: "p1", Name: "Товар один", InStock: true, Price: 100},
	})
	// Simulate an index/product-store inconsistency window (spec §4.8).
	require.NoError(t, kv.Delete(context.Background(), store.Keys{}.Product("proj1", "p1")))

	eng := search.New(kv, 3)
	res, err := eng.Search(context.Background(), proj, search.Request{Query: "товар", Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 0, res.Total)
}
