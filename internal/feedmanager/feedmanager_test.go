package feedmanager_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"productsearch/internal/feedmanager"
	"productsearch/internal/indexer"
	"productsearch/internal/project"
	"productsearch/internal/store"
)

const sampleFeed = `<?xml version="1.0"?>
<yml_catalog>
  <shop>
    <categories>
      <category id="1">Электроника</category>
    </categories>
    <offers>
      <offer id="1" available="true">
        <name>Тестовый товар</name>
        <price>1000</price>
        <currencyId>RUB</currencyId>
        <categoryId>1</categoryId>
        <vendor>TestBrand</vendor>
      </offer>
    </offers>
  </shop>
</yml_catalog>`

func TestLoadFeed_SuccessIndexesProductsAndPublishesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	kv := store.NewMemoryKV()
	ix := indexer.New(kv, store.NewMemoryRelational(), 3, nil)
	mgr := feedmanager.New(kv, ix, nil, "", nil)

	proj := &project.Project{ID: "proj1", FeedURL: srv.URL}
	result := mgr.LoadFeed(context.Background(), proj, srv.URL)

	require.True(t, result.Success)
	require.Equal(t, 1, result.ProductsCount)
	require.Equal(t, 1, result.CategoriesCount)

	raw, ok, err := kv.Get(context.Background(), store.Keys{}.Feed("proj1"))
	require.NoError(t, err)
	require.True(t, ok)

	var status project.FeedStatus
	require.NoError(t, json.Unmarshal(raw, &status))
	require.Equal(t, project.FeedSuccess, status.Status)
	require.Equal(t, 1, status.ProductsCount)
}

func TestLoadFeed_NonOKStatusIsFailureAndPreservesPriorData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	kv := store.NewMemoryKV()
	ix := indexer.New(kv, store.NewMemoryRelational(), 3, nil)
	_, err := ix.IndexProducts(context.Background(), "proj1", []project.Product{{ID: "p1", Name: "Старый товар", InStock: true}})
	require.NoError(t, err)

	mgr := feedmanager.New(kv, ix, nil, "", nil)
	proj := &project.Project{ID: "proj1", FeedURL: srv.URL}
	result := mgr.LoadFeed(context.Background(), proj, srv.URL)

	require.False(t, result.Success)
	require.NotEmpty(t, result.Error)

	_, ok, err := kv.Get(context.Background(), store.Keys{}.Product("proj1", "p1"))
	require.NoError(t, err)
	require.True(t, ok, "a failed refresh must not touch previously indexed data")

	raw, ok, err := kv.Get(context.Background(), store.Keys{}.Feed("proj1"))
	require.NoError(t, err)
	require.True(t, ok)
	var status project.FeedStatus
	require.NoError(t, json.Unmarshal(raw, &status))
	require.Equal(t, project.FeedError, status.Status)
}

func TestLoadFeed_FeedWithoutCategoriesStillIndexes(t *testing.T) {
	minimalFeed := `<?xml version="1.0"?><yml_catalog><shop><offers>
		<offer id="1"><name>Ок</name><price>500</price></offer>
	</offers></shop></yml_catalog>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(minimalFeed))
	}))
	defer srv.Close()

	kv := store.NewMemoryKV()
	ix := indexer.New(kv, store.NewMemoryRelational(), 3, nil)
	mgr := feedmanager.New(kv, ix, nil, "", nil)

	proj := &project.Project{ID: "proj1", FeedURL: srv.URL}
	result := mgr.LoadFeed(context.Background(), proj, srv.URL)
	require.True(t, result.Success)
	require.Equal(t, 1, result.ProductsCount)
	require.Equal(t, 0, result.CategoriesCount)
}
