package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"productsearch/internal/analytics"
	"productsearch/internal/feedmanager"
	"productsearch/internal/httpapi"
	"productsearch/internal/indexer"
	"productsearch/internal/project"
	"productsearch/internal/search"
	"productsearch/internal/store"
	"productsearch/internal/suggest"
	api "productsearch/pkg/api"
)

func newTestRouter(t *testing.T) (*httptest.Server, store.KV) {
	t.Helper()
	kv := store.NewMemoryKV()
	rel := store.NewMemoryRelational()
	rel.Put(project.Project{ID: project.DemoProjectID, Status: project.StatusActive})

	ix := indexer.New(kv, rel, 3, nil)
	searchEng := search.New(kv, 3)
	suggestEng := suggest.New(kv, searchEng)
	feedMgr := feedmanager.New(kv, ix, nil, "", nil)
	rec := analytics.New(kv)

	router := httpapi.NewRouter(httpapi.Deps{
		KV:         kv,
		Search:     searchEng,
		Suggest:    suggestEng,
		Feed:       feedMgr,
		Indexer:    ix,
		Analytics:  rec,
		Relational: rel,
	})
	return httptest.NewServer(router), kv
}

func TestIndexThenSearch_RoundTrips(t *testing.T) {
	srv, _ := newTestRouter(t)
	defer srv.Close()

	body, _ := json.Marshal(api.IndexRequest{Products: []project.Product{
		{ID: "p1", Name: "Ноутбук Apple MacBook", Price: 99990, InStock: true, Currency: "RUB"},
	}})
	resp, err := http.Post(srv.URL+"/api/v1/index", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var indexResp api.IndexResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&indexResp))
	require.Equal(t, 1, indexResp.Indexed)

	searchResp, err := http.Get(srv.URL + "/api/v1/search?q=ноутбук")
	require.NoError(t, err)
	defer searchResp.Body.Close()
	require.Equal(t, http.StatusOK, searchResp.StatusCode)

	var result api.SearchResponse
	require.NoError(t, json.NewDecoder(searchResp.Body).Decode(&result))
	require.Len(t, result.Items, 1)
	require.Equal(t, "p1", result.Items[0].ID)
	require.Equal(t, project.DemoProjectID, result.Meta.ProjectID)
}

func TestSearch_MissingQueryIsBadRequest(t *testing.T) {
	srv, _ := newTestRouter(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/search")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSuggest_ReturnsPrefixMatches(t *testing.T) {
	srv, kv := newTestRouter(t)
	defer srv.Close()

	require.NoError(t, kv.ZIncrBy(context.Background(), store.Keys{}.Suggest(project.DemoProjectID), "ноутбук", 5))

	resp, err := http.Get(srv.URL + "/api/v1/suggest?q=ноут")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result api.SuggestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Equal(t, []string{"ноутбук"}, []string{result.Suggestions.Queries[0].Text})
}

func TestFeedStatus_NotLoadedByDefault(t *testing.T) {
	srv, _ := newTestRouter(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/feed/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status api.FeedStatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Equal(t, project.FeedNotLoaded, status.Status)
}

func TestUnknownAPIKeyFallsBackToDemoProject(t *testing.T) {
	srv, _ := newTestRouter(t)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/search?q=x", nil)
	require.NoError(t, err)
	req.Header.Set("X-Api-Key", "does-not-exist")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result api.SearchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Equal(t, project.DemoProjectID, result.Meta.ProjectID)
}
