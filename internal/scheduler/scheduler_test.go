package scheduler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"productsearch/internal/feedmanager"
	"productsearch/internal/indexer"
	"productsearch/internal/project"
	"productsearch/internal/scheduler"
	"productsearch/internal/store"
)

const feedXML = `<?xml version="1.0"?><yml_catalog><shop><offers>
	<offer id="1"><name>Товар</name><price>100</price></offer>
</offers></shop></yml_catalog>`

func TestRunCycle_RefreshesStaleProjectAndReleasesLock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	kv := store.NewMemoryKV()
	rel := store.NewMemoryRelational()
	rel.Put(project.Project{ID: "proj1", FeedURL: srv.URL, AutoUpdate: true})

	ix := indexer.New(kv, rel, 3, nil)
	mgr := feedmanager.New(kv, ix, nil, "", nil)
	sched := scheduler.New(kv, rel, mgr, 5, nil)

	sched.RunOnce(context.Background())

	_, ok, err := kv.Get(context.Background(), store.Keys{}.Product("proj1", "1"))
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = kv.Get(context.Background(), store.Keys{}.FeedLock("proj1"))
	require.NoError(t, err)
	require.False(t, ok, "lock must be released after a successful refresh")
}

func TestRunCycle_SkipsProjectsWithAutoUpdateDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("feed fetch should not happen for auto_update=false projects")
	}))
	defer srv.Close()

	kv := store.NewMemoryKV()
	rel := store.NewMemoryRelational()
	rel.Put(project.Project{ID: "proj1", FeedURL: srv.URL, AutoUpdate: false})

	ix := indexer.New(kv, rel, 3, nil)
	mgr := feedmanager.New(kv, ix, nil, "", nil)
	sched := scheduler.New(kv, rel, mgr, 5, nil)

	sched.RunOnce(context.Background())
}

func TestRunCycle_SkipsProjectsWithFreshFeedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("feed fetch should not happen for a recently refreshed project")
	}))
	defer srv.Close()

	kv := store.NewMemoryKV()
	rel := store.NewMemoryRelational()
	rel.Put(project.Project{ID: "proj1", FeedURL: srv.URL, AutoUpdate: true})

	mgr := feedmanager.New(kv, indexer.New(kv, rel, 3, nil), nil, "", nil)
	sched := scheduler.New(kv, rel, mgr, 5, nil)

	fresh, _ := json.Marshal(project.FeedStatus{Status: project.FeedSuccess, LastUpdate: time.Now().UTC()})
	require.NoError(t, kv.Set(context.Background(), store.Keys{}.Feed("proj1"), fresh))

	sched.RunOnce(context.Background())
}
