package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"productsearch/internal/analytics"
	"productsearch/internal/apperr"
	"productsearch/internal/config"
	"productsearch/internal/feedmanager"
	"productsearch/internal/indexer"
	"productsearch/internal/observability"
	"productsearch/internal/project"
	"productsearch/internal/search"
	"productsearch/internal/store"
	"productsearch/internal/suggest"
	api "productsearch/pkg/api"
)

type handlers struct {
	kv        store.KV
	search    *search.Engine
	suggest   *suggest.Engine
	feed      *feedmanager.Manager
	indexer   *indexer.Indexer
	analytics *analytics.Recorder
	rel       store.Relational
	logger    *zap.Logger
	metrics   *observability.Collector
	cfg       *config.Config
	validate  *validator.Validate
}

// search handles GET /api/v1/search (spec §6).
func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	proj := projectFromContext(r.Context())
	q := r.URL.Query()

	query := q.Get("q")
	if query == "" {
		writeError(w, apperr.InvalidInput("query parameter q is required"))
		return
	}

	limit := parseIntDefault(q.Get("limit"), 10)
	if limit < 1 || limit > 100 {
		writeError(w, apperr.InvalidInput("limit must be between 1 and 100"))
		return
	}

	req := search.Request{
		Query:  query,
		Limit:  limit,
		Offset: parseIntDefault(q.Get("offset"), 0),
		Sort:   search.Sort(q.Get("sort")),
		Filters: search.Filters{
			Category: q.Get("category"),
			InStock:  parseBoolPtr(q.Get("in_stock")),
			MinPrice: parseFloatPtr(q.Get("min_price")),
			MaxPrice: parseFloatPtr(q.Get("max_price")),
		},
	}
	if req.Sort == "" {
		req.Sort = search.SortRelevance
	}

	result, err := h.search.Search(r.Context(), proj, req)
	// search.Result does not report which retrieval tier produced the
	// matches, so every request is recorded under the "primary" tier.
	tier := "primary"
	if err != nil {
		if h.metrics != nil {
			h.metrics.ObserveSearch(proj.ID, tier, time.Since(start))
		}
		writeError(w, err)
		return
	}
	if h.analytics != nil {
		if err := h.analytics.RecordQuery(r.Context(), proj.ID, query); err != nil {
			h.logger.Warn("record query analytics failed", zap.Error(err))
		}
	}
	if h.metrics != nil {
		h.metrics.ObserveSearch(proj.ID, tier, time.Since(start))
	}

	resp := api.SearchResponse{
		Items: itemsToProducts(result.Items),
		Total: result.Total,
		Query: query,
		Meta: api.SearchMeta{
			TookMS:    time.Since(start).Milliseconds(),
			ProjectID: proj.ID,
		},
	}
	if result.Related != nil {
		resp.Related = &api.RelatedResponse{
			Field: result.Related.Field,
			Value: result.Related.Value,
			Items: itemsToProducts(result.Related.Items),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// suggest_ handles GET /api/v1/suggest (spec §6). Named with a trailing
// underscore to avoid shadowing the suggest package import.
func (h *handlers) suggest_(w http.ResponseWriter, r *http.Request) {
	proj := projectFromContext(r.Context())
	q := r.URL.Query()

	prefix := q.Get("q")
	if prefix == "" {
		writeError(w, apperr.InvalidInput("query parameter q is required"))
		return
	}

	limit := parseIntDefault(q.Get("limit"), 5)
	if limit < 1 || limit > 20 {
		writeError(w, apperr.InvalidInput("limit must be between 1 and 20"))
		return
	}
	includeProducts := q.Get("products") == "true"

	result, err := h.suggest.Suggest(r.Context(), proj, prefix, limit, includeProducts)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveSuggest(proj.ID)
	}

	queries := make([]api.SuggestQuery, 0, len(result.Queries))
	for _, text := range result.Queries {
		queries = append(queries, api.SuggestQuery{Text: text, Highlight: prefix})
	}
	writeJSON(w, http.StatusOK, api.SuggestResponse{
		Suggestions: api.SuggestBody{
			Queries:    queries,
			Categories: []string{},
			Products:   itemsToProducts(result.Products),
		},
	})
}

// index handles POST /api/v1/index (spec §6): full reindex of the supplied
// product set. Authorization is the surrounding surface's responsibility.
func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	proj := projectFromContext(r.Context())

	var req api.IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.InvalidInput("malformed request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, apperr.InvalidInputf("invalid index request: %v", err))
		return
	}

	indexed, err := h.indexer.IndexProducts(r.Context(), proj.ID, req.Products)
	status := "success"
	if err != nil {
		status = "error"
	}
	if h.metrics != nil {
		h.metrics.ObserveIndex(proj.ID, "full", status, time.Since(start))
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.IndexResponse{Indexed: indexed})
}

// loadFeed handles POST /api/v1/feed/load (spec §6).
func (h *handlers) loadFeed(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	proj := projectFromContext(r.Context())

	var req api.FeedLoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.InvalidInput("malformed request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, apperr.InvalidInputf("invalid feed load request: %v", err))
		return
	}

	result := h.feed.LoadFeed(r.Context(), proj, req.URL)
	status := "success"
	if !result.Success {
		status = "error"
	}
	if h.metrics != nil {
		h.metrics.ObserveFeedRefresh(proj.ID, status, time.Since(start))
	}

	writeJSON(w, http.StatusOK, api.FeedLoadResponse{
		Success:         result.Success,
		ProductsCount:   result.ProductsCount,
		CategoriesCount: result.CategoriesCount,
		Message:         result.Error,
	})
}

// feedStatus handles GET /api/v1/feed/status (spec §6, §3).
func (h *handlers) feedStatus(w http.ResponseWriter, r *http.Request) {
	proj := projectFromContext(r.Context())

	raw, ok, err := h.storeFeedStatus(r.Context(), proj.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, api.FeedStatusResponse{Status: project.FeedNotLoaded})
		return
	}
	writeJSON(w, http.StatusOK, api.FeedStatusResponse{
		Status:          raw.Status,
		LastUpdate:      raw.LastUpdate.UTC().Format(time.RFC3339),
		ProductsCount:   raw.ProductsCount,
		CategoriesCount: raw.CategoriesCount,
		Message:         raw.Message,
		Progress:        raw.Progress,
	})
}

// recordQuery handles POST /api/v1/analytics/query: the widget reports a
// query the user actually issued (as opposed to the count search itself
// already records, which covers only server-satisfied queries).
func (h *handlers) recordQuery(w http.ResponseWriter, r *http.Request) {
	proj := projectFromContext(r.Context())
	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperr.InvalidInput("malformed request body"))
		return
	}
	if err := h.analytics.RecordQuery(r.Context(), proj.ID, body.Query); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// recordClick handles POST /api/v1/analytics/click.
func (h *handlers) recordClick(w http.ResponseWriter, r *http.Request) {
	proj := projectFromContext(r.Context())
	var body struct {
		ProductID string `json:"productId"`
		Query     string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperr.InvalidInput("malformed request body"))
		return
	}
	if err := h.analytics.RecordClick(r.Context(), proj.ID, body.ProductID, body.Query); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// storeFeedStatus reads a project's feed status straight out of the KV
// store, mirroring the decode scheduler.decodeFeedStatus performs.
func (h *handlers) storeFeedStatus(ctx context.Context, projectID string) (project.FeedStatus, bool, error) {
	raw, ok, err := h.kv.Get(ctx, store.Keys{}.Feed(projectID))
	if err != nil {
		return project.FeedStatus{}, false, apperr.Unavailable("read feed status", err)
	}
	if !ok {
		return project.FeedStatus{}, false, nil
	}
	var status project.FeedStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return project.FeedStatus{}, false, apperr.Internal("decode feed status", err)
	}
	return status, true, nil
}

func itemsToProducts(items []search.Item) []project.Product {
	out := make([]project.Product, len(items))
	for i, it := range items {
		out[i] = it.Product
	}
	return out
}

func parseIntDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func parseFloatPtr(raw string) *float64 {
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseBoolPtr(raw string) *bool {
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &b
}
