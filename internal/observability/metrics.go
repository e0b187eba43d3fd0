package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalCollector *Collector
	collectorMutex  sync.Mutex
)

// Collector holds the Prometheus metrics for the search service: HTTP
// surface metrics plus one counter/histogram pair per domain operation
// (search, index, feed refresh; suggest has a counter only) so each
// package's middleware or call site can record its own outcome without
// reaching into the others.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	SearchRequests  *prometheus.CounterVec
	SearchDuration  *prometheus.HistogramVec
	SuggestRequests *prometheus.CounterVec

	IndexOperations *prometheus.CounterVec
	IndexDuration   *prometheus.HistogramVec

	FeedRefreshes *prometheus.CounterVec
	FeedDuration  *prometheus.HistogramVec

	KVOperations *prometheus.CounterVec
}

// NewCollector builds (or returns, if already built) the process-wide
// metrics collector, following the teacher's singleton pattern: repeated
// construction (as in tests) returns the same collector and its private
// registry instead of building new ones.
func NewCollector(namespace string) *Collector {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()

	if globalCollector != nil {
		return globalCollector
	}

	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	searchRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of search requests, labeled by the retrieval tier that satisfied them",
		},
		[]string{"project", "tier"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"project"},
	)
	suggestRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggest_requests_total",
			Help:      "Total number of suggest (typeahead) requests",
		},
		[]string{"project"},
	)

	indexOperations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_operations_total",
			Help:      "Total number of indexing operations (full rebuild or partial stock/price update)",
		},
		[]string{"project", "kind", "status"},
	)
	indexDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_duration_seconds",
			Help:      "Indexing operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"project", "kind"},
	)

	feedRefreshes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_refreshes_total",
			Help:      "Total number of feed refresh attempts",
		},
		[]string{"project", "status"},
	)
	feedDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_refresh_duration_seconds",
			Help:      "Feed refresh duration in seconds, from fetch to index completion",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"project"},
	)

	kvOperations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kv_operations_total",
			Help:      "Total number of key-value store operations",
		},
		[]string{"operation", "status"},
	)

	registry.MustRegister(
		httpRequests,
		httpDuration,
		searchRequests,
		searchDuration,
		suggestRequests,
		indexOperations,
		indexDuration,
		feedRefreshes,
		feedDuration,
		kvOperations,
	)

	globalCollector = &Collector{
		registry:        registry,
		HTTPRequests:    httpRequests,
		HTTPDuration:    httpDuration,
		SearchRequests:  searchRequests,
		SearchDuration:  searchDuration,
		SuggestRequests: suggestRequests,
		IndexOperations: indexOperations,
		IndexDuration:   indexDuration,
		FeedRefreshes:   feedRefreshes,
		FeedDuration:    feedDuration,
		KVOperations:    kvOperations,
	}
	return globalCollector
}

// ResetForTesting clears the singleton so tests can construct a fresh
// collector against a fresh registry.
func ResetForTesting() {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()
	globalCollector = nil
}

// ObserveHTTPRequest records one HTTP request's outcome and latency.
func (c *Collector) ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveSearch records a search request's satisfying retrieval tier
// ("primary", "layout", "ngram") and latency.
func (c *Collector) ObserveSearch(project, tier string, duration time.Duration) {
	c.SearchRequests.WithLabelValues(project, tier).Inc()
	c.SearchDuration.WithLabelValues(project).Observe(duration.Seconds())
}

// ObserveSuggest records one suggest request for a project.
func (c *Collector) ObserveSuggest(project string) {
	c.SuggestRequests.WithLabelValues(project).Inc()
}

// ObserveIndex records an indexing operation ("full" rebuild or "partial"
// stock/price update) outcome and latency.
func (c *Collector) ObserveIndex(project, kind, status string, duration time.Duration) {
	c.IndexOperations.WithLabelValues(project, kind, status).Inc()
	c.IndexDuration.WithLabelValues(project, kind).Observe(duration.Seconds())
}

// ObserveFeedRefresh records a feed refresh outcome and latency.
func (c *Collector) ObserveFeedRefresh(project, status string, duration time.Duration) {
	c.FeedRefreshes.WithLabelValues(project, status).Inc()
	c.FeedDuration.WithLabelValues(project).Observe(duration.Seconds())
}

// ObserveKVOperation records a key-value store operation outcome.
func (c *Collector) ObserveKVOperation(operation, status string) {
	c.KVOperations.WithLabelValues(operation, status).Inc()
}

// GetRegistry returns the Prometheus registry backing this collector, for
// mounting a /metrics handler.
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}
