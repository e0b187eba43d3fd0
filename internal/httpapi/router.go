// Package httpapi wires the chi router, middleware, and handlers that
// expose the search service over HTTP (spec §6), grounded on the teacher's
// interfaces/http/rest package layout.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"productsearch/internal/analytics"
	"productsearch/internal/config"
	"productsearch/internal/feedmanager"
	"productsearch/internal/indexer"
	"productsearch/internal/observability"
	"productsearch/internal/search"
	"productsearch/internal/store"
	"productsearch/internal/suggest"
)

// Deps collects everything the router's handlers need. It is constructed by
// internal/di and is the router's entire view of the rest of the service.
type Deps struct {
	KV         store.KV
	Search     *search.Engine
	Suggest    *suggest.Engine
	Feed       *feedmanager.Manager
	Indexer    *indexer.Indexer
	Analytics  *analytics.Recorder
	Relational store.Relational
	Logger     *zap.Logger
	Metrics    *observability.Collector
	Config     *config.Config
}

// NewRouter builds the service's chi.Mux: global middleware, the project
// resolver, and the API routes, mirroring the teacher's versionMiddleware +
// per-route-group layout.
func NewRouter(d Deps) *chi.Mux {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	h := &handlers{
		kv:        d.KV,
		search:    d.Search,
		suggest:   d.Suggest,
		feed:      d.Feed,
		indexer:   d.Indexer,
		analytics: d.Analytics,
		rel:       d.Relational,
		logger:    d.Logger,
		metrics:   d.Metrics,
		cfg:       d.Config,
		validate:  validator.New(),
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(d.Logger))
	if d.Metrics != nil {
		r.Use(metricsMiddleware(d.Metrics))
	}
	if d.Config == nil || d.Config.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Api-Key", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/health", h.health)
	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.GetRegistry(), promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.resolveProject)

		r.Get("/search", h.search)
		r.Get("/suggest", h.suggest_)
		r.Post("/index", h.index)
		r.Post("/feed/load", h.loadFeed)
		r.Get("/feed/status", h.feedStatus)
		r.Post("/analytics/query", h.recordQuery)
		r.Post("/analytics/click", h.recordClick)
	})

	return r
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
