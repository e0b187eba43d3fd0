// Package di hand-assembles the service's dependency graph, mirroring what
// `wire` would generate (see wire.go for the annotated injector this was
// grounded on) without requiring `go generate` to run.
package di

import (
	"context"
	"fmt"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"productsearch/internal/analytics"
	"productsearch/internal/config"
	"productsearch/internal/feedmanager"
	"productsearch/internal/httpapi"
	"productsearch/internal/indexer"
	"productsearch/internal/observability"
	"productsearch/internal/scheduler"
	"productsearch/internal/search"
	"productsearch/internal/store"
	"productsearch/internal/suggest"
)

// Container holds every long-lived dependency the service needs, wired once
// at process start and handed to cmd/server and cmd/lambda alike.
type Container struct {
	Config *config.Config
	Logger *zap.Logger
	Tracer *observability.TracerProvider
	Metrics *observability.Collector

	KV         store.KV
	Relational store.Relational

	Indexer     *indexer.Indexer
	Search      *search.Engine
	Suggest     *suggest.Engine
	FeedManager *feedmanager.Manager
	Scheduler   *scheduler.Scheduler
	Analytics   *analytics.Recorder

	Router *chi.Mux

	shutdownFuncs []func(context.Context) error
}

// NewContainer builds the full dependency graph from cfg. Production wires
// Redis/Supabase/EventBridge; every other environment runs entirely against
// in-memory store implementations so the service boots with zero external
// dependencies during local development and tests.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}

	logger, err := observability.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	c.Logger = logger
	c.shutdownFuncs = append(c.shutdownFuncs, func(context.Context) error { return logger.Sync() })

	if cfg.EnableTracing {
		tp, err := observability.InitTracing(ctx, observability.TracingConfig{
			ServiceName: "productsearch",
			Environment: cfg.Environment,
			Endpoint:    cfg.OTLPEndpoint,
			SampleRate:  cfg.TraceSampleRate,
		})
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		c.Tracer = tp
		c.shutdownFuncs = append(c.shutdownFuncs, tp.Shutdown)
	}

	if cfg.EnableMetrics {
		c.Metrics = observability.NewCollector("productsearch")
	}

	if err := c.initStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if c.Metrics != nil {
		c.KV = store.NewInstrumentedKV(c.KV, c.Metrics)
	}

	var eventsClient *eventbridge.Client
	if cfg.IsProduction() {
		awsCfg, err := awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		eventsClient = eventbridge.NewFromConfig(awsCfg)
	}

	c.Indexer = indexer.New(c.KV, c.Relational, cfg.NGramWidth, logger)
	c.Search = search.New(c.KV, cfg.NGramWidth)
	c.Suggest = suggest.New(c.KV, c.Search)
	c.FeedManager = feedmanager.New(c.KV, c.Indexer, eventsClient, cfg.EventBusName, logger)
	c.Scheduler = scheduler.New(c.KV, c.Relational, c.FeedManager, cfg.SchedulerWorkers, logger)
	c.Analytics = analytics.New(c.KV)

	c.Router = httpapi.NewRouter(httpapi.Deps{
		KV:         c.KV,
		Search:     c.Search,
		Suggest:    c.Suggest,
		Feed:       c.FeedManager,
		Indexer:    c.Indexer,
		Analytics:  c.Analytics,
		Relational: c.Relational,
		Logger:     logger,
		Metrics:    c.Metrics,
		Config:     cfg,
	})

	return c, nil
}

// initStore wires the KV and Relational halves of the Store Facade (spec
// §4.9): Redis + Supabase in production, in-memory elsewhere. In production,
// when POSTGRES_URL is set, the schema migrations run first.
func (c *Container) initStore(ctx context.Context, cfg *config.Config) error {
	if !cfg.IsProduction() {
		c.KV = store.NewMemoryKV()
		c.Relational = store.NewMemoryRelational()
		return nil
	}

	if cfg.PostgresURL != "" {
		runner, err := store.NewMigrationRunner(ctx, cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("connect migration database: %w", err)
		}
		defer runner.Close()
		if err := runner.Run(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	c.KV = store.NewRedisKV(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	rel, err := store.NewSupabaseRelational(cfg.SupabaseURL, cfg.SupabaseAPIKey)
	if err != nil {
		return fmt.Errorf("connect supabase: %w", err)
	}
	c.Relational = rel
	return nil
}

// Shutdown releases resources acquired during NewContainer, in reverse
// acquisition order, collecting (not short-circuiting on) individual errors.
func (c *Container) Shutdown(ctx context.Context) error {
	var firstErr error
	for i := len(c.shutdownFuncs) - 1; i >= 0; i-- {
		if err := c.shutdownFuncs[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
