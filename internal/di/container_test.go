package di_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"productsearch/internal/config"
	"productsearch/internal/di"
)

func devConfig() *config.Config {
	return &config.Config{
		Environment:      config.Development,
		LogLevel:         "info",
		NGramWidth:       3,
		ResultPageCap:    100,
		SchedulerWorkers: 5,
		EventBusName:     "product-search-events",
		EnableCORS:       true,
	}
}

func TestNewContainer_BuildsInMemoryGraphInDevelopment(t *testing.T) {
	c, err := di.NewContainer(context.Background(), devConfig())
	require.NoError(t, err)
	require.NotNil(t, c.KV)
	require.NotNil(t, c.Relational)
	require.NotNil(t, c.Indexer)
	require.NotNil(t, c.Search)
	require.NotNil(t, c.Suggest)
	require.NotNil(t, c.FeedManager)
	require.NotNil(t, c.Scheduler)
	require.NotNil(t, c.Analytics)
	require.NotNil(t, c.Router)
	require.Nil(t, c.Tracer, "tracing disabled by default config")
	require.Nil(t, c.Metrics, "metrics disabled in this test config")

	require.NoError(t, c.Shutdown(context.Background()))
}

func TestNewContainer_EnablesMetricsWhenConfigured(t *testing.T) {
	cfg := devConfig()
	cfg.EnableMetrics = true

	c, err := di.NewContainer(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, c.Metrics)
	require.NoError(t, c.Shutdown(context.Background()))
}
