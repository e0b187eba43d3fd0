//go:build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"productsearch/internal/analytics"
	"productsearch/internal/config"
	"productsearch/internal/feedmanager"
	"productsearch/internal/indexer"
	"productsearch/internal/observability"
	"productsearch/internal/scheduler"
	"productsearch/internal/search"
	"productsearch/internal/store"
	"productsearch/internal/suggest"
)

// InitializeContainer is the wire injector this package's container.go was
// hand-expanded from. `wire` is not run as part of this build (no
// go:generate invocation ships here); container.go is kept in sync by hand
// whenever this provider set changes.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(
		observability.NewLogger,
		store.NewMemoryKV,
		store.NewMemoryRelational,
		indexer.New,
		search.New,
		suggest.New,
		feedmanager.New,
		scheduler.New,
		analytics.New,
		wire.Struct(new(Container), "*"),
	)
	return nil, nil
}
