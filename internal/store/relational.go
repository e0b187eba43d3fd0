package store

import (
	"context"

	"productsearch/internal/project"
)

// Relational is the durable-truth half of the Store Facade (spec §4.9):
// users, projects, API keys, optional product backup, and analytics
// durability. The KV store is always a derived/serving copy of this data.
type Relational interface {
	FindProjectByID(ctx context.Context, id string) (*project.Project, error)
	FindProjectByAPIKey(ctx context.Context, apiKey string) (*project.Project, error)
	ListProjects(ctx context.Context) ([]project.Project, error)
	UpsertProjectFeedStatus(ctx context.Context, projectID string, status project.FeedStatus) error

	// BackupProducts persists a project's full product set for disaster
	// recovery (spec §4.4, optional/non-blocking).
	BackupProducts(ctx context.Context, projectID string, products []project.Product) error
	RestoreProducts(ctx context.Context, projectID string) ([]project.Product, error)

	// RecordAnalyticsSnapshot durably persists a rollup of KV-resident counters;
	// never part of retrieval (spec §3).
	RecordAnalyticsSnapshot(ctx context.Context, projectID string, queries, clicks int64) error
}
