package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MigrationRunner applies idempotent schema migrations directly over
// Postgres (pgx), since the PostgREST surface supabase-go talks to cannot
// issue DDL. Grounded on the pack's pgx usage (utafrali-EcommerceGo,
// elchinoo-stormdb) for the direct-connection half of the relational store.
type MigrationRunner struct {
	pool *pgxpool.Pool
}

func NewMigrationRunner(ctx context.Context, dsn string) (*MigrationRunner, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &MigrationRunner{pool: pool}, nil
}

func (m *MigrationRunner) Close() {
	m.pool.Close()
}

// statements are additive only: CREATE TABLE IF NOT EXISTS / ADD COLUMN IF
// NOT EXISTS, matching spec §4.9's "migration step adds missing columns".
var statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		owner_user_id UUID NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		origin_domain TEXT NOT NULL DEFAULT '',
		feed_url TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		widget_config JSONB NOT NULL DEFAULT '{}',
		search_settings JSONB NOT NULL DEFAULT '{}',
		synonyms JSONB NOT NULL DEFAULT '[]',
		product_count INTEGER NOT NULL DEFAULT 0,
		api_key TEXT NOT NULL UNIQUE,
		auto_update BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`ALTER TABLE projects ADD COLUMN IF NOT EXISTS auto_update BOOLEAN NOT NULL DEFAULT true`,
	`ALTER TABLE projects ADD COLUMN IF NOT EXISTS search_settings JSONB NOT NULL DEFAULT '{}'`,
	`CREATE TABLE IF NOT EXISTS feed_status (
		project_id TEXT PRIMARY KEY REFERENCES projects(id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		last_update TIMESTAMPTZ NOT NULL DEFAULT now(),
		products_count INTEGER NOT NULL DEFAULT 0,
		categories_count INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL DEFAULT '',
		progress INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS product_backup (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL,
		payload JSONB NOT NULL,
		PRIMARY KEY (project_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS analytics_snapshots (
		id BIGSERIAL PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		total_queries BIGINT NOT NULL,
		total_clicks BIGINT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Run applies every migration statement; each is individually idempotent so
// re-running on every boot is safe (spec §4.9).
func (m *MigrationRunner) Run(ctx context.Context) error {
	for _, stmt := range statements {
		if _, err := m.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement failed: %w\n%s", err, stmt)
		}
	}
	return nil
}
