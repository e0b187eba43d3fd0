// Package analytics implements the write side of spec §3's Analytics
// Counters entity: per-project daily/cumulative query and click counts,
// and ranked popular/converting query and product sets. Write-only and
// never consulted by retrieval (spec §3: "never part of retrieval").
package analytics

import (
	"context"
	"fmt"
	"time"

	"productsearch/internal/store"
)

const dayLayout = "2006-01-02"

// Recorder accumulates analytics counters over the KV store.
type Recorder struct {
	kv store.KV
}

func New(kv store.KV) *Recorder {
	return &Recorder{kv: kv}
}

// RecordQuery increments the daily and cumulative query counters and bumps
// query in the popular-queries ranking.
func (r *Recorder) RecordQuery(ctx context.Context, projectID, query string) error {
	day := time.Now().UTC().Format(dayLayout)
	if _, err := r.kv.IncrBy(ctx, store.Keys{}.AnalyticsDailyQueries(projectID, day), 1); err != nil {
		return fmt.Errorf("increment daily query count: %w", err)
	}
	if _, err := r.kv.IncrBy(ctx, store.Keys{}.AnalyticsTotalQueries(projectID), 1); err != nil {
		return fmt.Errorf("increment total query count: %w", err)
	}
	if query != "" {
		if err := r.kv.ZIncrBy(ctx, store.Keys{}.AnalyticsPopularQueries(projectID), query, 1); err != nil {
			return fmt.Errorf("bump popular query: %w", err)
		}
	}
	return nil
}

// RecordClick increments the daily and cumulative click counters, bumps the
// clicked product in the popular-products ranking, and — when the
// triggering query is known — bumps it in the converting-queries ranking
// (spec §3: "queries that preceded a click").
func (r *Recorder) RecordClick(ctx context.Context, projectID, productID, query string) error {
	day := time.Now().UTC().Format(dayLayout)
	if _, err := r.kv.IncrBy(ctx, store.Keys{}.AnalyticsDailyClicks(projectID, day), 1); err != nil {
		return fmt.Errorf("increment daily click count: %w", err)
	}
	if _, err := r.kv.IncrBy(ctx, store.Keys{}.AnalyticsTotalClicks(projectID), 1); err != nil {
		return fmt.Errorf("increment total click count: %w", err)
	}
	if productID != "" {
		if err := r.kv.ZIncrBy(ctx, store.Keys{}.AnalyticsPopularProducts(projectID), productID, 1); err != nil {
			return fmt.Errorf("bump popular product: %w", err)
		}
	}
	if query != "" {
		if err := r.kv.ZIncrBy(ctx, store.Keys{}.AnalyticsConvertingQueries(projectID), query, 1); err != nil {
			return fmt.Errorf("bump converting query: %w", err)
		}
	}
	return nil
}

// Snapshot reads the cumulative query and click counters, the two totals
// store.Relational.RecordAnalyticsSnapshot persists. No scheduler or
// housekeeping task in this service calls it.
func (r *Recorder) Snapshot(ctx context.Context, projectID string) (queries, clicks int64, err error) {
	queries, err = r.readTotal(ctx, store.Keys{}.AnalyticsTotalQueries(projectID))
	if err != nil {
		return 0, 0, err
	}
	clicks, err = r.readTotal(ctx, store.Keys{}.AnalyticsTotalClicks(projectID))
	if err != nil {
		return 0, 0, err
	}
	return queries, clicks, nil
}

func (r *Recorder) readTotal(ctx context.Context, key string) (int64, error) {
	// IncrBy with a zero delta both reads and initializes the counter
	// without mutating an existing value.
	return r.kv.IncrBy(ctx, key, 0)
}
