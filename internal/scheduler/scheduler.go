// Package scheduler implements the Feed Scheduler (spec §4.8, C8): a single
// long-running task that periodically refreshes stale project feeds with
// bounded, per-project-locked concurrency.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"productsearch/internal/feedmanager"
	"productsearch/internal/project"
	"productsearch/internal/store"
)

const (
	initialDelay     = 60 * time.Second
	cycleInterval    = 15 * time.Minute
	stalenessMax     = 4 * time.Hour
	retryAttempts    = 3
	retryGap         = 60 * time.Second
	defaultWorkers   = 5
	maxJitter        = 15 * time.Second // SPEC_FULL §11: spread concurrent refreshes across a cycle boundary.
)

// Scheduler periodically checks every project's feed staleness and runs
// refreshes within a bounded worker pool.
type Scheduler struct {
	kv         store.KV
	relational store.Relational
	feed       *feedmanager.Manager
	workers    int
	logger     *zap.Logger

	rand   *rand.Rand
	randMu sync.Mutex
}

func New(kv store.KV, relational store.Relational, feed *feedmanager.Manager, workers int, logger *zap.Logger) *Scheduler {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Scheduler{
		kv:         kv,
		relational: relational,
		feed:       feed,
		workers:    workers,
		logger:     logger,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run blocks until ctx is cancelled, running one check cycle after
// initialDelay and then every cycleInterval (spec §4.8).
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.runCycle(ctx)
			timer.Reset(cycleInterval)
		}
	}
}

// RunOnce executes a single check cycle immediately, without waiting for
// the initial delay or timer; used by callers (and tests) that want a
// synchronous on-demand sweep instead of the background loop.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.runCycle(ctx)
}

func (s *Scheduler) runCycle(ctx context.Context) {
	projects, err := s.relational.ListProjects(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("scheduler: failed to list projects", zap.Error(err))
		}
		return
	}

	due := make([]project.Project, 0, len(projects))
	for _, p := range projects {
		if s.isDue(ctx, p) {
			due = append(due, p)
		}
	}
	if len(due) == 0 {
		return
	}

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for _, p := range due {
		p := p
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.jitter()
			s.refreshWithLock(ctx, p)
		}()
	}
	wg.Wait()
}

func (s *Scheduler) isDue(ctx context.Context, p project.Project) bool {
	if !p.AutoUpdate || p.FeedURL == "" {
		return false
	}
	raw, ok, err := s.kv.Get(ctx, store.Keys{}.Feed(p.ID))
	if err != nil || !ok {
		return true
	}
	status, err := decodeFeedStatus(raw)
	if err != nil {
		return true
	}
	return time.Since(status.LastUpdate) > stalenessMax
}

// refreshWithLock acquires the per-project lock and runs C7 → C4 (via
// feedmanager.LoadFeed, which drives the indexer internally), making up to
// retryAttempts attempts in total with a fixed gap between them (spec §4.8).
func (s *Scheduler) refreshWithLock(ctx context.Context, p project.Project) {
	lockKey := store.Keys{}.FeedLock(p.ID)
	acquired, err := s.kv.SetNX(ctx, lockKey, []byte("1"), store.FeedLockTTL)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("scheduler: lock acquisition failed", zap.String("project", p.ID), zap.Error(err))
		}
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := s.kv.Delete(ctx, lockKey); err != nil && s.logger != nil {
			s.logger.Warn("scheduler: failed to release lock", zap.String("project", p.ID), zap.Error(err))
		}
	}()

	var lastErr error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		result := s.feed.LoadFeed(ctx, &p, p.FeedURL)
		if result.Success {
			if s.relational != nil {
				status := project.FeedStatus{
					Status:          project.FeedSuccess,
					LastUpdate:      time.Now().UTC(),
					ProductsCount:   result.ProductsCount,
					CategoriesCount: result.CategoriesCount,
				}
				_ = s.relational.UpsertProjectFeedStatus(ctx, p.ID, status)
			}
			return
		}
		lastErr = fmt.Errorf("%s", result.Error)
		if attempt < retryAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryGap):
			}
		}
	}
	if s.logger != nil && lastErr != nil {
		s.logger.Warn("scheduler: feed refresh exhausted retries", zap.String("project", p.ID), zap.Error(lastErr))
	}
}

func (s *Scheduler) jitter() {
	s.randMu.Lock()
	d := time.Duration(s.rand.Int63n(int64(maxJitter)))
	s.randMu.Unlock()
	time.Sleep(d)
}

func decodeFeedStatus(raw []byte) (project.FeedStatus, error) {
	var status project.FeedStatus
	err := json.Unmarshal(raw, &status)
	return status, err
}
