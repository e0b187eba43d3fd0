// Package store implements the Store Facade (spec §4.9, C9): a KV
// capability abstraction over the scored-set/set-shaped index store, and a
// Relational capability abstraction over the durable project/API-key
// store, per spec §9's "Polymorphism over stores" design note.
package store

import (
	"context"
	"time"
)

// ScoredMember is one (member, score) pair from a sorted set.
type ScoredMember struct {
	Member string
	Score  float64
}

// PipelineOp is one operation queued for batched execution via
// KV.Pipeline, mirroring the teacher's preference for pipelined bulk
// writes (spec §4.4, §5 "KV pipelining is used for bulk writes").
type PipelineOp struct {
	Kind   OpKind
	Key    string
	Member string
	Score  float64
	Value  []byte
}

type OpKind int

const (
	OpSet OpKind = iota
	OpZAdd
	OpSAdd
	OpDel
)

// KV is the capability interface indexer/search/suggest/scheduler depend
// on; realized by a Redis-backed client in production and an in-memory fake
// in tests (spec §9).
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error

	ZAdd(ctx context.Context, key string, member string, score float64) error
	ZRange(ctx context.Context, key string) ([]ScoredMember, error)
	ZIncrBy(ctx context.Context, key string, member string, delta float64) error

	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	Pipeline(ctx context.Context, ops []PipelineOp) error

	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
}

// IDScanner is an optional KV capability backing the direct product-store
// scan spec §4.5 step 9 calls for (related items). Both the Redis and
// in-memory backends implement it.
type IDScanner interface {
	// ScanIDs returns the trailing key segment (the product ID) for every
	// key matching pattern, e.g. "products:{project}:*" -> the IDs.
	ScanIDs(ctx context.Context, pattern string) ([]string, error)
}

// Keys centralizes the project-scoped key schema of spec §4.9/§6 so every
// component builds keys identically.
type Keys struct{}

func (Keys) Product(project, id string) string {
	return "products:" + project + ":" + id
}

func (Keys) ProductPattern(project string) string {
	return "products:" + project + ":*"
}

func (Keys) IndexPattern(project string) string {
	return "idx:" + project + ":*"
}

func (Keys) InvertedPosting(project, token string) string {
	return "idx:" + project + ":inv:" + token
}

func (Keys) NGramSet(project, gram string) string {
	return "idx:" + project + ":ngram:" + gram
}

func (Keys) Suggest(project string) string {
	return "idx:" + project + ":suggest"
}

func (Keys) Feed(project string) string {
	return "project:" + project + ":feed"
}

func (Keys) Synonyms(project string) string {
	return "synonyms:" + project
}

func (Keys) APIKey(key string) string {
	return "apikey:" + key
}

func (Keys) FeedLock(project string) string {
	return "lock:feed:" + project
}

func (Keys) AnalyticsDailyQueries(project, day string) string {
	return "analytics:" + project + ":queries:" + day
}

func (Keys) AnalyticsDailyClicks(project, day string) string {
	return "analytics:" + project + ":clicks:" + day
}

func (Keys) AnalyticsTotalQueries(project string) string {
	return "analytics:" + project + ":queries:total"
}

func (Keys) AnalyticsTotalClicks(project string) string {
	return "analytics:" + project + ":clicks:total"
}

func (Keys) AnalyticsPopularQueries(project string) string {
	return "analytics:" + project + ":popular_queries"
}

func (Keys) AnalyticsPopularProducts(project string) string {
	return "analytics:" + project + ":popular_products"
}

func (Keys) AnalyticsConvertingQueries(project string) string {
	return "analytics:" + project + ":converting_queries"
}

const FeedLockTTL = 300 * time.Second
