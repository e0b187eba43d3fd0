package store

import (
	"context"
	"time"
)

// KVMetricsRecorder is the subset of observability.Collector that
// InstrumentedKV needs; declared locally so this package does not import
// observability.
type KVMetricsRecorder interface {
	ObserveKVOperation(operation, status string)
}

// InstrumentedKV is a field-only struct with no methods and does not
// implement KV. The metrics decorator is NewInstrumentedKV, which returns the
// unexported instrumentedKV (or instrumentedScanningKV) wrapper; that wrapper
// records each call's outcome through a KVMetricsRecorder without the
// underlying Redis/in-memory implementations needing to know metrics exist.
type InstrumentedKV struct {
	kv       KV
	recorder KVMetricsRecorder
}

// NewInstrumentedKV wraps kv so every operation reports to recorder. If kv
// also implements IDScanner, the returned value does too.
func NewInstrumentedKV(kv KV, recorder KVMetricsRecorder) KV {
	if scanner, ok := kv.(IDScanner); ok {
		return &instrumentedScanningKV{instrumentedKV: instrumentedKV{kv: kv, recorder: recorder}, scanner: scanner}
	}
	return &instrumentedKV{kv: kv, recorder: recorder}
}

type instrumentedKV struct {
	kv       KV
	recorder KVMetricsRecorder
}

func (i *instrumentedKV) observe(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	i.recorder.ObserveKVOperation(operation, status)
}

func (i *instrumentedKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := i.kv.Get(ctx, key)
	i.observe("get", err)
	return v, ok, err
}

func (i *instrumentedKV) Set(ctx context.Context, key string, value []byte) error {
	err := i.kv.Set(ctx, key, value)
	i.observe("set", err)
	return err
}

func (i *instrumentedKV) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := i.kv.SetNX(ctx, key, value, ttl)
	i.observe("setnx", err)
	return ok, err
}

func (i *instrumentedKV) Delete(ctx context.Context, keys ...string) error {
	err := i.kv.Delete(ctx, keys...)
	i.observe("delete", err)
	return err
}

func (i *instrumentedKV) DeletePattern(ctx context.Context, pattern string) error {
	err := i.kv.DeletePattern(ctx, pattern)
	i.observe("delete_pattern", err)
	return err
}

func (i *instrumentedKV) Expire(ctx context.Context, key string, ttl time.Duration) error {
	err := i.kv.Expire(ctx, key, ttl)
	i.observe("expire", err)
	return err
}

func (i *instrumentedKV) ZAdd(ctx context.Context, key string, member string, score float64) error {
	err := i.kv.ZAdd(ctx, key, member, score)
	i.observe("zadd", err)
	return err
}

func (i *instrumentedKV) ZRange(ctx context.Context, key string) ([]ScoredMember, error) {
	v, err := i.kv.ZRange(ctx, key)
	i.observe("zrange", err)
	return v, err
}

func (i *instrumentedKV) ZIncrBy(ctx context.Context, key string, member string, delta float64) error {
	err := i.kv.ZIncrBy(ctx, key, member, delta)
	i.observe("zincrby", err)
	return err
}

func (i *instrumentedKV) SAdd(ctx context.Context, key string, members ...string) error {
	err := i.kv.SAdd(ctx, key, members...)
	i.observe("sadd", err)
	return err
}

func (i *instrumentedKV) SMembers(ctx context.Context, key string) ([]string, error) {
	v, err := i.kv.SMembers(ctx, key)
	i.observe("smembers", err)
	return v, err
}

func (i *instrumentedKV) Pipeline(ctx context.Context, ops []PipelineOp) error {
	err := i.kv.Pipeline(ctx, ops)
	i.observe("pipeline", err)
	return err
}

func (i *instrumentedKV) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	v, err := i.kv.IncrBy(ctx, key, delta)
	i.observe("incrby", err)
	return v, err
}

// instrumentedScanningKV additionally forwards IDScanner for backends (Redis,
// MemoryKV) that implement it, so wrapping never hides the optional
// capability from callers that type-assert for it (internal/search).
type instrumentedScanningKV struct {
	instrumentedKV
	scanner IDScanner
}

func (i *instrumentedScanningKV) ScanIDs(ctx context.Context, pattern string) ([]string, error) {
	v, err := i.scanner.ScanIDs(ctx, pattern)
	i.observe("scan_ids", err)
	return v, err
}
