package store

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV implements KV over go-redis, the ecosystem client for the
// sorted-set/set semantics spec §4.9 requires (SPEC_FULL §10).
type RedisKV struct {
	client *redis.Client
}

func NewRedisKV(addr, password string, db int) *RedisKV {
	return &RedisKV{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (r *RedisKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisKV) Close() error { return r.client.Close() }

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *RedisKV) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, ttl).Result()
}

func (r *RedisKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisKV) DeletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (r *RedisKV) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Expire(ctx, key, ttl).Err()
}

// ScanIDs implements IDScanner via SCAN, returning for each matching key the
// part that follows pattern's prefix (the text before its trailing "*").
func (r *RedisKV) ScanIDs(ctx context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var out []string
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if after, ok := strings.CutPrefix(k, prefix); ok {
				out = append(out, after)
			}
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

func (r *RedisKV) ZAdd(ctx context.Context, key string, member string, score float64) error {
	return r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (r *RedisKV) ZRange(ctx context.Context, key string) ([]ScoredMember, error) {
	zs, err := r.client.ZRangeWithScores(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]ScoredMember, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		out = append(out, ScoredMember{Member: member, Score: z.Score})
	}
	return out, nil
}

func (r *RedisKV) ZIncrBy(ctx context.Context, key string, member string, delta float64) error {
	return r.client.ZIncrBy(ctx, key, delta, member).Err()
}

func (r *RedisKV) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	vals := make([]interface{}, len(members))
	for i, m := range members {
		vals[i] = m
	}
	return r.client.SAdd(ctx, key, vals...).Err()
}

func (r *RedisKV) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.client.SMembers(ctx, key).Result()
}

func (r *RedisKV) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return r.client.IncrBy(ctx, key, delta).Result()
}

// Pipeline batches writes in one round-trip (spec §4.4/§5); it is NOT
// required to be atomic against concurrent readers, only pipelined.
func (r *RedisKV) Pipeline(ctx context.Context, ops []PipelineOp) error {
	pipe := r.client.Pipeline()
	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			pipe.Set(ctx, op.Key, op.Value, 0)
		case OpZAdd:
			pipe.ZAdd(ctx, op.Key, redis.Z{Score: op.Score, Member: op.Member})
		case OpSAdd:
			pipe.SAdd(ctx, op.Key, op.Member)
		case OpDel:
			pipe.Del(ctx, op.Key)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}
