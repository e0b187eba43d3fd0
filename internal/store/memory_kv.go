package store

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryKV is an in-memory fake of KV used by unit tests across
// indexer/search/suggest/scheduler, mirroring the teacher's
// internal/repository/mocks convention of hand-written fakes over
// generated ones.
type MemoryKV struct {
	mu       sync.Mutex
	strings  map[string][]byte
	zsets    map[string]map[string]float64
	sets     map[string]map[string]struct{}
	expireAt map[string]time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		strings:  map[string][]byte{},
		zsets:    map[string]map[string]float64{},
		sets:     map[string]map[string]struct{}{},
		expireAt: map[string]time.Time{},
	}
}

func (m *MemoryKV) expired(key string) bool {
	t, ok := m.expireAt[key]
	return ok && time.Now().After(t)
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		delete(m.strings, key)
		return nil, false, nil
	}
	v, ok := m.strings[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strings[key] = value
	delete(m.expireAt, key)
	return nil
}

func (m *MemoryKV) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.strings[key]; ok && !m.expired(key) {
		return false, nil
	}
	m.strings[key] = value
	if ttl > 0 {
		m.expireAt[key] = time.Now().Add(ttl)
	}
	return true, nil
}

func (m *MemoryKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.strings, k)
		delete(m.zsets, k)
		delete(m.sets, k)
		delete(m.expireAt, k)
	}
	return nil
}

func (m *MemoryKV) DeletePattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	match := func(k string) bool {
		ok, _ := filepath.Match(pattern, k)
		return ok
	}
	for k := range m.strings {
		if match(k) {
			delete(m.strings, k)
		}
	}
	for k := range m.zsets {
		if match(k) {
			delete(m.zsets, k)
		}
	}
	for k := range m.sets {
		if match(k) {
			delete(m.sets, k)
		}
	}
	return nil
}

// ScanIDs implements IDScanner by walking the string-key map and returning
// the segment after pattern's final ":" prefix.
func (m *MemoryKV) ScanIDs(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	out := make([]string, 0, len(m.strings))
	for k := range m.strings {
		if m.expired(k) {
			continue
		}
		if after, ok := strings.CutPrefix(k, prefix); ok {
			out = append(out, after)
		}
	}
	return out, nil
}

func (m *MemoryKV) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireAt[key] = time.Now().Add(ttl)
	return nil
}

func (m *MemoryKV) ZAdd(_ context.Context, key string, member string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zsets[key]
	if !ok {
		z = map[string]float64{}
		m.zsets[key] = z
	}
	z[member] = score
	return nil
}

func (m *MemoryKV) ZRange(_ context.Context, key string) ([]ScoredMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	z := m.zsets[key]
	out := make([]ScoredMember, 0, len(z))
	for member, score := range z {
		out = append(out, ScoredMember{Member: member, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	return out, nil
}

func (m *MemoryKV) ZIncrBy(_ context.Context, key string, member string, delta float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zsets[key]
	if !ok {
		z = map[string]float64{}
		m.zsets[key] = z
	}
	z[member] += delta
	return nil
}

func (m *MemoryKV) SAdd(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[key]
	if !ok {
		s = map[string]struct{}{}
		m.sets[key] = s
	}
	for _, mem := range members {
		s[mem] = struct{}{}
	}
	return nil
}

func (m *MemoryKV) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sets[key]
	out := make([]string, 0, len(s))
	for mem := range s {
		out = append(out, mem)
	}
	return out, nil
}

func (m *MemoryKV) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cur int64
	if v, ok := m.strings[key]; ok {
		cur = decodeInt64(v)
	}
	cur += delta
	m.strings[key] = encodeInt64(cur)
	return cur, nil
}

func (m *MemoryKV) Pipeline(ctx context.Context, ops []PipelineOp) error {
	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			if err := m.Set(ctx, op.Key, op.Value); err != nil {
				return err
			}
		case OpZAdd:
			if err := m.ZAdd(ctx, op.Key, op.Member, op.Score); err != nil {
				return err
			}
		case OpSAdd:
			if err := m.SAdd(ctx, op.Key, op.Member); err != nil {
				return err
			}
		case OpDel:
			if err := m.Delete(ctx, op.Key); err != nil {
				return err
			}
		}
	}
	return nil
}

func encodeInt64(v int64) []byte {
	return []byte(timeIndependentItoa(v))
}

func decodeInt64(b []byte) int64 {
	var n int64
	neg := false
	for i, c := range b {
		if i == 0 && c == '-' {
			neg = true
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}
	return n
}

func timeIndependentItoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var digits []byte
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}
