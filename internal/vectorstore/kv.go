package vectorstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ErrMissing is returned by KV.Get for an absent key
var ErrMissing = errors.New("key not found")

// KV is the key-value service holding chunk blobs and the flat id index
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, keys ...string) error
	AddMember(ctx context.Context, set, member string) error
	RemoveMember(ctx context.Context, set, member string) error
	Members(ctx context.Context, set string) ([]string, error)
	IsMember(ctx context.Context, set, member string) (bool, error)
}

// RedisKV implements KV on go-redis
type RedisKV struct {
	rdb redis.UniversalClient
}

func NewRedisKV(rdb redis.UniversalClient) *RedisKV {
	return &RedisKV{rdb: rdb}
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMissing
	}
	return b, err
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	return r.rdb.Set(ctx, key, value, 0).Err()
}

func (r *RedisKV) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.rdb.Del(ctx, keys...).Err()
}

func (r *RedisKV) AddMember(ctx context.Context, set, member string) error {
	return r.rdb.SAdd(ctx, set, member).Err()
}

func (r *RedisKV) RemoveMember(ctx context.Context, set, member string) error {
	return r.rdb.SRem(ctx, set, member).Err()
}

func (r *RedisKV) Members(ctx context.Context, set string) ([]string, error) {
	return r.rdb.SMembers(ctx, set).Result()
}

func (r *RedisKV) IsMember(ctx context.Context, set, member string) (bool, error) {
	return r.rdb.SIsMember(ctx, set, member).Result()
}

// MemoryKV is the in-process KV used when Redis is disabled
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string][]byte
	sets   map[string]map[string]struct{}
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		values: make(map[string][]byte),
		sets:   make(map[string]map[string]struct{}),
	}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrMissing
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.values[key] = append([]byte(nil), value...)
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.values, k)
		delete(m.sets, k)
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) AddMember(_ context.Context, set, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[set]
	if !ok {
		s = make(map[string]struct{})
		m.sets[set] = s
	}
	s[member] = struct{}{}
	return nil
}

func (m *MemoryKV) RemoveMember(_ context.Context, set, member string) error {
	m.mu.Lock()
	delete(m.sets[set], member)
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) Members(_ context.Context, set string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sets[set]))
	for member := range m.sets[set] {
		out = append(out, member)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryKV) IsMember(_ context.Context, set, member string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sets[set][member]
	return ok, nil
}
