package store

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Backend names reported by TieredStore.Backend.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Backend string `json:"backend"`
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Errors  int64  `json:"errors"`
}

// TieredStore prefers Redis and falls back to a MemoryStore.
//
// The backend is chosen once, on first use: with a Redis URL configured it
// connects and pings; on any failure, or without a URL, it uses memory for
// the rest of the process lifetime. The connection is never retried.
type TieredStore struct {
	redisURL    string
	pingTimeout time.Duration

	once     sync.Once
	active   backend
	name     string
	memory   *MemoryStore
	redis    *RedisStore
	dialFunc func(string) (*RedisStore, error)

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewTieredStore creates an unresolved store. redisURL may be empty.
func NewTieredStore(redisURL string) *TieredStore {
	return &TieredStore{
		redisURL:    strings.TrimSpace(redisURL),
		pingTimeout: 2 * time.Second,
		memory:      NewMemoryStore(),
		dialFunc:    NewRedisStore,
	}
}

// Backend resolves the backend if needed and returns its name.
// It is safe to call repeatedly and concurrently.
func (t *TieredStore) Backend(ctx context.Context) string {
	t.once.Do(func() { t.resolve(ctx) })
	return t.name
}

func (t *TieredStore) resolve(ctx context.Context) {
	t.active, t.name = t.memory, BackendMemory
	if t.redisURL == "" {
		log.Printf("INFO: cache: REDIS_URL not set; using in-process cache")
		return
	}

	rs, err := t.dialFunc(t.redisURL)
	if err != nil {
		log.Printf("ERROR: cache: %v; using in-process cache", err)
		return
	}

	pingCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.pingTimeout)
	defer cancel()
	if err := rs.Ping(pingCtx); err != nil {
		log.Printf("ERROR: cache: redis ping failed: %v; using in-process cache", err)
		_ = rs.Close()
		return
	}

	log.Printf("INFO: cache: using redis backend")
	t.redis = rs
	t.active, t.name = rs, BackendRedis
}

func (t *TieredStore) Get(ctx context.Context, key string) (string, bool, error) {
	t.Backend(ctx)

	val, ok, err := t.active.Get(ctx, key)
	switch {
	case err != nil:
		t.errors.Inc()
	case ok:
		t.hits.Inc()
	default:
		t.misses.Inc()
	}
	return val, ok, err
}

func (t *TieredStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	t.Backend(ctx)

	if err := t.active.Set(ctx, key, value, ttl); err != nil {
		t.errors.Inc()
		return err
	}
	return nil
}

// Stats returns current counters.
func (t *TieredStore) Stats(ctx context.Context) Stats {
	return Stats{
		Backend: t.Backend(ctx),
		Hits:    t.hits.Load(),
		Misses:  t.misses.Load(),
		Errors:  t.errors.Load(),
	}
}

// Close releases the Redis connection if one was established.
func (t *TieredStore) Close() error {
	if t.redis != nil {
		return t.redis.Close()
	}
	return nil
}
