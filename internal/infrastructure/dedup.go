package infrastructure

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

const (
	dedupKeyPrefix = "gartenconnect:msg:"
	dedupCacheSize = 4096
)

// RedisDeduplicator remembers message ids in Redis so redeliveries are ignored
// across restarts and replicas.
type RedisDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduplicator connects to redisURL and verifies the connection
func NewRedisDeduplicator(ctx context.Context, redisURL string, ttl time.Duration) (*RedisDeduplicator, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisDeduplicator{client: client, ttl: ttl}, nil
}

func (d *RedisDeduplicator) FirstSeen(ctx context.Context, id string) (bool, error) {
	ok, err := d.client.SetNX(ctx, dedupKeyPrefix+id, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (d *RedisDeduplicator) Close() error {
	return d.client.Close()
}

// MemoryDeduplicator keeps recent message ids in a bounded LRU
type MemoryDeduplicator struct {
	mu    sync.Mutex
	cache *lru.Cache[string, time.Time]
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryDeduplicator(ttl time.Duration) (*MemoryDeduplicator, error) {
	cache, err := lru.New[string, time.Time](dedupCacheSize)
	if err != nil {
		return nil, err
	}
	return &MemoryDeduplicator{cache: cache, ttl: ttl, now: time.Now}, nil
}

func (d *MemoryDeduplicator) FirstSeen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if seen, ok := d.cache.Get(id); ok && now.Sub(seen) < d.ttl {
		return false, nil
	}
	d.cache.Add(id, now)
	return true, nil
}
