package devserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers processed Idempotency-Key values per user.
type Deduper interface {
	// Add records key and reports whether it was new.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove forgets key so a failed request may be retried with it.
	Remove(ctx context.Context, userID, key string) error
}

// MemoryDeduper is the default single-process deduper.
type MemoryDeduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{ttl: ttl, now: time.Now, seen: map[string]time.Time{}}
}

func (d *MemoryDeduper) Add(_ context.Context, userID, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := userID + ":" + key
	now := d.now()
	if exp, ok := d.seen[k]; ok && (d.ttl <= 0 || now.Before(exp)) {
		return false, nil
	}
	d.seen[k] = now.Add(d.ttl)
	return true, nil
}

func (d *MemoryDeduper) Remove(_ context.Context, userID, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, userID+":"+key)
	return nil
}

// RedisDeduper shares processed keys between dev server instances.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(userID, key string) string {
	return fmt.Sprintf("taskboard:idem:%s:%s", userID, key)
}

func (r *RedisDeduper) Add(ctx context.Context, userID, key string) (bool, error) {
	return r.client.SetNX(ctx, r.key(userID, key), 1, r.ttl).Result()
}

func (r *RedisDeduper) Remove(ctx context.Context, userID, key string) error {
	return r.client.Del(ctx, r.key(userID, key)).Err()
}
