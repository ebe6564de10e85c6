// Package session caches validated sessions so authenticated requests skip the session lookup.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Entry is what a validated session resolves to.
type Entry struct {
	SessionID   uuid.UUID `json:"sid"`
	UserID      uuid.UUID `json:"uid"`
	CompanyID   uuid.UUID `json:"cid"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Cache stores session entries for a bounded time. A miss is not an error.
type Cache interface {
	Get(ctx context.Context, sessionID uuid.UUID) (*Entry, error)
	Set(ctx context.Context, entry Entry, ttl time.Duration) error
	Delete(ctx context.Context, sessionIDs ...uuid.UUID) error
}

// --- In-memory ---

type memoryItem struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	items sync.Map // sessionID -> memoryItem
	now   func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{now: time.Now}
}

func (c *MemoryCache) Get(ctx context.Context, sessionID uuid.UUID) (*Entry, error) {
	v, ok := c.items.Load(sessionID)
	if !ok {
		return nil, nil
	}
	item := v.(memoryItem)
	if !c.now().Before(item.expiresAt) {
		c.items.Delete(sessionID)
		return nil, nil
	}
	entry := item.entry
	return &entry, nil
}

func (c *MemoryCache) Set(ctx context.Context, entry Entry, ttl time.Duration) error {
	c.items.Store(entry.SessionID, memoryItem{entry: entry, expiresAt: c.now().Add(boundedTTL(entry, ttl, c.now()))})
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, sessionIDs ...uuid.UUID) error {
	for _, id := range sessionIDs {
		c.items.Delete(id)
	}
	return nil
}

// --- Redis ---

// RedisCache shares session entries between API instances.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis for session cache: %w", err)
	}
	return NewRedisCacheWithClient(client), nil
}

func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, keyPrefix: "voucherpro:session:"}
}

func (c *RedisCache) key(id uuid.UUID) string {
	return c.keyPrefix + id.String()
}

func (c *RedisCache) Get(ctx context.Context, sessionID uuid.UUID) (*Entry, error) {
	raw, err := c.client.Get(ctx, c.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached session: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cached session: %w", err)
	}
	return &entry, nil
}

func (c *RedisCache) Set(ctx context.Context, entry Entry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := c.client.Set(ctx, c.key(entry.SessionID), raw, boundedTTL(entry, ttl, time.Now())).Err(); err != nil {
		return fmt.Errorf("failed to cache session: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, sessionIDs ...uuid.UUID) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		keys = append(keys, c.key(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to evict cached sessions: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// boundedTTL never lets a cache entry outlive the session it describes.
func boundedTTL(entry Entry, ttl time.Duration, now time.Time) time.Duration {
	if remaining := entry.ExpiresAt.Sub(now); !entry.ExpiresAt.IsZero() && remaining < ttl {
		if remaining <= 0 {
			return time.Millisecond
		}
		return remaining
	}
	return ttl
}
