package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides caching functionality using Redis
type Cache struct {
	client *redis.Client
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Diff Cache Operations

func diffKey(videoID string, prev, version int) string {
	return fmt.Sprintf("diff:%s:%d:%d", videoID, prev, version)
}

// SetDiff caches the rendered diff between two subtitle versions
func (c *Cache) SetDiff(ctx context.Context, videoID string, prev, version int, text string, ttl time.Duration) error {
	return c.client.Set(ctx, diffKey(videoID, prev, version), text, ttl).Err()
}

// GetDiff retrieves a cached diff. found is false on a cache miss.
func (c *Cache) GetDiff(ctx context.Context, videoID string, prev, version int) (string, bool, error) {
	text, err := c.client.Get(ctx, diffKey(videoID, prev, version)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil // Cache miss
		}
		return "", false, fmt.Errorf("failed to get diff from cache: %w", err)
	}
	return text, true, nil
}

// InvalidateDiffs drops every cached diff for a video
func (c *Cache) InvalidateDiffs(ctx context.Context, videoID string) error {
	return c.DeletePattern(ctx, fmt.Sprintf("diff:%s:*", videoID))
}

// Cooldown Operations

// Allow reports whether key may act now and starts its cooldown if so.
// Only one caller per window gets true.
func (c *Cache) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, fmt.Sprintf("cooldown:%s", key), "1", window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cooldown: %w", err)
	}
	return ok, nil
}

// Batch Operations

// DeletePattern deletes all keys matching a pattern
func (c *Cache) DeletePattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}

// Health check
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
