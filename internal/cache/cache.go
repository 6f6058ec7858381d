// Package cache keeps recently produced segmentations in a hot layer in
// front of SQLite.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/topicseg/topicseg-agent/internal/segmentation"
)

const (
	DefaultTTL = 24 * time.Hour
	keyPrefix  = "topicseg:segmentation:"
)

// Cache stores segmentations by video id. Get returns (nil, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, videoID string) (*segmentation.Segmentation, error)
	Set(ctx context.Context, videoID string, seg *segmentation.Segmentation) error
	Delete(ctx context.Context, videoID string) error
	Close() error
}

// Noop is used when no hot cache is configured.
type Noop struct{}

func (Noop) Get(context.Context, string) (*segmentation.Segmentation, error) { return nil, nil }
func (Noop) Set(context.Context, string, *segmentation.Segmentation) error   { return nil }
func (Noop) Delete(context.Context, string) error                            { return nil }
func (Noop) Close() error                                                    { return nil }

// RedisCache stores segmentations as JSON strings with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// ConnectRedis parses a redis:// URL and verifies the server answers PING.
func ConnectRedis(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (r *RedisCache) Get(ctx context.Context, videoID string) (*segmentation.Segmentation, error) {
	data, err := r.client.Get(ctx, Key(videoID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var seg segmentation.Segmentation
	if err := json.Unmarshal(data, &seg); err != nil {
		// unreadable entries are dropped and treated as a miss
		r.client.Del(ctx, Key(videoID))
		return nil, nil
	}
	return &seg, nil
}

func (r *RedisCache) Set(ctx context.Context, videoID string, seg *segmentation.Segmentation) error {
	data, err := json.Marshal(seg)
	if err != nil {
		return fmt.Errorf("marshal segmentation: %w", err)
	}
	if err := r.client.Set(ctx, Key(videoID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, videoID string) error {
	return r.client.Del(ctx, Key(videoID)).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Key is the redis key holding a video's segmentation.
func Key(videoID string) string {
	return keyPrefix + videoID
}
