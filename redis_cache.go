package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// metadataCache is an optional Redis-backed cache for metadata lookups.
// When Redis is not configured or unreachable the cache degrades to a no-op
// and every lookup hits yt-dlp.
type metadataCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func newMetadataCache(cfg *Config, log *slog.Logger) *metadataCache {
	c := &metadataCache{ttl: cfg.MetadataCacheTTL, log: log}
	if cfg.RedisAddr == "" {
		return c
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis not available, metadata caching disabled", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return c
	}

	log.Info("redis connected, metadata caching enabled", "addr", cfg.RedisAddr)
	c.client = client
	return c
}

func cacheKey(url string) string {
	return "meta:" + url
}

func (c *metadataCache) Get(ctx context.Context, url string) (*VideoMetadata, bool) {
	if c.client == nil {
		return nil, false
	}
	val, err := c.client.Get(ctx, cacheKey(url)).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("metadata cache read failed", "error", err)
		}
		return nil, false
	}
	var meta VideoMetadata
	if err := json.Unmarshal([]byte(val), &meta); err != nil {
		return nil, false
	}
	return &meta, true
}

func (c *metadataCache) Put(ctx context.Context, url string, meta *VideoMetadata) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(url), data, c.ttl).Err(); err != nil {
		c.log.Warn("metadata cache write failed", "error", err)
	}
}
