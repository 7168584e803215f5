package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/labsense-server/internal/domain"
)

const redisKeyPrefix = "labsense:signals:"

// RedisCache is a shared signal-bundle cache. Failures degrade to cache
// misses; Redis being down must never fail an evaluation.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Logger
}

// NewRedisCache connects to Redis using a redis:// URL and verifies the
// connection with a ping.
func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration, logger *logrus.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	logger.WithField("addr", opts.Addr).Info("Redis cache connected")

	return &RedisCache{
		client: client,
		ttl:    ttl,
		log:    logger,
	}, nil
}

// Get implements domain.SignalCache.
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.ClinicalSignals, bool) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).Warn("Redis get failed, treating as miss")
		}
		return nil, false
	}

	var signals domain.ClinicalSignals
	if err := json.Unmarshal(raw, &signals); err != nil {
		c.log.WithError(err).Warn("Corrupt cache entry, treating as miss")
		return nil, false
	}
	return &signals, true
}

// Set implements domain.SignalCache.
func (c *RedisCache) Set(ctx context.Context, key string, signals *domain.ClinicalSignals) {
	raw, err := json.Marshal(signals)
	if err != nil {
		c.log.WithError(err).Warn("Failed to marshal signals for cache")
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, raw, c.ttl).Err(); err != nil {
		c.log.WithError(err).Warn("Redis set failed")
	}
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
