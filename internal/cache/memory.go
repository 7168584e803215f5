// Package cache provides signal-bundle caches: an in-process expirable LRU
// for single-node deployments and a Redis cache for shared deployments.
// Keys already include the catalog fingerprint, so entries from a stale
// snapshot are simply never looked up again.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/labsense-server/internal/domain"
)

// MemoryCache is an in-process LRU with per-entry expiry.
type MemoryCache struct {
	lru *expirable.LRU[string, *domain.ClinicalSignals]
	log *logrus.Logger
}

// NewMemoryCache creates a cache with the given capacity and TTL.
func NewMemoryCache(size int, ttl time.Duration, logger *logrus.Logger) *MemoryCache {
	return &MemoryCache{
		lru: expirable.NewLRU[string, *domain.ClinicalSignals](size, nil, ttl),
		log: logger,
	}
}

// Get implements domain.SignalCache.
func (c *MemoryCache) Get(_ context.Context, key string) (*domain.ClinicalSignals, bool) {
	return c.lru.Get(key)
}

// Set implements domain.SignalCache.
func (c *MemoryCache) Set(_ context.Context, key string, signals *domain.ClinicalSignals) {
	c.lru.Add(key, signals)
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Purge drops all entries.
func (c *MemoryCache) Purge() {
	c.lru.Purge()
}
