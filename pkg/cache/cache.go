// Package cache is a small TTL memory cache used to keep hot media
// artifacts out of the database on repeat reads.
package cache

import (
	"sync"
	"time"

	"companion-engine/backend/pkg/config"
)

type entry struct {
	value    interface{}
	expireAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

// Cache is a concurrency-safe map with per-entry TTL and a soft size
// cap. When the cap is reached the entry closest to expiry is evicted.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration
	maxEntries int
}

// NewCache builds a cache from the process config and starts the
// purge loop when a purge window is configured.
func NewCache() *Cache {
	cfg := config.Get()
	c := &Cache{
		entries:    make(map[string]entry),
		defaultTTL: cfg.Cache.TTL,
		maxEntries: cfg.Cache.MaxSize,
	}
	if cfg.Cache.PurgeWindow > 0 {
		go c.purgeLoop(cfg.Cache.PurgeWindow)
	}
	return c
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.SetWithExpiration(key, value, c.defaultTTL)
}

// SetWithExpiration stores value under key; ttl <= 0 means no expiry.
func (c *Cache) SetWithExpiration(key string, value interface{}, ttl time.Duration) {
	var expireAt time.Time
	if ttl > 0 {
		expireAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictSoonest()
	}
	c.entries[key] = entry{value: value, expireAt: expireAt}
}

// Get returns the live value under key.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || e.expired(time.Now()) {
		return nil, false
	}
	return e.value, true
}

// Delete removes key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Flush drops everything.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

func (c *Cache) purgeLoop(window time.Duration) {
	ticker := time.NewTicker(window)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		c.mu.Lock()
		for k, e := range c.entries {
			if e.expired(now) {
				delete(c.entries, k)
			}
		}
		c.mu.Unlock()
	}
}

// evictSoonest removes the entry with the nearest expiry, counting
// no-expiry entries as furthest. Caller holds the lock.
func (c *Cache) evictSoonest() {
	var victim string
	var victimAt time.Time
	first := true
	for k, e := range c.entries {
		at := e.expireAt
		if at.IsZero() {
			continue
		}
		if first || at.Before(victimAt) {
			victim, victimAt, first = k, at, false
		}
	}
	if victim == "" {
		// Everything is permanent; drop an arbitrary entry.
		for k := range c.entries {
			victim = k
			break
		}
	}
	delete(c.entries, victim)
}
