// Package cache provides the short-lived in-process response cache shared by
// every proxy endpoint. Entries expire passively after a fixed TTL; a
// background janitor removes dead entries so the map stays bounded.
package cache

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a TTL keyed store for computed endpoint responses.
type Cache struct {
	ttl   time.Duration
	nowFn func() time.Time

	mu      sync.RWMutex
	entries map[string]entry

	stopOnce sync.Once
	stop     chan struct{}
}

// New constructs a Cache with the given TTL. nowFn may be nil outside tests.
func New(ttl time.Duration, nowFn func() time.Time) *Cache {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Cache{
		ttl:     ttl,
		nowFn:   nowFn,
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
	}
}

// Get returns the cached value for key, or ok=false when the key is absent
// or its entry has expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	ent, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.nowFn().After(ent.expiresAt) {
		return nil, false
	}
	return ent.value, true
}

// Set stores value under key with expiry now+TTL, overwriting any previous
// entry.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.nowFn().Add(c.ttl)}
	c.mu.Unlock()
}

// Len reports the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StartJanitor launches a background sweep that drops expired entries at TTL
// cadence. Stop terminates it.
func (c *Cache) StartJanitor() {
	go func() {
		ticker := time.NewTicker(c.ttl)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sweep()
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop terminates the janitor. Safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) sweep() {
	now := c.nowFn()
	c.mu.Lock()
	for key, ent := range c.entries {
		if now.After(ent.expiresAt) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// Key builders. Keys are derived from the semantically relevant request
// parameters only, normalized so equivalent queries share an entry.

// UserIDKey keys an identity lookup by lower-cased username.
func UserIDKey(username string) string {
	return "user_id_" + strings.ToLower(strings.TrimSpace(username))
}

// PresenceKey keys a presence lookup by the given userId list.
func PresenceKey(userIDs []int64) string {
	parts := make([]string, len(userIDs))
	for i, id := range userIDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "presence_" + strings.Join(parts, "_")
}

// ServersKey keys a server-list page by placeId and continuation cursor.
func ServersKey(placeID int64, cursor string) string {
	return "servers_" + strconv.FormatInt(placeID, 10) + "_" + cursor
}

// ThumbnailKey keys a thumbnail lookup by userId, size and crop type.
func ThumbnailKey(userID int64, size, thumbType string) string {
	return "thumb_" + strconv.FormatInt(userID, 10) + "_" + size + "_" + thumbType
}
