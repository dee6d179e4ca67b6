package livetv

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/relaycore/relaycore/models"
)

const (
	urlCacheCapacity = 200
	hlsTTL           = time.Hour
	directTTL        = 30 * time.Minute
)

type urlCacheKey struct {
	accountID  string
	channelRef string
}

// URLCache memoizes resolved stream URLs by (accountID, channelRef), TTL'd
// by stream kind.
type URLCache struct {
	mu  sync.Mutex
	lru *lru.Cache[urlCacheKey, models.ResolvedStreamUrl]
}

// NewURLCache builds a URLCache at the documented 200-entry capacity.
func NewURLCache() *URLCache {
	c, err := lru.New[urlCacheKey, models.ResolvedStreamUrl](urlCacheCapacity)
	if err != nil {
		panic(err)
	}
	return &URLCache{lru: c}
}

// Get returns a live cached entry, lazily evicting it if expired.
func (c *URLCache) Get(accountID, channelRef string) (models.ResolvedStreamUrl, bool) {
	key := urlCacheKey{accountID, channelRef}

	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(key)
	if !ok {
		return models.ResolvedStreamUrl{}, false
	}
	if time.Now().After(v.ExpiresAt) {
		c.lru.Remove(key)
		return models.ResolvedStreamUrl{}, false
	}
	return v, true
}

// Put stores a resolved URL, computing ExpiresAt from its Kind if not
// already set.
func (c *URLCache) Put(accountID, channelRef string, resolved models.ResolvedStreamUrl) {
	if resolved.ExpiresAt.IsZero() {
		resolved.ExpiresAt = time.Now().Add(ttlForKind(resolved.Kind))
	}

	key := urlCacheKey{accountID, channelRef}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, resolved)
}

// Invalidate evicts a single cached entry, so the next lookup for that
// channel resolves a fresh URL.
func (c *URLCache) Invalidate(accountID, channelRef string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(urlCacheKey{accountID, channelRef})
}

// InvalidateAccount evicts every cached URL belonging to accountID.
func (c *URLCache) InvalidateAccount(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.lru.Keys() {
		if k.accountID == accountID {
			c.lru.Remove(k)
		}
	}
}

// Sweep removes every expired entry.
func (c *URLCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	now := time.Now()
	for _, k := range c.lru.Keys() {
		v, ok := c.lru.Peek(k)
		if ok && now.After(v.ExpiresAt) {
			c.lru.Remove(k)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps every 60s until stop is closed.
func (c *URLCache) RunSweeper(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

func ttlForKind(kind models.StreamKind) time.Duration {
	switch kind {
	case models.StreamHLS:
		return hlsTTL
	case models.StreamDirect:
		return directTTL
	default:
		return directTTL
	}
}
