// Package releasecache memoizes search results behind a fingerprint derived
// from the normalized search criteria, so identical searches within the TTL
// window skip the indexer fan-out entirely.
package releasecache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/relaycore/relaycore/models"
)

// cacheVersion is bumped whenever the fingerprint shape or semantics change,
// invalidating every previously stored entry implicitly (they simply stop
// matching any newly derived fingerprint).
const cacheVersion = 1

type entry struct {
	result    models.EnhancedSearchResult
	expiresAt time.Time
}

// Cache is a TTL + LRU memoization layer over models.EnhancedSearchResult,
// keyed by a fingerprint of the normalized search criteria.
type Cache struct {
	mu    sync.Mutex
	lru   *lru.Cache[string, *entry]
	ttl   time.Duration
}

// New builds a Cache with the given capacity and TTL. Capacity defaults to
// 500 and ttl to 5 minutes when non-positive.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 500
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	l, err := lru.New[string, *entry](capacity)
	if err != nil {
		// Only returns an error for a non-positive size, which is excluded
		// above.
		panic(err)
	}
	return &Cache{lru: l, ttl: ttl}
}

// Fingerprint derives the stable cache key for criteria. Absent
// type-specific fields are omitted rather than serialized as empty, so
// semantically equivalent criteria collide on the same key.
func Fingerprint(criteria models.SearchCriteria) string {
	var b strings.Builder
	fmt.Fprintf(&b, "_v=%d;", cacheVersion)
	fmt.Fprintf(&b, "type=%s;", criteria.SearchType)
	fmt.Fprintf(&b, "q=%s;", strings.ToLower(strings.TrimSpace(criteria.Query)))

	cats := append([]int(nil), criteria.Categories...)
	sort.Ints(cats)
	b.WriteString("c=")
	for i, c := range cats {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", c)
	}
	b.WriteByte(';')

	ids := append([]string(nil), criteria.IndexerIDs...)
	sort.Strings(ids)
	fmt.Fprintf(&b, "i=%s;", strings.Join(ids, ","))

	switch criteria.SearchType {
	case models.SearchTypeMovie:
		writeIfSet(&b, "imdb", criteria.IMDBID)
		writeIfSet(&b, "tmdb", criteria.TMDBID)
		if criteria.Year > 0 {
			fmt.Fprintf(&b, "year=%d;", criteria.Year)
		}
	case models.SearchTypeTV:
		writeIfSet(&b, "imdb", criteria.IMDBID)
		writeIfSet(&b, "tmdb", criteria.TMDBID)
		writeIfSet(&b, "tvdb", criteria.TVDBID)
		if criteria.Season != nil {
			fmt.Fprintf(&b, "s=%d;", *criteria.Season)
		}
		if criteria.Episode != nil {
			fmt.Fprintf(&b, "e=%d;", *criteria.Episode)
		}
	case models.SearchTypeMusic:
		writeIfSet(&b, "artist", criteria.Artist)
		writeIfSet(&b, "album", criteria.Album)
	case models.SearchTypeBook:
		writeIfSet(&b, "author", criteria.Author)
		writeIfSet(&b, "title", criteria.Title)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}

func writeIfSet(b *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s=%s;", key, value)
}

// Get returns a cached result for criteria if a live, unexpired entry
// exists. A hit refreshes its LRU position; a found-but-expired entry is
// removed and reported as a miss.
func (c *Cache) Get(criteria models.SearchCriteria) (models.EnhancedSearchResult, bool) {
	key := Fingerprint(criteria)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		return models.EnhancedSearchResult{}, false
	}
	if time.Now().After(e.expiresAt) {
		c.lru.Remove(key)
		return models.EnhancedSearchResult{}, false
	}
	result := e.result
	result.FromCache = true
	return result, true
}

// Put stores result under criteria's fingerprint, evicting the least
// recently used entry if the cache is at capacity.
func (c *Cache) Put(criteria models.SearchCriteria, result models.EnhancedSearchResult) {
	key := Fingerprint(criteria)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(key, &entry{result: result, expiresAt: time.Now().Add(c.ttl)})
}

// Sweep removes every expired entry. Intended to run on a periodic ticker;
// it never holds the lock for longer than a single pass over the current
// key set.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	keys := c.lru.Keys()
	now := time.Now()
	removed := 0
	for _, k := range keys {
		e, ok := c.lru.Peek(k)
		if !ok {
			continue
		}
		if now.After(e.expiresAt) {
			c.lru.Remove(k)
			removed++
		}
	}
	c.mu.Unlock()
	return removed
}

// RunSweeper starts a goroutine that calls Sweep on the given interval until
// stop is closed. Interval defaults to 60s when non-positive.
func (c *Cache) RunSweeper(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
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
