package usenet

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const (
	decodedArticleCacheSize = 200
	decodedArticleTTL       = 5 * time.Minute
)

type decodedEntry struct {
	article   DecodedArticle
	expiresAt time.Time
}

// Manager fetches and decodes NNTP articles through a Pool, with
// single-flight dedup and a decoded-article cache on top — the pool itself
// owns cross-provider retry and failover.
type Manager struct {
	pool *Pool

	flight singleflight.Group

	mu    sync.Mutex
	cache *lru.Cache[string, *decodedEntry]
}

// NewManager builds a Manager over pool.
func NewManager(pool *Pool) *Manager {
	cache, err := lru.New[string, *decodedEntry](decodedArticleCacheSize)
	if err != nil {
		panic(err)
	}
	return &Manager{pool: pool, cache: cache}
}

// GetDecodedArticle returns the decoded article for messageID in nntpGroups,
// coalescing concurrent callers onto a single in-flight fetch and serving
// from the decoded-article cache when possible.
func (m *Manager) GetDecodedArticle(ctx context.Context, messageID string, nntpGroups []string) (DecodedArticle, error) {
	if cached, ok := m.cacheGet(messageID); ok {
		return cached, nil
	}

	v, err, _ := m.flight.Do(messageID, func() (interface{}, error) {
		if cached, ok := m.cacheGet(messageID); ok {
			return cached, nil
		}
		body, fetchErr := m.pool.FetchBody(ctx, messageID, nntpGroups)
		if fetchErr != nil {
			return DecodedArticle{}, &ArticleNotFound{MessageID: messageID, Details: fetchErr.Error()}
		}
		article, decodeErr := DecodeYenc(body)
		if decodeErr != nil {
			return DecodedArticle{}, decodeErr
		}
		m.cachePut(messageID, article)
		return article, nil
	})
	if err != nil {
		return DecodedArticle{}, err
	}
	return v.(DecodedArticle), nil
}

func (m *Manager) cacheGet(messageID string) (DecodedArticle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cache.Get(messageID)
	if !ok {
		return DecodedArticle{}, false
	}
	if time.Now().After(e.expiresAt) {
		m.cache.Remove(messageID)
		return DecodedArticle{}, false
	}
	return e.article, true
}

func (m *Manager) cachePut(messageID string, article DecodedArticle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Add(messageID, &decodedEntry{article: article, expiresAt: time.Now().Add(decodedArticleTTL)})
}

// ArticleNotFound is raised when the pool failed to produce an article
// after trying every provider it knows about.
type ArticleNotFound struct {
	MessageID string
	Details   string
}

func (e *ArticleNotFound) Error() string {
	return "usenet: article not found for " + e.MessageID + ": " + e.Details
}
