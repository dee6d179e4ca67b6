package livetv

import (
	"context"
	"regexp"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/relaycore/relaycore/models"
)

const (
	maxAuthRetries     = 3
	authRetryBaseDelay = time.Second
	tokenRefreshAfter  = time.Hour
)

// authErrorPattern recognizes the auth-shaped failures the spec calls out
// by substring, matched case-insensitively.
var authErrorPattern = regexp.MustCompile(`(?i)(401|403|token|auth|unauthorized|forbidden)`)

// IsAuthError reports whether err looks like an authentication failure
// rather than a generic transport error.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	return authErrorPattern.MatchString(err.Error())
}

type clientEntry struct {
	mu         sync.Mutex
	token      string
	inUse      int
	lastAuthAt time.Time
}

// ClientPool holds one authenticated client entry per account, with
// at-most-one concurrent handshake per account enforced via singleflight.
type ClientPool struct {
	provider Provider

	mu      sync.Mutex
	clients map[string]*clientEntry

	auth singleflight.Group
}

// NewClientPool builds a ClientPool that authenticates through provider.
func NewClientPool(provider Provider) *ClientPool {
	return &ClientPool{
		provider: provider,
		clients:  make(map[string]*clientEntry),
	}
}

func (p *ClientPool) entryFor(accountID string) *clientEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.clients[accountID]
	if !ok {
		e = &clientEntry{}
		p.clients[accountID] = e
	}
	return e
}

// Token returns a valid token for account, authenticating (or re-using an
// in-flight handshake) as needed. forceRefresh ignores any cached token.
func (p *ClientPool) Token(ctx context.Context, account models.LiveAccount, forceRefresh bool) (string, error) {
	entry := p.entryFor(account.ID)

	entry.mu.Lock()
	needsAuth := forceRefresh || entry.token == "" || time.Since(entry.lastAuthAt) > tokenRefreshAfter
	token := entry.token
	entry.mu.Unlock()

	if !needsAuth {
		return token, nil
	}

	v, err, _ := p.auth.Do(account.ID, func() (interface{}, error) {
		return p.authenticateWithRetry(ctx, account)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (p *ClientPool) authenticateWithRetry(ctx context.Context, account models.LiveAccount) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxAuthRetries; attempt++ {
		if attempt > 0 {
			delay := authRetryBaseDelay << uint(attempt-1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		result := p.provider.Authenticate(ctx, account)
		if result.Success {
			entry := p.entryFor(account.ID)
			entry.mu.Lock()
			entry.token = result.Token
			entry.lastAuthAt = time.Now()
			entry.mu.Unlock()
			return result.Token, nil
		}
		lastErr = result.Err
	}
	return "", lastErr
}

// Invalidate clears the cached token for account, forcing the next Token
// call to re-authenticate.
func (p *ClientPool) Invalidate(accountID string) {
	entry := p.entryFor(accountID)
	entry.mu.Lock()
	entry.token = ""
	entry.mu.Unlock()
}

// Acquire/Release track the in-use count for diagnostics and future
// connection-limiting; they never block.
func (p *ClientPool) Acquire(accountID string) {
	entry := p.entryFor(accountID)
	entry.mu.Lock()
	entry.inUse++
	entry.mu.Unlock()
}

func (p *ClientPool) Release(accountID string) {
	entry := p.entryFor(accountID)
	entry.mu.Lock()
	if entry.inUse > 0 {
		entry.inUse--
	}
	entry.mu.Unlock()
}
