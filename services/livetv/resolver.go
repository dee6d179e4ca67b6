package livetv

import (
	"context"
	"fmt"
	"time"

	"github.com/relaycore/relaycore/models"
)

// AccountLookup resolves an account ID to its credentials; owned by an
// external persistence collaborator.
type AccountLookup interface {
	GetAccount(accountID string) (models.LiveAccount, bool)
}

// Resolver resolves a LineupItem into a playable, SSRF-validated stream URL,
// failing over across the item's ordered backups.
type Resolver struct {
	Accounts  AccountLookup
	Providers map[models.ProviderKind]Provider
	Pools     map[models.ProviderKind]*ClientPool
	URLs      *URLCache
}

// NewResolver wires a resolver over the given providers, building one
// ClientPool per provider kind.
func NewResolver(accounts AccountLookup, providers map[models.ProviderKind]Provider) *Resolver {
	pools := make(map[models.ProviderKind]*ClientPool, len(providers))
	for kind, p := range providers {
		pools[kind] = NewClientPool(p)
	}
	return &Resolver{Accounts: accounts, Providers: providers, Pools: pools, URLs: NewURLCache()}
}

// Resolve walks the lineup item's primary source followed by its ordered
// backups, returning the first successfully resolved and SSRF-validated
// URL. Auth-shaped errors invalidate the pooled client token and every
// cached URL of that source's account, re-authenticate through the client
// pool, and are retried once before moving on.
func (r *Resolver) Resolve(ctx context.Context, item models.LineupItem, format string) (models.ResolvedStreamUrl, error) {
	sources := append([]models.LineupBackup{{
		Priority:     0,
		AccountID:    item.AccountID,
		ProviderType: item.ProviderType,
		ChannelRef:   item.ChannelRef,
	}}, item.Backups...)

	var lastErr error
	for _, src := range sources {
		url, err := r.resolveSource(ctx, src.AccountID, src.ProviderType, src.ChannelRef, format)
		if err == nil {
			return url, nil
		}
		lastErr = err
	}
	return models.ResolvedStreamUrl{}, fmt.Errorf("livetv: all sources failed: %w", lastErr)
}

func (r *Resolver) resolveSource(ctx context.Context, accountID string, kind models.ProviderKind, channelRef, format string) (models.ResolvedStreamUrl, error) {
	if cached, ok := r.URLs.Get(accountID, channelRef); ok {
		return cached, nil
	}

	provider, ok := r.Providers[kind]
	if !ok {
		return models.ResolvedStreamUrl{}, fmt.Errorf("livetv: no provider registered for %s", kind)
	}
	account, ok := r.Accounts.GetAccount(accountID)
	if !ok {
		return models.ResolvedStreamUrl{}, fmt.Errorf("livetv: unknown account %s", accountID)
	}

	result := provider.ResolveStreamURL(ctx, account, channelRef, format)
	if !result.Success || result.Err != nil {
		if IsAuthError(result.Err) {
			if pool, ok := r.Pools[kind]; ok {
				pool.Invalidate(accountID)
				if _, err := pool.Token(ctx, account, true); err != nil {
					return models.ResolvedStreamUrl{}, err
				}
			}
			r.URLs.InvalidateAccount(accountID)
			result = provider.ResolveStreamURL(ctx, account, channelRef, format)
		}
		if !result.Success || result.Err != nil {
			return models.ResolvedStreamUrl{}, result.Err
		}
	}

	if err := ValidateURL(result.URL); err != nil {
		return models.ResolvedStreamUrl{}, err
	}

	resolved := models.ResolvedStreamUrl{URL: result.URL, Kind: result.Kind, ProviderHeaders: result.Headers}
	r.URLs.Put(accountID, channelRef, resolved)
	return resolved, nil
}

// FetchEpg dispatches to the optional EpgProvider capability of the
// registered provider for kind, if implemented.
func (r *Resolver) FetchEpg(ctx context.Context, accountID string, kind models.ProviderKind, from, to time.Time) ([]models.EpgProgram, error) {
	provider, ok := r.Providers[kind]
	if !ok {
		return nil, fmt.Errorf("livetv: no provider registered for %s", kind)
	}
	epgProvider, ok := provider.(EpgProvider)
	if !ok {
		return nil, fmt.Errorf("livetv: provider %s does not support EPG", kind)
	}
	account, ok := r.Accounts.GetAccount(accountID)
	if !ok {
		return nil, fmt.Errorf("livetv: unknown account %s", accountID)
	}
	return epgProvider.FetchEpg(ctx, account, from, to)
}
