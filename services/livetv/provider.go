// Package livetv resolves lineup items into playable stream URLs across
// Stalker, Xtream, M3U, and iptv.org-shaped portal backends, with SSRF
// validation and HLS-to-TS / direct-stream reconnect wrappers for the
// resulting media.
package livetv

import (
	"context"
	"time"

	"github.com/relaycore/relaycore/models"
)

// AuthResult is the outcome of Provider.Authenticate.
type AuthResult struct {
	Success     bool
	Token       string
	TokenExpiry time.Time
	Err         error
}

// ConnectionTestResult is the outcome of Provider.TestConnection.
type ConnectionTestResult struct {
	Success bool
	Profile map[string]string
	Err     error
}

// SyncResult is the outcome of Provider.SyncChannels.
type SyncResult struct {
	CategoriesAdded   int
	CategoriesUpdated int
	ChannelsAdded     int
	ChannelsUpdated   int
	ChannelsRemoved   int
	Duration          time.Duration
	Err               error
}

// ResolveResult is the outcome of Provider.ResolveStreamURL.
type ResolveResult struct {
	Success bool
	URL     string
	Kind    models.StreamKind
	Headers map[string]string
	Err     error
}

// Provider is the external per-portal-kind collaborator this package
// dispatches to. One concrete implementation exists per models.ProviderKind.
type Provider interface {
	Kind() models.ProviderKind
	Authenticate(ctx context.Context, account models.LiveAccount) AuthResult
	TestConnection(ctx context.Context, account models.LiveAccount) ConnectionTestResult
	SyncChannels(ctx context.Context, accountID string) SyncResult
	ResolveStreamURL(ctx context.Context, account models.LiveAccount, channelRef, format string) ResolveResult
}

// EpgProvider is an optional capability a Provider may additionally
// implement.
type EpgProvider interface {
	FetchEpg(ctx context.Context, account models.LiveAccount, from, to time.Time) ([]models.EpgProgram, error)
}

// ArchiveProvider is an optional capability for providers offering
// timeshift/catch-up playback.
type ArchiveProvider interface {
	GetArchiveStreamURL(ctx context.Context, account models.LiveAccount, channelRef string, at time.Time) ResolveResult
}
