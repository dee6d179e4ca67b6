package livetv

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/relaycore/relaycore/models"
)

// IPTVOrgProvider implements Provider against the public iptv-org stream
// index: no account credentials apply, channelRef is the iptv-org channel
// ID, and the "account" only carries the index base URL so the same
// provider kind still fits the Accounts/ClientPool plumbing.
type IPTVOrgProvider struct {
	HTTPClient *http.Client
}

// NewIPTVOrgProvider builds an IPTVOrgProvider with a sane default client
// timeout.
func NewIPTVOrgProvider() *IPTVOrgProvider {
	return &IPTVOrgProvider{HTTPClient: &http.Client{Timeout: 15 * time.Second}}
}

func (p *IPTVOrgProvider) Kind() models.ProviderKind { return models.ProviderIPTVOrg }

// Authenticate sends no credentials: it succeeds once a HEAD request to the
// configured index base URL is answered.
func (p *IPTVOrgProvider) Authenticate(ctx context.Context, account models.LiveAccount) AuthResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, account.PortalURL, nil)
	if err != nil {
		return AuthResult{Err: err}
	}
	resp, err := FetchFollowingRedirects(p.HTTPClient, req)
	if err != nil {
		return AuthResult{Err: err}
	}
	resp.Body.Close()
	return AuthResult{Success: true, Token: "public", TokenExpiry: time.Now().Add(24 * time.Hour)}
}

func (p *IPTVOrgProvider) TestConnection(ctx context.Context, account models.LiveAccount) ConnectionTestResult {
	auth := p.Authenticate(ctx, account)
	if !auth.Success {
		return ConnectionTestResult{Success: false, Err: auth.Err}
	}
	return ConnectionTestResult{Success: true, Profile: map[string]string{"index": account.PortalURL}}
}

func (p *IPTVOrgProvider) SyncChannels(ctx context.Context, accountID string) SyncResult {
	return SyncResult{Err: fmt.Errorf("livetv: iptv-org channel sync requires an external persistence collaborator")}
}

// ResolveStreamURL constructs the direct stream URL from iptv-org's
// well-known per-channel naming convention (channelRef.m3u8 under the
// configured index base).
func (p *IPTVOrgProvider) ResolveStreamURL(ctx context.Context, account models.LiveAccount, channelRef, format string) ResolveResult {
	streamURL := fmt.Sprintf("%s/%s.m3u8", account.PortalURL, channelRef)
	return ResolveResult{Success: true, URL: streamURL, Kind: models.StreamHLS}
}
