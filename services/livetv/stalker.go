package livetv

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/relaycore/relaycore/models"
)

// StalkerProvider implements Provider against Ministra/Stalker-portal
// middleware, the hardest of the four supported backends.
type StalkerProvider struct {
	HTTPClient *http.Client
}

// NewStalkerProvider builds a StalkerProvider with a sane default client
// timeout.
func NewStalkerProvider() *StalkerProvider {
	return &StalkerProvider{HTTPClient: &http.Client{Timeout: 15 * time.Second}}
}

func (p *StalkerProvider) Kind() models.ProviderKind { return models.ProviderStalker }

type stalkerHandshakeResponse struct {
	JS struct {
		Token      string `json:"token"`
		TokenValid int64  `json:"token_expire"`
	} `json:"js"`
}

func (p *StalkerProvider) Authenticate(ctx context.Context, account models.LiveAccount) AuthResult {
	endpoint := fmt.Sprintf("%s/portal.php?type=stb&action=handshake&mac=%s&JsHttpRequest=1-xml",
		account.PortalURL, url.QueryEscape(account.MAC))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return AuthResult{Err: err}
	}
	resp, err := FetchFollowingRedirects(p.HTTPClient, req)
	if err != nil {
		return AuthResult{Err: err}
	}
	defer resp.Body.Close()

	var parsed stalkerHandshakeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return AuthResult{Err: fmt.Errorf("livetv: stalker handshake decode: %w", err)}
	}
	if parsed.JS.Token == "" {
		return AuthResult{Err: fmt.Errorf("livetv: stalker handshake returned no token")}
	}

	expiry := time.Now().Add(time.Hour)
	if parsed.JS.TokenValid > 0 {
		expiry = time.Unix(parsed.JS.TokenValid, 0)
	}
	return AuthResult{Success: true, Token: parsed.JS.Token, TokenExpiry: expiry}
}

func (p *StalkerProvider) TestConnection(ctx context.Context, account models.LiveAccount) ConnectionTestResult {
	auth := p.Authenticate(ctx, account)
	if !auth.Success {
		return ConnectionTestResult{Success: false, Err: auth.Err}
	}
	return ConnectionTestResult{Success: true, Profile: map[string]string{"mac": account.MAC}}
}

func (p *StalkerProvider) SyncChannels(ctx context.Context, accountID string) SyncResult {
	return SyncResult{Err: fmt.Errorf("livetv: stalker channel sync requires an external persistence collaborator")}
}

func (p *StalkerProvider) ResolveStreamURL(ctx context.Context, account models.LiveAccount, channelRef, format string) ResolveResult {
	endpoint := fmt.Sprintf("%s/portal.php?type=itv&action=create_link&cmd=%s&JsHttpRequest=1-xml",
		account.PortalURL, url.QueryEscape(channelRef))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ResolveResult{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+account.Password)

	resp, err := FetchFollowingRedirects(p.HTTPClient, req)
	if err != nil {
		return ResolveResult{Err: err}
	}
	defer resp.Body.Close()

	var parsed struct {
		JS struct {
			Cmd string `json:"cmd"`
		} `json:"js"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ResolveResult{Err: fmt.Errorf("livetv: stalker create_link decode: %w", err)}
	}
	if parsed.JS.Cmd == "" {
		return ResolveResult{Err: fmt.Errorf("livetv: stalker create_link returned no url")}
	}

	kind := models.StreamDirect
	if format == "hls" {
		kind = models.StreamHLS
	}
	return ResolveResult{Success: true, URL: parsed.JS.Cmd, Kind: kind}
}
