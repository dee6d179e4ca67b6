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

// XStreamProvider implements Provider against Xtream Codes-compatible
// panels, authenticating via player_api.php query parameters rather than a
// handshake token.
type XStreamProvider struct {
	HTTPClient *http.Client
}

// NewXStreamProvider builds an XStreamProvider with a sane default client
// timeout.
func NewXStreamProvider() *XStreamProvider {
	return &XStreamProvider{HTTPClient: &http.Client{Timeout: 15 * time.Second}}
}

func (p *XStreamProvider) Kind() models.ProviderKind { return models.ProviderXStream }

type xstreamUserInfo struct {
	UserInfo struct {
		Auth   int    `json:"auth"`
		Status string `json:"status"`
		ExpDate string `json:"exp_date"`
	} `json:"user_info"`
}

func (p *XStreamProvider) playerAPI(account models.LiveAccount, extra string) string {
	return fmt.Sprintf("%s/player_api.php?username=%s&password=%s%s",
		account.PortalURL, url.QueryEscape(account.Username), url.QueryEscape(account.Password), extra)
}

func (p *XStreamProvider) Authenticate(ctx context.Context, account models.LiveAccount) AuthResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.playerAPI(account, ""), nil)
	if err != nil {
		return AuthResult{Err: err}
	}
	resp, err := FetchFollowingRedirects(p.HTTPClient, req)
	if err != nil {
		return AuthResult{Err: err}
	}
	defer resp.Body.Close()

	var info xstreamUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return AuthResult{Err: fmt.Errorf("livetv: xstream player_api decode: %w", err)}
	}
	if info.UserInfo.Auth != 1 {
		return AuthResult{Err: fmt.Errorf("livetv: xstream auth rejected (status=%s)", info.UserInfo.Status)}
	}

	expiry := time.Now().Add(time.Hour)
	return AuthResult{Success: true, Token: account.Username + ":" + account.Password, TokenExpiry: expiry}
}

func (p *XStreamProvider) TestConnection(ctx context.Context, account models.LiveAccount) ConnectionTestResult {
	auth := p.Authenticate(ctx, account)
	if !auth.Success {
		return ConnectionTestResult{Success: false, Err: auth.Err}
	}
	return ConnectionTestResult{Success: true, Profile: map[string]string{"username": account.Username}}
}

func (p *XStreamProvider) SyncChannels(ctx context.Context, accountID string) SyncResult {
	return SyncResult{Err: fmt.Errorf("livetv: xstream channel sync requires an external persistence collaborator")}
}

// ResolveStreamURL for Xtream Codes is pure URL construction: no handshake
// round trip is required, channelRef is the numeric stream ID.
func (p *XStreamProvider) ResolveStreamURL(ctx context.Context, account models.LiveAccount, channelRef, format string) ResolveResult {
	ext := "ts"
	kind := models.StreamDirect
	if format == "hls" {
		ext = "m3u8"
		kind = models.StreamHLS
	}
	streamURL := fmt.Sprintf("%s/live/%s/%s/%s.%s",
		account.PortalURL, url.PathEscape(account.Username), url.PathEscape(account.Password), url.PathEscape(channelRef), ext)
	return ResolveResult{Success: true, URL: streamURL, Kind: kind}
}
