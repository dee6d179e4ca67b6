package livetv

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/relaycore/relaycore/models"
)

// M3UProvider implements Provider against a static M3U playlist URL: there
// is no handshake, so channelRef is the playlist entry's tvg-id and
// Authenticate only confirms the playlist is reachable.
type M3UProvider struct {
	HTTPClient *http.Client

	mu        sync.Mutex
	playlists map[string][]m3uEntry
	fetchedAt map[string]time.Time
}

type m3uEntry struct {
	TVGID string
	Name  string
	URL   string
}

const m3uPlaylistTTL = 30 * time.Minute

// NewM3UProvider builds an M3UProvider with a sane default client timeout.
func NewM3UProvider() *M3UProvider {
	return &M3UProvider{
		HTTPClient: &http.Client{Timeout: 20 * time.Second},
		playlists:  make(map[string][]m3uEntry),
		fetchedAt:  make(map[string]time.Time),
	}
}

func (p *M3UProvider) Kind() models.ProviderKind { return models.ProviderM3U }

func (p *M3UProvider) Authenticate(ctx context.Context, account models.LiveAccount) AuthResult {
	entries, err := p.loadPlaylist(ctx, account)
	if err != nil {
		return AuthResult{Err: err}
	}
	if len(entries) == 0 {
		return AuthResult{Err: fmt.Errorf("livetv: m3u playlist at %s contained no entries", account.PortalURL)}
	}
	return AuthResult{Success: true, Token: account.PortalURL, TokenExpiry: time.Now().Add(m3uPlaylistTTL)}
}

func (p *M3UProvider) TestConnection(ctx context.Context, account models.LiveAccount) ConnectionTestResult {
	auth := p.Authenticate(ctx, account)
	if !auth.Success {
		return ConnectionTestResult{Success: false, Err: auth.Err}
	}
	return ConnectionTestResult{Success: true, Profile: map[string]string{"playlistUrl": account.PortalURL}}
}

func (p *M3UProvider) SyncChannels(ctx context.Context, accountID string) SyncResult {
	return SyncResult{Err: fmt.Errorf("livetv: m3u channel sync requires an external persistence collaborator")}
}

// ResolveStreamURL looks up channelRef (the tvg-id) in the cached parse of
// the account's playlist, re-fetching it if stale.
func (p *M3UProvider) ResolveStreamURL(ctx context.Context, account models.LiveAccount, channelRef, format string) ResolveResult {
	entries, err := p.loadPlaylist(ctx, account)
	if err != nil {
		return ResolveResult{Err: err}
	}
	for _, e := range entries {
		if e.TVGID == channelRef {
			kind := models.StreamDirect
			if strings.HasSuffix(strings.ToLower(e.URL), ".m3u8") || format == "hls" {
				kind = models.StreamHLS
			}
			return ResolveResult{Success: true, URL: e.URL, Kind: kind}
		}
	}
	return ResolveResult{Err: fmt.Errorf("livetv: m3u channel %q not found in playlist", channelRef)}
}

func (p *M3UProvider) loadPlaylist(ctx context.Context, account models.LiveAccount) ([]m3uEntry, error) {
	p.mu.Lock()
	if entries, ok := p.playlists[account.ID]; ok && time.Since(p.fetchedAt[account.ID]) < m3uPlaylistTTL {
		p.mu.Unlock()
		return entries, nil
	}
	p.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, account.PortalURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := FetchFollowingRedirects(p.HTTPClient, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	entries := parseM3U(resp.Body)

	p.mu.Lock()
	p.playlists[account.ID] = entries
	p.fetchedAt[account.ID] = time.Now()
	p.mu.Unlock()

	return entries, nil
}

func parseM3U(r interface{ Read([]byte) (int, error) }) []m3uEntry {
	var entries []m3uEntry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var pending m3uEntry
	havePending := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "#EXTINF:"):
			pending = m3uEntry{TVGID: extractAttr(line, "tvg-id"), Name: extractExtInfName(line)}
			havePending = true
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		default:
			if havePending {
				pending.URL = line
				entries = append(entries, pending)
				havePending = false
			}
		}
	}
	return entries
}

func extractAttr(extinf, attr string) string {
	needle := attr + `="`
	idx := strings.Index(extinf, needle)
	if idx < 0 {
		return ""
	}
	rest := extinf[idx+len(needle):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return rest[:end]
}

func extractExtInfName(extinf string) string {
	comma := strings.LastIndex(extinf, ",")
	if comma < 0 || comma+1 >= len(extinf) {
		return ""
	}
	return strings.TrimSpace(extinf[comma+1:])
}
