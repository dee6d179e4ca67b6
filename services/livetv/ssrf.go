package livetv

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// maxRedirectHops caps manual redirect following so a malicious or
// misconfigured upstream can't loop the resolver forever.
const maxRedirectHops = 5

// blockedNetworks are the loopback/private/link-local ranges a resolved
// stream URL (or any redirect target) must never land in.
var blockedNetworks = mustParseCIDRs(
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
	"0.0.0.0/8",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(fmt.Sprintf("livetv: invalid SSRF block-list CIDR %q: %v", c, err))
		}
		nets = append(nets, n)
	}
	return nets
}

// ErrSSRFBlocked is returned when a URL resolves to a blocked address.
type ErrSSRFBlocked struct {
	URL    string
	Reason string
}

func (e *ErrSSRFBlocked) Error() string {
	return fmt.Sprintf("ssrf blocked: %s: %s", e.URL, e.Reason)
}

// ValidateURL resolves rawURL's host via DNS and rejects it if any resolved
// address falls in a blocked range. Hostnames are canonicalized through
// IDNA before resolution so homograph/punycode tricks can't bypass the
// block-list.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &ErrSSRFBlocked{URL: rawURL, Reason: "unparsable URL: " + err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ErrSSRFBlocked{URL: rawURL, Reason: "unsupported scheme " + u.Scheme}
	}

	host := u.Hostname()
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return &ErrSSRFBlocked{URL: rawURL, Reason: "invalid hostname: " + err.Error()}
	}

	if ip := net.ParseIP(ascii); ip != nil {
		if blocked(ip) {
			return &ErrSSRFBlocked{URL: rawURL, Reason: "literal IP in blocked range"}
		}
		return nil
	}

	addrs, err := net.LookupIP(ascii)
	if err != nil {
		return &ErrSSRFBlocked{URL: rawURL, Reason: "dns lookup failed: " + err.Error()}
	}
	for _, a := range addrs {
		if blocked(a) {
			return &ErrSSRFBlocked{URL: rawURL, Reason: "resolves to blocked address " + a.String()}
		}
	}
	return nil
}

func blocked(ip net.IP) bool {
	for _, n := range blockedNetworks {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// FetchFollowingRedirects issues req (with its own method; redirect hops are
// GETs), manually validating and following redirects up to maxRedirectHops,
// with a visited-set to break loops. Each hop is SSRF-validated before the request is issued.
func FetchFollowingRedirects(client *http.Client, req *http.Request) (*http.Response, error) {
	visited := make(map[string]struct{})
	current := req

	for hop := 0; ; hop++ {
		if hop > maxRedirectHops {
			return nil, fmt.Errorf("livetv: exceeded %d redirect hops", maxRedirectHops)
		}

		key := strings.ToLower(current.URL.String())
		if _, ok := visited[key]; ok {
			return nil, fmt.Errorf("livetv: redirect loop detected at %s", key)
		}
		visited[key] = struct{}{}

		if err := ValidateURL(current.URL.String()); err != nil {
			return nil, err
		}

		noRedirectClient := *client
		noRedirectClient.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}

		resp, err := noRedirectClient.Do(current)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 300 || resp.StatusCode >= 400 {
			return resp, nil
		}

		loc := resp.Header.Get("Location")
		resp.Body.Close()
		if loc == "" {
			return nil, fmt.Errorf("livetv: redirect status %d with no Location", resp.StatusCode)
		}

		nextURL, err := current.URL.Parse(loc)
		if err != nil {
			return nil, fmt.Errorf("livetv: invalid redirect Location %q: %w", loc, err)
		}

		nextReq, err := http.NewRequestWithContext(current.Context(), http.MethodGet, nextURL.String(), nil)
		if err != nil {
			return nil, err
		}
		current = nextReq
	}
}
