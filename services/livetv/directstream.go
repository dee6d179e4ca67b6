package livetv

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/acomagu/bufpipe"
)

const (
	directBackoffBase   = time.Second
	directBackoffMax    = 30 * time.Second
	dataTimeout         = 10 * time.Second
	firstByteTimeout    = 15 * time.Second
	maxReconnects       = 500
	healthCheckInterval = time.Second
)

// DirectURLResolver fetches a fresh direct-stream URL when a reconnect is
// needed.
type DirectURLResolver interface {
	RefreshDirectURL(ctx context.Context, lineupItemID string) (string, error)
}

// DirectStream wraps a direct TS upstream fetch in a reconnect loop: bytes
// are emitted verbatim and never replayed across a reconnect, since replay
// causes backwards-skip glitches in players.
func DirectStream(ctx context.Context, client *http.Client, resolver DirectURLResolver, lineupItemID string) io.ReadCloser {
	pr, pw := bufpipe.New(nil)
	go runDirectLoop(ctx, client, resolver, lineupItemID, pw)
	return pr
}

func runDirectLoop(ctx context.Context, client *http.Client, resolver DirectURLResolver, lineupItemID string, out *bufpipe.PipeWriter) {
	backoff := time.Duration(0)
	reconnects := 0

	for {
		if ctx.Err() != nil {
			out.CloseWithError(ctx.Err())
			return
		}
		if reconnects >= maxReconnects {
			out.CloseWithError(fmt.Errorf("livetv: exceeded max reconnects (%d) for %s", maxReconnects, lineupItemID))
			return
		}

		if backoff > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				out.CloseWithError(ctx.Err())
				return
			}
		}

		url, err := resolver.RefreshDirectURL(ctx, lineupItemID)
		if err != nil {
			reconnects++
			backoff = nextBackoff(backoff)
			continue
		}

		normalEOF, streamErr := streamOnce(ctx, client, url, out)
		reconnects++

		if streamErr != nil {
			backoff = nextBackoff(backoff)
			continue
		}
		if normalEOF {
			backoff = 0
			continue
		}
		// context cancelled mid-stream
		out.CloseWithError(ctx.Err())
		return
	}
}

func nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return directBackoffBase
	}
	next := current * 2
	if next > directBackoffMax {
		return directBackoffMax
	}
	return next
}

// streamOnce copies one connection's body to out, enforcing the
// before-first-byte and between-bytes health-check timeouts. It returns
// normalEOF=true when the upstream closed cleanly.
func streamOnce(ctx context.Context, client *http.Client, url string, out io.Writer) (normalEOF bool, err error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := FetchFollowingRedirects(client, req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("livetv: direct stream returned %d", resp.StatusCode)
	}

	lastByte := make(chan struct{}, 1)
	done := make(chan struct{})
	defer close(done)

	go healthCheck(streamCtx, cancel, lastByte, done)

	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return false, werr
			}
			select {
			case lastByte <- struct{}{}:
			default:
			}
		}
		if readErr == io.EOF {
			return true, nil
		}
		if readErr != nil {
			return false, readErr
		}
	}
}

func healthCheck(ctx context.Context, cancel context.CancelFunc, lastByte <-chan struct{}, done <-chan struct{}) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	deadline := time.Now().Add(firstByteTimeout)

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-lastByte:
			deadline = time.Now().Add(dataTimeout)
		case <-ticker.C:
			if time.Now().After(deadline) {
				cancel()
				return
			}
		}
	}
}
