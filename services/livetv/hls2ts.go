package livetv

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/acomagu/bufpipe"
	"github.com/avast/retry-go/v4"
)

// segmentFetchAttempts bounds the retry-go attempts for a single segment
// fetch before the outer loop's longer backoff takes over.
const segmentFetchAttempts = 3

// hlsRefreshBaseDelay and hlsRefreshMaxDelay bound the exponential backoff
// applied between consecutive playlist-refresh errors.
const (
	hlsRefreshBaseDelay = time.Second
	hlsRefreshMaxDelay  = 30 * time.Second
)

// PlaylistResolver refreshes the single-use HLS playlist URL for a lineup
// item, invalidating any cached URL first so the returned token is new.
type PlaylistResolver interface {
	RefreshPlaylistURL(ctx context.Context, lineupItemID string) (string, error)
}

// HLSToTS converts a lineup item's HLS stream into a continuous MPEG-TS
// byte stream. It returns an io.ReadCloser the caller drains; closing it
// stops the background conversion loop.
//
// bufpipe is used instead of io.Pipe because io.Pipe's Write blocks until a
// reader consumes it, which would stall the segment-fetch goroutine behind
// a slow HTTP client; bufpipe buffers in memory so fetch and drain run
// independently.
func HLSToTS(ctx context.Context, client *http.Client, resolver PlaylistResolver, lineupItemID string) io.ReadCloser {
	pr, pw := bufpipe.New(nil)

	go runHLSLoop(ctx, client, resolver, lineupItemID, pw)

	return pr
}

func runHLSLoop(ctx context.Context, client *http.Client, resolver PlaylistResolver, lineupItemID string, out *bufpipe.PipeWriter) {
	emitted := make(map[string]struct{})
	consecutiveErrors := 0

	for {
		if ctx.Err() != nil {
			out.CloseWithError(ctx.Err())
			return
		}

		playlistURL, err := resolver.RefreshPlaylistURL(ctx, lineupItemID)
		if err != nil {
			if !backoffOrAbort(ctx, &consecutiveErrors) {
				out.CloseWithError(err)
				return
			}
			continue
		}

		finalURL, body, err := fetchPlaylist(ctx, client, playlistURL)
		if err != nil {
			if !backoffOrAbort(ctx, &consecutiveErrors) {
				out.CloseWithError(err)
				return
			}
			continue
		}

		lines, isM3U := readLines(body)
		body.Close()

		if !isM3U {
			if err := streamDegenerate(ctx, client, finalURL, out); err != nil {
				out.CloseWithError(err)
			}
			return
		}

		segmentURLs := parseSegmentURLs(lines, finalURL)
		if len(segmentURLs) == 0 {
			if !backoffOrAbort(ctx, &consecutiveErrors) {
				out.CloseWithError(fmt.Errorf("livetv: empty HLS playlist for %s", lineupItemID))
				return
			}
			continue
		}

		newSegments := false
		for _, segURL := range segmentURLs {
			if _, seen := emitted[segURL]; seen {
				continue
			}
			if err := fetchAndEmitSegment(ctx, client, segURL, out); err != nil {
				out.CloseWithError(err)
				return
			}
			emitted[segURL] = struct{}{}
			newSegments = true
		}

		consecutiveErrors = 0
		if !newSegments {
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				out.CloseWithError(ctx.Err())
				return
			}
		}
	}
}

// backoffOrAbort sleeps for the current exponential backoff and increments
// the error counter; it returns false if the context was cancelled during
// the sleep.
func backoffOrAbort(ctx context.Context, consecutiveErrors *int) bool {
	delay := hlsRefreshBaseDelay << uint(*consecutiveErrors)
	if delay > hlsRefreshMaxDelay {
		delay = hlsRefreshMaxDelay
	}
	*consecutiveErrors++
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

func fetchPlaylist(ctx context.Context, client *http.Client, playlistURL string) (*url.URL, io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := FetchFollowingRedirects(client, req)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, nil, fmt.Errorf("livetv: playlist fetch returned %d", resp.StatusCode)
	}
	return resp.Request.URL, resp.Body, nil
}

func readLines(r io.Reader) ([]string, bool) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	isM3U := len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "#EXTM3U")
	return lines, isM3U
}

func parseSegmentURLs(lines []string, base *url.URL) []string {
	var segments []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		abs, err := base.Parse(line)
		if err != nil {
			log.Printf("[livetv] skipping unparsable HLS segment URL %q: %v", line, err)
			continue
		}
		segments = append(segments, abs.String())
	}
	return segments
}

// fetchAndEmitSegment retries a single segment fetch a handful of times
// with exponential backoff before surfacing the error to the caller, which
// falls back to the loop's own longer backoff between playlist refreshes.
func fetchAndEmitSegment(ctx context.Context, client *http.Client, segURL string, out io.Writer) error {
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, segURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := FetchFollowingRedirects(client, req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("livetv: segment fetch returned %d for %s", resp.StatusCode, segURL)
			}
			_, err = io.Copy(out, resp.Body)
			return err
		},
		retry.Attempts(segmentFetchAttempts),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}

func streamDegenerate(ctx context.Context, client *http.Client, finalURL *url.URL, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL.String(), nil)
	if err != nil {
		return err
	}
	resp, err := FetchFollowingRedirects(client, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(out, resp.Body)
	return err
}
