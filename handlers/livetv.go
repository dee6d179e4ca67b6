package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relaycore/relaycore/models"
	"github.com/relaycore/relaycore/services/livetv"
)

// LineupLookup resolves a lineup ID to the persisted LineupItem; owned by
// an external persistence collaborator.
type LineupLookup interface {
	GetLineupItem(id string) (models.LineupItem, bool)
}

// LiveTVHandler serves the /livetv/stream surface.
type LiveTVHandler struct {
	Lineups  LineupLookup
	Resolver *livetv.Resolver
	Client   *http.Client
}

func writeCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "*")
}

func contentTypeForFormat(format string) string {
	if format == "hls" {
		return "application/vnd.apple.mpegurl"
	}
	return "video/mp2t"
}

// Options handles CORS preflight.
func (h *LiveTVHandler) Options(w http.ResponseWriter, r *http.Request) {
	writeCORS(w)
	w.WriteHeader(http.StatusNoContent)
}

// Head mirrors the content-type the corresponding GET would produce.
func (h *LiveTVHandler) Head(w http.ResponseWriter, r *http.Request) {
	writeCORS(w)
	format := r.URL.Query().Get("format")
	w.Header().Set("Content-Type", contentTypeForFormat(format))
	w.WriteHeader(http.StatusOK)
}

// Stream serves GET /livetv/stream/:lineupId.
func (h *LiveTVHandler) Stream(w http.ResponseWriter, r *http.Request) {
	writeCORS(w)
	lineupID := mux.Vars(r)["lineupId"]
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "ts"
	}

	item, ok := h.Lineups.GetLineupItem(lineupID)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "lineup item not found")
		return
	}

	resolved, err := h.Resolver.Resolve(r.Context(), item, format)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, "All sources failed: "+err.Error())
		return
	}

	switch format {
	case "hls":
		h.serveHLS(w, r, item, resolved)
	default:
		h.serveTS(w, r, item, resolved)
	}
}

func (h *LiveTVHandler) serveTS(w http.ResponseWriter, r *http.Request, item models.LineupItem, resolved models.ResolvedStreamUrl) {
	w.Header().Set("Content-Type", "video/mp2t")
	w.Header().Set("Transfer-Encoding", "chunked")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	var body io.ReadCloser
	if resolved.Kind == models.StreamHLS {
		body = livetv.HLSToTS(r.Context(), h.Client, &lineupPlaylistResolver{h: h, item: item}, item.ID)
	} else {
		body = livetv.DirectStream(r.Context(), h.Client, &lineupDirectResolver{h: h, item: item}, item.ID)
	}
	defer body.Close()

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}

func (h *LiveTVHandler) serveHLS(w http.ResponseWriter, r *http.Request, item models.LineupItem, resolved models.ResolvedStreamUrl) {
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "public, max-age=2, stale-while-revalidate=5")
	w.WriteHeader(http.StatusOK)
	// The upstream playlist is not proxied or rewritten; the response is a
	// one-entry playlist pointing straight at the resolved URL.
	w.Write([]byte("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=0\n" + resolved.URL + "\n"))
}

type lineupPlaylistResolver struct {
	h    *LiveTVHandler
	item models.LineupItem
}

func (l *lineupPlaylistResolver) RefreshPlaylistURL(ctx context.Context, lineupItemID string) (string, error) {
	l.h.Resolver.URLs.Invalidate(l.item.AccountID, l.item.ChannelRef)
	resolved, err := l.h.Resolver.Resolve(ctx, l.item, "hls")
	if err != nil {
		return "", err
	}
	return resolved.URL, nil
}

type lineupDirectResolver struct {
	h    *LiveTVHandler
	item models.LineupItem
}

func (l *lineupDirectResolver) RefreshDirectURL(ctx context.Context, lineupItemID string) (string, error) {
	l.h.Resolver.URLs.Invalidate(l.item.AccountID, l.item.ChannelRef)
	resolved, err := l.h.Resolver.Resolve(ctx, l.item, "ts")
	if err != nil {
		return "", err
	}
	return resolved.URL, nil
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
