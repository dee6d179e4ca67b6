package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/relaycore/relaycore/services/usenet"
)

// UsenetHandler serves the /usenet/stream surface.
type UsenetHandler struct {
	Service *usenet.Service
}

// Stream serves GET and HEAD /usenet/stream/{mountId}/{fileIndex}.
func (h *UsenetHandler) Stream(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	mountID := vars["mountId"]
	fileIndex, err := strconv.Atoi(vars["fileIndex"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid file index")
		return
	}

	rangeHeader := r.Header.Get("Range")
	stream, rng, total, err := h.Service.OpenStream(r.Context(), mountID, fileIndex, rangeHeader)

	var invalidRange *usenet.ErrInvalidRange
	switch {
	case errors.Is(err, usenet.ErrMountNotFound):
		writeJSONError(w, http.StatusNotFound, "mount not found")
		return
	case errors.Is(err, usenet.ErrRequiresExtraction):
		writeJSONError(w, http.StatusForbidden, "mount requires extraction before it can be streamed")
		return
	case errors.As(err, &invalidRange):
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", total))
		writeJSONError(w, http.StatusRequestedRangeNotSatisfiable, invalidRange.Error())
		return
	case err != nil:
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	defer h.Service.CloseStream(mountID, fileIndex)

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", "application/octet-stream")

	length := rng.End - rng.Start + 1
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))

	if rangeHeader != "" {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.Start, rng.End, total))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if r.Method == http.MethodHead {
		return
	}

	_, _ = stream.WriteTo(r.Context(), flushWriter{w})
}

type flushWriter struct {
	w http.ResponseWriter
}

func (f flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if flusher, ok := f.w.(http.Flusher); ok {
		flusher.Flush()
	}
	return n, err
}

var _ io.Writer = flushWriter{}
