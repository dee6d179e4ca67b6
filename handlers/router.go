package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires the live-TV and usenet streaming surfaces into a
// gorilla/mux router.
func NewRouter(liveTV *LiveTVHandler, usenetH *UsenetHandler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/livetv/stream/{lineupId}", liveTV.Stream).Methods(http.MethodGet)
	r.HandleFunc("/livetv/stream/{lineupId}", liveTV.Head).Methods(http.MethodHead)
	r.HandleFunc("/livetv/stream/{lineupId}", liveTV.Options).Methods(http.MethodOptions)

	r.HandleFunc("/usenet/stream/{mountId}/{fileIndex}", usenetH.Stream).Methods(http.MethodGet, http.MethodHead)

	return r
}
