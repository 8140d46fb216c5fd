// Package metricsrv exposes the indexer's current IndexState and reader head
// lag over a small CORS-enabled HTTP status endpoint, mirroring how the
// teacher's node wires github.com/rs/cors in front of its RPC HTTP server.
package metricsrv

import (
	"encoding/json"
	"net/http"

	"github.com/rs/cors"

	"github.com/ethereum-mive/mive/mive/indexer"
	"github.com/ethereum-mive/mive/mive/indexer/diag"
)

// Status is the JSON body served at /status.
type Status struct {
	IndexState      indexer.IndexState  `json:"indexState"`
	HeadBlockNumber indexer.BlockNumber `json:"headBlockNumber"`
}

// StatusFunc is called on every request; callers typically close over a live
// Handler/Reader pair to report their current cursor and head.
type StatusFunc func() Status

// HistoryFunc is called on every /debug/memsize request; callers typically
// close over a live Reader's History method.
type HistoryFunc func() []indexer.Block

// Server is a tiny HTTP server reporting indexer Status, CORS-enabled for
// browser-based dashboards. It also exposes a /debug/memsize endpoint
// reporting the reader's rolling-history memory footprint, when a
// HistoryFunc is supplied.
type Server struct {
	status  StatusFunc
	history HistoryFunc
	mux     http.Handler
}

// New builds a Server. corsOrigins is passed straight to cors.Options; an
// empty slice allows no cross-origin requests. history may be nil, in which
// case /debug/memsize responds 404.
func New(corsOrigins []string, status StatusFunc, history HistoryFunc) *Server {
	s := &Server{status: status, history: history}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.serveStatus)
	if history != nil {
		mux.HandleFunc("/debug/memsize", s.serveMemsize)
	}
	s.mux = mux
	if len(corsOrigins) > 0 {
		s.mux = cors.New(cors.Options{AllowedOrigins: corsOrigins}).Handler(mux)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) serveStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.status()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// serveMemsize reports the in-memory size of the reader's bounded rolling
// history, via mive/indexer/diag.ScanHistory, as plain text.
func (s *Server) serveMemsize(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	report := diag.ScanHistory(s.history())
	if _, err := w.Write([]byte(report.String())); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
