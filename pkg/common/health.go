package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/arl/statsviz"
)

// HealthServer serves the liveness and readiness checks alongside the
// operational endpoints (prometheus scrape and the statsviz runtime view).
// Additional handlers such as the websocket endpoint are mounted with Handle
// before Start is called.
type HealthServer struct {
	ready  *atomic.Bool
	mux    *http.ServeMux
	server *http.Server
}

// NewHealthServer builds a HealthServer listening on addr. Readiness reports
// ok only once ready has been set to true.
func NewHealthServer(addr string, ready *atomic.Bool) (*HealthServer, error) {
	mux := http.NewServeMux()
	hs := &HealthServer{
		ready: ready,
		mux:   mux,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	mux.HandleFunc("/v1/health", hs.liveness)
	mux.HandleFunc("/v1/readiness", hs.readiness)
	RegisterMetricsHandler(mux)
	if err := statsviz.Register(mux); err != nil {
		return nil, err
	}

	return hs, nil
}

// Handle mounts an additional handler on the server's mux.
func (h *HealthServer) Handle(pattern string, handler http.Handler) { h.mux.Handle(pattern, handler) }

// Handler exposes the mux, mainly for tests.
func (h *HealthServer) Handler() http.Handler { return h.mux }

// Server returns the underlying http.Server so callers can shut it down.
func (h *HealthServer) Server() *http.Server { return h.server }

// Start serves until the server is shut down. http.ErrServerClosed is not
// reported as an error.
func (h *HealthServer) Start() error {
	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type healthResponse struct {
	Status string `json:"status"`
}

func (h *HealthServer) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *HealthServer) readiness(w http.ResponseWriter, _ *http.Request) {
	if !h.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
