package worker

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/lore-anchor/protect/internal/metrics"
)

// HealthServer exposes the worker's /health and /metrics endpoints on
// health_port (spec §4.4): a plain net/http mux owned by cmd/worker,
// started and gracefully shut down alongside the outer processing loop.
func HealthServer(w *Worker, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(w.Snapshot())
	})
	mux.Handle("/metrics", metrics.Handler())

	return &http.Server{Addr: addr, Handler: mux}
}

// Shutdown is a thin helper so cmd/worker doesn't need to import
// net/http directly for the health server's graceful stop.
func Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
