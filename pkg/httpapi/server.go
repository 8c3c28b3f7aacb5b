package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/netboot-tools/pxe-supervisor/pkg/logging"
	"github.com/netboot-tools/pxe-supervisor/pkg/metrics"
	"github.com/netboot-tools/pxe-supervisor/pkg/monitoring"
)

const shutdownTimeout = 5 * time.Second

// HealthSource exposes the supervisor's current health view to the
// endpoint without giving the HTTP layer any write access.
type HealthSource interface {
	LastReport() monitoring.Report
	Ready() bool
}

// Handler builds the health endpoint mux: /healthz succeeds only when
// every current health check passes, /readyz once startup health has
// passed, /metrics serves Prometheus collectors.
func Handler(source HealthSource, collectors *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthzHandler(source))
	mux.HandleFunc("/readyz", readyzHandler(source))
	if collectors != nil {
		mux.Handle("/metrics", collectors.Handler())
	}
	return mux
}

// Start launches the health endpoint server and shuts it down when the
// context is cancelled. Serving errors are logged, never fatal: losing
// the endpoint must not take down the daemons it reports on.
func Start(ctx context.Context, port int, source HealthSource, collectors *metrics.Metrics, logger logging.Logger) {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           Handler(source, collectors),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("Health endpoint listening on port %d", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Health endpoint failed: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Health endpoint shutdown failed: %v", err)
		}
	}()
}

func healthzHandler(source HealthSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := source.LastReport()
		status := http.StatusOK
		if !report.Healthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func readyzHandler(source HealthSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if source.Ready() {
			writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
