package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vk/rendergraph/internal/telemetry"
)

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	a.mu.Lock()
	frames, failed := len(a.reports), a.failed
	a.mu.Unlock()
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK frames=%d failed=%d\n", frames, failed)
}

// healthMux serves /health and, when the prometheus exporter is installed,
// /metrics.
func (a *App) healthMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	if h := telemetry.MetricsHandler(); h != nil {
		mux.Handle("/metrics", h)
	}
	return mux
}

func (a *App) newHealthcheckServer(port int) *http.Server {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: a.healthMux(), ReadHeaderTimeout: 5 * time.Second}
	a.mu.Lock()
	a.httpServer = srv
	a.mu.Unlock()
	return srv
}

// serveHealthcheck blocks serving srv until it is shut down.
func (a *App) serveHealthcheck(srv *http.Server) error {
	a.logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://localhost%s/health", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health check server failed: %w", err)
	}
	return nil
}

func (a *App) closeHealthCheckServer(ctx context.Context) error {
	a.mu.Lock()
	srv := a.httpServer
	a.mu.Unlock()
	if srv == nil {
		a.logger.Debug("Health check server was not running.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	a.logger.Info("🩺 Shutting down health check server...")
	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Error("Health check server shutdown failed", "error", err)
		return err
	}
	a.logger.Debug("Health check server shut down gracefully.")
	return nil
}
