package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Kube-Engine/Flow/internal/scheduler"
)

// workersResponse is the body of GET /workers.
type workersResponse struct {
	Pending       int                    `json:"pending"`
	Notifications int                    `json:"notifications"`
	Workers       []scheduler.WorkerInfo `json:"workers"`
}

// healthRouter builds the routes served by the health server.
func (a *App) healthRouter(sched *scheduler.Scheduler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			a.logger.Debug("Health endpoint hit.", "remote_addr", req.RemoteAddr, "path", req.URL.Path)
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})
	r.Get("/workers", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(workersResponse{
			Pending:       sched.Pending(),
			Notifications: sched.PendingNotifications(),
			Workers:       sched.Workers(),
		}); err != nil {
			a.logger.Error("Failed to encode workers response.", "error", err)
		}
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.metricsReg, promhttp.HandlerOpts{}))
	return r
}

func (a *App) newHealthServer(sched *scheduler.Scheduler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.HealthcheckPort),
		Handler:           a.healthRouter(sched),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// serveHealth blocks until the server is shut down.
func (a *App) serveHealth(srv *http.Server) error {
	a.logger.Info("Health check server starting.", "address", fmt.Sprintf("http://localhost%s/health", srv.Addr))
	// ListenAndServe returns ErrServerClosed on graceful shutdown.
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error("Health check server failed unexpectedly.", "error", err)
		return fmt.Errorf("health check server: %w", err)
	}
	return nil
}

func (a *App) shutdownHealth(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.logger.Debug("Shutting down health check server.")
	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Error("Health check server shutdown failed.", "error", err)
	}
}
