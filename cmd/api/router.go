package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/eventsupply/internal/api"
	"github.com/onnwee/eventsupply/internal/middleware"
)

const serviceName = "eventsupply-api"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// routerDeps holds everything the HTTP surface needs.
type routerDeps struct {
	Logger        *slog.Logger
	Ranking       *api.RankingHandlers
	Health        *api.HealthHandlers
	Admin         middleware.AdminTokenValidator
	SearchLimiter middleware.RateLimitStore
	SearchLimit   middleware.RateLimitConfig
	Metrics       *middleware.Metrics
	Gatherer      prometheus.Gatherer
	CORS          middleware.CORSConfig
}

// newRouter registers routes and wraps them in the middleware chain:
// RequestID -> Tracing -> Logging -> HTTPMetrics -> CORS.
func newRouter(d routerDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", d.Health.Health)
	mux.HandleFunc("/health/ready", d.Health.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	search := middleware.RateLimiter(d.SearchLimiter, d.SearchLimit, middleware.UserKeyFunc(), middleware.RateLimitOptions{
		Endpoint: "/search/suppliers",
		Metrics:  d.Metrics,
	})(http.HandlerFunc(d.Ranking.SearchSuppliers))
	mux.Handle("/search/suppliers", search)

	mux.Handle("/suppliers/", middleware.RequireAdmin(d.Admin)(http.HandlerFunc(d.Ranking.SupplierRanking)))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]string{
			"service": serviceName,
			"version": version,
		}); err != nil {
			slog.ErrorContext(r.Context(), "failed to write response", "error", err)
		}
	})

	var handler http.Handler = mux
	handler = middleware.CORS(d.CORS)(handler)
	handler = middleware.HTTPMetrics(d.Metrics)(handler)
	handler = middleware.Logging(d.Logger)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	return middleware.RequestID(handler)
}

// serve runs server on ln until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func serve(ctx context.Context, server *http.Server, ln net.Listener, logger *slog.Logger, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
