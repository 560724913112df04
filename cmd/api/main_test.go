package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/eventsupply/internal/api"
	"github.com/onnwee/eventsupply/internal/auth"
	"github.com/onnwee/eventsupply/internal/health"
	"github.com/onnwee/eventsupply/internal/middleware"
	"github.com/onnwee/eventsupply/internal/ranking"
	"github.com/onnwee/eventsupply/internal/supplier"
)

const testJWTSecret = "router-test-secret-at-least-32-characters"

func newTestRouter(t *testing.T, searchLimit int) http.Handler {
	t.Helper()

	listings := supplier.NewInMemoryListingRepository()
	listings.AddListing(supplier.Listing{
		SupplierID:        "sup-florist",
		Name:              "Petal & Stem",
		ListingCategories: []string{"Florist"},
		LocationLabel:     "London",
		IsVerified:        true,
		PlanType:          "pro",
		Status:            supplier.ListingStatusApproved,
	})
	listings.AddListing(supplier.Listing{
		SupplierID:        "sup-caterer",
		Name:              "Northern Feasts",
		ListingCategories: []string{"Catering"},
		LocationLabel:     "Manchester",
		PlanType:          "free",
		Status:            supplier.ListingStatusApproved,
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := supplier.NewService(
		supplier.NewInMemoryFeatureRepository(),
		listings,
		supplier.NewInMemoryQuoteHistory(),
		supplier.NewInMemoryStats(),
		supplier.ServiceConfig{Tracker: supplier.NewDirtyTracker(), Logger: logger},
	)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	registry := prometheus.NewRegistry()
	metrics := middleware.NewMetrics()
	if err := metrics.Register(registry); err != nil {
		t.Fatalf("failed to register metrics: %v", err)
	}

	return newRouter(routerDeps{
		Logger:  logger,
		Ranking: api.NewRankingHandlers(service, ranking.NewScorer(nil, nil), ranking.NewMetrics()),
		Health: api.NewHealthHandlers(api.HealthHandlersConfig{
			RedisChecker: health.NewRedisChecker(redisClient),
		}),
		Admin:         auth.NewJWTService(testJWTSecret),
		SearchLimiter: middleware.NewRedisRateLimitStore(redisClient, metrics, logger),
		SearchLimit: middleware.RateLimitConfig{
			RequestsPerWindow: searchLimit,
			WindowDuration:    time.Minute,
		},
		Metrics:  metrics,
		Gatherer: registry,
	})
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter(t, 100)

	adminToken, err := auth.NewJWTService(testJWTSecret).GenerateAccessToken("admin-1", auth.RoleAdmin)
	if err != nil {
		t.Fatalf("failed to generate admin token: %v", err)
	}
	operatorToken, err := auth.NewJWTService(testJWTSecret).GenerateAccessToken("operator-1", auth.RoleOperator)
	if err != nil {
		t.Fatalf("failed to generate operator token: %v", err)
	}

	tests := []struct {
		name           string
		path           string
		token          string
		expectedStatus int
		expectedCode   string
	}{
		{"root", "/", "", http.StatusOK, ""},
		{"unknown path", "/nope", "", http.StatusNotFound, api.ErrCodeNotFound},
		{"liveness", "/health", "", http.StatusOK, ""},
		{"readiness", "/health/ready", "", http.StatusOK, ""},
		{"search", "/search/suppliers?category_slug=florist", "", http.StatusOK, ""},
		{"search invalid limit", "/search/suppliers?limit=0", "", http.StatusBadRequest, api.ErrCodeValidation},
		{"debug without token", "/suppliers/sup-florist/ranking", "", http.StatusUnauthorized, api.ErrCodeAuthFailed},
		{"debug as operator", "/suppliers/sup-florist/ranking", operatorToken, http.StatusForbidden, api.ErrCodeForbidden},
		{"debug as admin", "/suppliers/sup-florist/ranking", adminToken, http.StatusOK, ""},
		{"debug unknown supplier", "/suppliers/sup-missing/ranking", adminToken, http.StatusNotFound, api.ErrCodeSupplierNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if w.Header().Get("X-Request-ID") == "" {
				t.Error("expected X-Request-ID header")
			}
			if tt.expectedCode == "" {
				return
			}

			var resp api.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if resp.Error.Code != tt.expectedCode {
				t.Errorf("expected error code %q, got %q", tt.expectedCode, resp.Error.Code)
			}
		})
	}
}

func TestRouter_SearchOrdering(t *testing.T) {
	router := newTestRouter(t, 100)

	req := httptest.NewRequest(http.MethodGet, "/search/suppliers?category_slug=catering&location_slug=manchester", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp api.SupplierSearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected 2 results, got %d", resp.Count)
	}
	if resp.Results[0].SupplierID != "sup-caterer" {
		t.Errorf("expected matching caterer first, got %s", resp.Results[0].SupplierID)
	}
}

func TestRouter_SearchRateLimited(t *testing.T) {
	router := newTestRouter(t, 2)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/search/suppliers", nil)
		last = httptest.NewRecorder()
		router.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	var resp api.ErrorResponse
	if err := json.NewDecoder(last.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error.Code != api.ErrCodeRateLimited {
		t.Errorf("expected error code %q, got %q", api.ErrCodeRateLimited, resp.Error.Code)
	}

	// Health checks are not rate limited.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected health status 200, got %d", w.Code)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, 100)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/search/suppliers", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, metric := range []string{middleware.MetricHTTPRequestsTotal, middleware.MetricRateLimitRequests} {
		if !strings.Contains(body, metric) {
			t.Errorf("expected /metrics to expose %s", metric)
		}
	}
	if !strings.Contains(body, `path="/search/suppliers"`) {
		t.Error("expected search path label in metrics output")
	}
}

func TestServe_DrainsInFlightRequests(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	addr := ln.Addr().String()

	var mu sync.Mutex
	var requestCompleted bool
	handlerStarted := make(chan struct{})
	handlerCanContinue := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		close(handlerStarted)
		<-handlerCanContinue

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"completed"}`))

		mu.Lock()
		requestCompleted = true
		mu.Unlock()
	})

	server := &http.Server{Handler: mux}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- serve(ctx, server, ln, logger, 5*time.Second)
	}()

	type result struct {
		status int
		body   string
		err    error
	}
	requestDone := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + addr + "/slow")
		if err != nil {
			requestDone <- result{err: err}
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		requestDone <- result{status: resp.StatusCode, body: string(body)}
	}()

	select {
	case <-handlerStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("handler failed to start in time")
	}

	// Begin shutdown while the request is in flight.
	cancel()
	time.Sleep(50 * time.Millisecond)
	close(handlerCanContinue)

	select {
	case res := <-requestDone:
		if res.err != nil {
			t.Fatalf("request error: %v", res.err)
		}
		if res.status != http.StatusOK {
			t.Errorf("expected status 200, got %d", res.status)
		}
		if !strings.Contains(res.body, "completed") {
			t.Errorf("expected completed body, got %q", res.body)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("request failed to complete in time")
	}

	select {
	case err := <-serveErr:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve failed to return after shutdown")
	}

	mu.Lock()
	defer mu.Unlock()
	if !requestCompleted {
		t.Error("expected in-flight request to complete")
	}
}

func TestServe_ReturnsServeError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	ln.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err = serve(context.Background(), &http.Server{Handler: http.NewServeMux()}, ln, logger, time.Second)
	if err == nil {
		t.Error("expected error serving on a closed listener")
	}
}
