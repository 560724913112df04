package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/search/suppliers", "/search/suppliers"},
		{"/health", "/health"},
		{"/health/ready", "/health/ready"},
		{"/metrics", "/metrics"},
		{"/suppliers/sup-123/ranking", "/suppliers/{id}/ranking"},
		{"/suppliers/0b7e7f1c-2f0e-4f55-9b7a-1f1f7a1d9c11/ranking", "/suppliers/{id}/ranking"},
		{"/suppliers/sup-123", "/suppliers/{id}"},
		{"/suppliers//ranking", "other"},
		{"/suppliers/sup-123/quotes", "other"},
		{"/wp-admin/install.php", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestHTTPMetrics_RecordsNormalizedRoute(t *testing.T) {
	metrics := NewMetrics()
	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing/ranking") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"rank_score":71.2}`))
	}))

	for _, path := range []string{"/suppliers/a/ranking", "/suppliers/b/ranking", "/suppliers/missing/ranking"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/suppliers/{id}/ranking", "200")); got != 2 {
		t.Errorf("expected 2 successful requests, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/suppliers/{id}/ranking", "404")); got != 1 {
		t.Errorf("expected 1 not found request, got %v", got)
	}
	if got := testutil.CollectAndCount(metrics.httpRequestsTotal); got != 2 {
		t.Errorf("expected 2 label sets, got %d", got)
	}
}

func TestHTTPMetrics_ExcludesHealth(t *testing.T) {
	metrics := NewMetrics()
	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/health", "/health/ready"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.CollectAndCount(metrics.httpRequestsTotal); got != 0 {
		t.Errorf("expected no recorded requests, got %d", got)
	}
}

func TestMetricsResponseWriter_ImplicitStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	mrw := newMetricsResponseWriter(rec)

	_, _ = mrw.Write([]byte("hello"))
	mrw.WriteHeader(http.StatusInternalServerError)

	if mrw.statusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", mrw.statusCode)
	}
	if mrw.size != 5 {
		t.Errorf("expected size 5, got %d", mrw.size)
	}
	if mrw.Unwrap() != rec {
		t.Error("expected Unwrap to return the wrapped writer")
	}
}
