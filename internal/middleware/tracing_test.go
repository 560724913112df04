package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(t.Context())
	})
	return recorder
}

func TestTracing_SpanNameUsesRoute(t *testing.T) {
	recorder := withSpanRecorder(t)

	var traceID, spanID string
	handler := Tracing("eventsupply-api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = GetTraceID(r)
		spanID = GetSpanID(r)
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/suppliers/sup-42/ranking", nil))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := spans[0].Name(); got != "GET /suppliers/{id}/ranking" {
		t.Errorf("expected span name %q, got %q", "GET /suppliers/{id}/ranking", got)
	}
	if traceID == "" || spanID == "" {
		t.Error("expected trace and span IDs inside the handler")
	}
}

func TestTracing_SkipsHealth(t *testing.T) {
	recorder := withSpanRecorder(t)

	handler := Tracing("eventsupply-api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if got := len(recorder.Ended()); got != 0 {
		t.Errorf("expected no spans for health checks, got %d", got)
	}
}

func TestGetTraceID_NoSpan(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := GetTraceID(req); got != "" {
		t.Errorf("expected empty trace ID, got %q", got)
	}
	if got := GetSpanID(req); got != "" {
		t.Errorf("expected empty span ID, got %q", got)
	}
}
