package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"ocrdash/internal/config"
	"ocrdash/internal/infrastructure"
)

func testTelemetryConfig() config.TelemetryConfig {
	cfg := config.Default().Telemetry
	cfg.Enabled = true
	cfg.MetricsEnabled = true
	cfg.TraceExporter = "none"
	return cfg
}

func TestTelemetry(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	tel := NewTelemetry(tp.Tracer("test"), nil, "/metrics")

	var traceID string
	r := chi.NewRouter()
	r.Use(tel.Handler)
	r.Get("/api/sessions/{id}", func(w http.ResponseWriter, req *http.Request) {
		traceID = infrastructure.GetTraceID(req.Context())
		w.WriteHeader(http.StatusInternalServerError)
	})
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 2, "the metrics scrape is not traced")
	assert.Equal(t, "GET /api/sessions/{id}", spans[0].Name())
	assert.Equal(t, "Error", spans[0].Status().Code.String())
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), traceID)
	assert.Equal(t, "GET unmatched", spans[1].Name())
}

func TestTelemetry_Metrics(t *testing.T) {
	providers, err := infrastructure.InitializeOTel(testTelemetryConfig(), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = providers.Shutdown(context.Background()) })

	metrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(NewTelemetry(providers.Tracer, metrics).Handler)
	r.Get("/api/health", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("ok"))
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `route="/api/health"`)
	assert.Contains(t, rec.Body.String(), "http_request_duration_seconds")
}
