package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.Pipeline().ObserveDocument("xlsx", "saved")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	metrics.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	body := rr.Body.String()
	if !strings.Contains(body, `pricelist_documents_total{format="xlsx",outcome="saved"} 1`) {
		t.Fatalf("expected body to contain pricelist_documents_total, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	metricsRR := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(metricsRR, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	metricsBody := metricsRR.Body.String()
	if !strings.Contains(metricsBody, "http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}

func TestMetricsMiddlewareObservesUploadSize(t *testing.T) {
	metrics := NewMetrics()
	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/pricelist/uploads", strings.NewReader(strings.Repeat("x", 2048)))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=abc")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/api/pricelist/products", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var m dto.Metric
	require.NoError(t, metrics.uploadBytes.Write(&m))
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
	assert.Equal(t, 2048.0, m.GetHistogram().GetSampleSum())

	require.NoError(t, metrics.inFlight.Write(&m))
	assert.Zero(t, m.GetGauge().GetValue())

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestPipelineCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPipeline(reg)
	require.NoError(t, err)

	p.ObserveDocument("", "error")
	p.ObserveRows("accepted", 3)
	p.ObserveRows("rejected", 0)
	p.ObserveOracle("openai", nil)
	p.ObserveOracle("openai", errors.New("timeout"))

	assert.Equal(t, 1.0, counterValue(t, p.documents.WithLabelValues("unknown", "error")))
	assert.Equal(t, 3.0, counterValue(t, p.rows.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, counterValue(t, p.oracleCalls.WithLabelValues("openai", "failure")))

	again, err := NewPipeline(reg)
	require.NoError(t, err)
	again.ObserveRows("accepted", 1)
	assert.Equal(t, 4.0, counterValue(t, p.rows.WithLabelValues("accepted")), "re-registration shares collectors")

	var nilPipeline *Pipeline
	assert.NotPanics(t, func() { nilPipeline.ObserveRows("accepted", 1) })
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
