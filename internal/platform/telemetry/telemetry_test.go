package telemetry

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestChartTransition_Counts(t *testing.T) {
	m := New()
	m.ChartTransition("approve", "verified_ready")
	m.ChartTransition("approve", "verified_ready")
	m.ChartTransition("return", "needs_reverification")

	if got := testutil.ToFloat64(m.chartTransitions.WithLabelValues("approve", "verified_ready")); got != 2 {
		t.Errorf("expected 2 approve transitions, got %v", got)
	}
	if got := testutil.ToFloat64(m.chartTransitions.WithLabelValues("return", "needs_reverification")); got != 1 {
		t.Errorf("expected 1 return transition, got %v", got)
	}
}

func TestResultCounters(t *testing.T) {
	m := New()
	m.DocumentUploaded(true)
	m.DocumentUploaded(false)
	m.OCRDispatched(false)
	m.StorageOrphaned()

	if got := testutil.ToFloat64(m.uploads.WithLabelValues("ok")); got != 1 {
		t.Errorf("expected 1 ok upload, got %v", got)
	}
	if got := testutil.ToFloat64(m.uploads.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 failed upload, got %v", got)
	}
	if got := testutil.ToFloat64(m.ocrDispatch.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 failed dispatch, got %v", got)
	}
	if got := testutil.ToFloat64(m.storageOrphans); got != 1 {
		t.Errorf("expected 1 orphan, got %v", got)
	}
}

func TestMiddleware_RecordsRouteAndStatus(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/charts/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/api/v1/fail", func(c echo.Context) error {
		return errors.New("boom")
	})
	e.GET("/api/v1/missing", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "nope")
	})

	for _, path := range []string{"/api/v1/charts/1", "/api/v1/charts/2", "/api/v1/fail", "/api/v1/missing"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.httpReqCnt.WithLabelValues("GET", "/api/v1/charts/:id", "200")); got != 2 {
		t.Errorf("expected 2 requests for chart route, got %v", got)
	}
	if got := testutil.ToFloat64(m.httpReqCnt.WithLabelValues("GET", "/api/v1/fail", "500")); got != 1 {
		t.Errorf("expected 1 failed request, got %v", got)
	}
	if got := testutil.ToFloat64(m.httpReqCnt.WithLabelValues("GET", "/api/v1/missing", "404")); got != 1 {
		t.Errorf("expected 1 not found request, got %v", got)
	}
	if got := testutil.ToFloat64(m.httpInfl.WithLabelValues("/api/v1/charts/:id")); got != 0 {
		t.Errorf("expected no in-flight requests, got %v", got)
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New()
	m.ChartTransition("deliver", "delivered_locked")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `agency_chart_transitions_total{action="deliver",to="delivered_locked"} 1`) {
		t.Errorf("expected chart transition series in output")
	}
}
