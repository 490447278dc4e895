// Package telemetry exposes the service's Prometheus metrics: HTTP traffic,
// chart lifecycle transitions, document uploads and storage orphans.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agency"

type Metrics struct {
	registry *prometheus.Registry

	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec
	httpInfl   *prometheus.GaugeVec

	chartTransitions *prometheus.CounterVec
	uploads          *prometheus.CounterVec
	storageOrphans   prometheus.Counter
	ocrDispatch      *prometheus.CounterVec
}

func New() *Metrics {
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: r,
		httpReqCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
		}, []string{"method", "route", "status"}),
		httpDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds", Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		httpInfl: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "http_requests_inflight",
		}, []string{"route"}),
		chartTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "chart_transitions_total",
			Help: "Chart status transitions by action and resulting status.",
		}, []string{"action", "to"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "document_uploads_total",
		}, []string{"result"}),
		storageOrphans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "storage_orphans_total",
			Help: "Stored objects left behind after their metadata row was deleted.",
		}),
		ocrDispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ocr_dispatch_total",
		}, []string{"result"}),
	}
	r.MustRegister(m.httpReqCnt, m.httpDur, m.httpInfl,
		m.chartTransitions, m.uploads, m.storageOrphans, m.ocrDispatch)
	return m
}

func (m *Metrics) ChartTransition(action, to string) {
	m.chartTransitions.WithLabelValues(action, to).Inc()
}

func (m *Metrics) DocumentUploaded(ok bool) {
	m.uploads.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) StorageOrphaned() {
	m.storageOrphans.Inc()
}

func (m *Metrics) OCRDispatched(ok bool) {
	m.ocrDispatch.WithLabelValues(result(ok)).Inc()
}

// Middleware records request counts, latency and in-flight requests per
// registered route. Unmatched requests are grouped under "unmatched".
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.httpInfl.WithLabelValues(route).Inc()
			defer m.httpInfl.WithLabelValues(route).Dec()

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}
			code := strconv.Itoa(status)
			method := c.Request().Method
			m.httpReqCnt.WithLabelValues(method, route, code).Inc()
			m.httpDur.WithLabelValues(method, route, code).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
