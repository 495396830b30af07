package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the dispatch and settlement flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal         *prometheus.CounterVec
	httpRequestDuration       *prometheus.HistogramVec
	dispatchTotal             *prometheus.CounterVec
	capRejectedTotal          *prometheus.CounterVec
	budgetOverrunTotal        *prometheus.CounterVec
	providerAttemptDuration   *prometheus.HistogramVec
	fallbackDepth             *prometheus.HistogramVec
	auditQueueDepth           prometheus.Gauge
	auditDroppedTotal         *prometheus.CounterVec
	reconcileFailuresTotal    prometheus.Counter
	anomalousTransitionsTotal prometheus.Counter
	settlementsTotal          *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "outbound_dispatch",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "outbound_dispatch",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		dispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "outbound_dispatch",
				Name:      "dispatch_total",
				Help:      "Total number of dispatches by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		capRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "outbound_dispatch",
				Name:      "cap_rejected_total",
				Help:      "Total number of dispatches refused at admission by kind and reason.",
			},
			[]string{"kind", "reason"},
		),
		budgetOverrunTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "outbound_dispatch",
				Name:      "budget_overrun_total",
				Help:      "Times a budget scope was observed already past its total limit at admission.",
			},
			[]string{"scope"},
		),
		providerAttemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "outbound_dispatch",
				Name:      "provider_attempt_duration_seconds",
				Help:      "Provider call duration in seconds grouped by provider name.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"provider"},
		),
		fallbackDepth: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "outbound_dispatch",
				Name:      "fallback_depth",
				Help:      "Number of providers tried per dispatch grouped by kind.",
				Buckets:   []float64{1, 2, 3, 4, 5},
			},
			[]string{"kind"},
		),
		auditQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "outbound_dispatch",
				Name:      "audit_queue_depth",
				Help:      "Current number of jobs waiting in the audit/reconciliation queue.",
			},
		),
		auditDroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "outbound_dispatch",
				Name:      "audit_dropped_total",
				Help:      "Total number of audit jobs dropped on queue overflow by job type.",
			},
			[]string{"job"},
		),
		reconcileFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "outbound_dispatch",
				Name:      "reconcile_failures_total",
				Help:      "Total number of budget counter updates that could not be applied.",
			},
		),
		anomalousTransitionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "outbound_dispatch",
				Name:      "anomalous_transitions_total",
				Help:      "Total number of settlement updates rejected as out-of-order.",
			},
		),
		settlementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "outbound_dispatch",
				Name:      "settlements_total",
				Help:      "Total number of settlement updates applied by final status.",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.dispatchTotal,
		m.capRejectedTotal,
		m.budgetOverrunTotal,
		m.providerAttemptDuration,
		m.fallbackDepth,
		m.auditQueueDepth,
		m.auditDroppedTotal,
		m.reconcileFailuresTotal,
		m.anomalousTransitionsTotal,
		m.settlementsTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncDispatch(kind string, outcome string) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) IncCapRejected(kind string, reason string) {
	if m == nil {
		return
	}
	m.capRejectedTotal.WithLabelValues(normalizeLabel(kind), normalizeLabel(reason)).Inc()
}

// IncBudgetOverrun counts admissions that found a scope already past its
// total limit. Charges apply asynchronously, so a small overshoot window
// exists; this is the signal that it happened.
func (m *Metrics) IncBudgetOverrun(scope string) {
	if m == nil {
		return
	}
	m.budgetOverrunTotal.WithLabelValues(normalizeLabel(scope)).Inc()
}

func (m *Metrics) ObserveProviderAttemptDuration(provider string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.providerAttemptDuration.WithLabelValues(normalizeLabel(provider)).Observe(seconds)
}

func (m *Metrics) ObserveFallbackDepth(kind string, tried int) {
	if m == nil {
		return
	}
	m.fallbackDepth.WithLabelValues(normalizeLabel(kind)).Observe(float64(tried))
}

func (m *Metrics) SetAuditQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.auditQueueDepth.Set(float64(depth))
}

func (m *Metrics) IncAuditDropped(job string) {
	if m == nil {
		return
	}
	m.auditDroppedTotal.WithLabelValues(normalizeLabel(job)).Inc()
}

func (m *Metrics) IncReconcileFailure() {
	if m == nil {
		return
	}
	m.reconcileFailuresTotal.Inc()
}

func (m *Metrics) IncAnomalousTransition() {
	if m == nil {
		return
	}
	m.anomalousTransitionsTotal.Inc()
}

func (m *Metrics) IncSettlement(status string) {
	if m == nil {
		return
	}
	m.settlementsTotal.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
