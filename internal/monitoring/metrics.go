package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the site. Every Record method
// is safe on a nil receiver so callers can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Assistant metrics
	AssistantSessions   prometheus.Gauge
	AssistantSelections *prometheus.CounterVec
	AssistantActions    *prometheus.CounterVec
	AssistantRejections *prometheus.CounterVec
	AssistantExpired    prometheus.Counter

	// Lead metrics
	LeadSubmissions *prometheus.CounterVec
	RelayDuration   *prometheus.HistogramVec

	// Realtime metrics
	StreamConnections *prometheus.GaugeVec

	startTime time.Time
}

// NewMetrics registers all collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vexl_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vexl_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		ResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vexl_http_response_size_bytes",
				Help:    "HTTP response size",
				Buckets: prometheus.ExponentialBuckets(256, 4, 7),
			},
			[]string{"method", "path"},
		),

		AssistantSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "vexl_assistant_sessions_active",
				Help: "Number of live assistant sessions",
			},
		),
		AssistantSelections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vexl_assistant_selections_total",
				Help: "Accepted assistant option selections",
			},
			[]string{"action", "lang"},
		),
		AssistantActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vexl_assistant_actions_total",
				Help: "Dispatched assistant actions",
			},
			[]string{"action", "kind"},
		),
		AssistantRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vexl_assistant_rejections_total",
				Help: "Rejected assistant commands",
			},
			[]string{"reason"},
		),
		AssistantExpired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vexl_assistant_sessions_expired_total",
				Help: "Assistant sessions removed by the idle cleanup",
			},
		),

		LeadSubmissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vexl_lead_submissions_total",
				Help: "Lead form submissions by outcome",
			},
			[]string{"form", "status"},
		),
		RelayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vexl_mail_relay_duration_seconds",
				Help:    "Latency of email relay calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"form"},
		),

		StreamConnections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vexl_stream_connections",
				Help: "Open assistant event streams",
			},
			[]string{"transport"},
		),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ResponseSize,
		m.AssistantSessions,
		m.AssistantSelections,
		m.AssistantActions,
		m.AssistantRejections,
		m.AssistantExpired,
		m.LeadSubmissions,
		m.RelayDuration,
		m.StreamConnections,
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "vexl_uptime_seconds",
				Help: "Process uptime in seconds",
			},
			func() float64 { return time.Since(m.startTime).Seconds() },
		),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the private registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

func (m *Metrics) SetAssistantSessions(count int) {
	if m == nil {
		return
	}
	m.AssistantSessions.Set(float64(count))
}

func (m *Metrics) RecordSelection(actionKey, lang string) {
	if m == nil {
		return
	}
	m.AssistantSelections.WithLabelValues(actionKey, lang).Inc()
}

func (m *Metrics) RecordAction(actionKey, kind string) {
	if m == nil {
		return
	}
	m.AssistantActions.WithLabelValues(actionKey, kind).Inc()
}

func (m *Metrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	m.AssistantRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.AssistantExpired.Add(float64(n))
}

// RecordLead records a lead form outcome and, when the relay was called,
// its latency.
func (m *Metrics) RecordLead(form, status string, relay time.Duration) {
	if m == nil {
		return
	}
	m.LeadSubmissions.WithLabelValues(form, status).Inc()
	if relay > 0 {
		m.RelayDuration.WithLabelValues(form).Observe(relay.Seconds())
	}
}

// StreamOpened increments the open stream gauge and returns the matching
// decrement.
func (m *Metrics) StreamOpened(transport string) func() {
	if m == nil {
		return func() {}
	}
	g := m.StreamConnections.WithLabelValues(transport)
	g.Inc()
	return g.Dec
}
