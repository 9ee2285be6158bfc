package services

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tuitionhub/backend/internal/config"
)

// Metrics covers report runs, email delivery and HTTP traffic.
type Metrics interface {
	ObserveReportRun(trigger, status string, duration time.Duration)
	AddReportsGenerated(count int)
	IncEmailsSent(status string)
	IncRequestsTotal(method, route string, status int)
	ObserveRequestDuration(method, route string, duration time.Duration)
}

type PrometheusMetrics struct {
	reportRuns       *prometheus.CounterVec
	reportDuration   *prometheus.HistogramVec
	reportsGenerated prometheus.Counter
	emailsSent       *prometheus.CounterVec
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

// NewMetrics registers collectors on reg. A nil reg uses the default registerer.
func NewMetrics(cfg *config.MetricsConfig, reg prometheus.Registerer) Metrics {
	if cfg == nil || !cfg.Enabled {
		return NoopMetrics{}
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		reportRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tuitionhub_report_runs_total",
			Help: "Monthly report generation runs by trigger and outcome",
		}, []string{"trigger", "status"}),

		reportDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tuitionhub_report_run_duration_seconds",
			Help:    "Monthly report generation run duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"trigger"}),

		reportsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "tuitionhub_reports_generated_total",
			Help: "Monthly reports written or overwritten",
		}),

		emailsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tuitionhub_report_emails_total",
			Help: "Consolidated report emails by outcome",
		}, []string{"status"}),

		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tuitionhub_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tuitionhub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *PrometheusMetrics) ObserveReportRun(trigger, status string, duration time.Duration) {
	m.reportRuns.WithLabelValues(trigger, status).Inc()
	m.reportDuration.WithLabelValues(trigger).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) AddReportsGenerated(count int) {
	if count > 0 {
		m.reportsGenerated.Add(float64(count))
	}
}

func (m *PrometheusMetrics) IncEmailsSent(status string) {
	m.emailsSent.WithLabelValues(status).Inc()
}

func (m *PrometheusMetrics) IncRequestsTotal(method, route string, status int) {
	m.requestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
}

func (m *PrometheusMetrics) ObserveRequestDuration(method, route string, duration time.Duration) {
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}

// NoopMetrics is used when metrics are disabled.
type NoopMetrics struct{}

func (NoopMetrics) ObserveReportRun(_, _ string, _ time.Duration)       {}
func (NoopMetrics) AddReportsGenerated(_ int)                           {}
func (NoopMetrics) IncEmailsSent(_ string)                              {}
func (NoopMetrics) IncRequestsTotal(_, _ string, _ int)                 {}
func (NoopMetrics) ObserveRequestDuration(_, _ string, _ time.Duration) {}
