// Package metrics exposes Prometheus instrumentation for the HTTP surface,
// generation jobs, their polling loops and the remote calls they make.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so several collectors can coexist in
// one process (tests, CLI) without duplicate registration panics.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	jobsTotal           *prometheus.CounterVec
	jobDuration         *prometheus.HistogramVec
	pollsTotal          *prometheus.CounterVec
	remoteRequestsTotal *prometheus.CounterVec
}

// NewCollector registers every metric under namespace.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 30, 60, 180, 360, 480, 600},
			},
			[]string{"method", "path"},
		),
		jobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_jobs_total",
				Help:      "Generation jobs by input kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		jobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_job_duration_seconds",
				Help:      "Wall time from submission to terminal outcome",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 240, 360, 480},
			},
			[]string{"kind"},
		),
		pollsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_polls_total",
				Help:      "Status checks issued by polling loops, by observed state",
			},
			[]string{"kind", "state"},
		),
		remoteRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_requests_total",
				Help:      "Calls to the generation service by operation and reported status",
			},
			[]string{"operation", "status"},
		),
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RecordHTTPRequest records one served request. path should be a route
// pattern, not the raw URL, to keep label cardinality bounded.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveJob records a finished generation job.
func (c *Collector) ObserveJob(kind, outcome string, duration time.Duration) {
	c.jobsTotal.WithLabelValues(kind, outcome).Inc()
	c.jobDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObservePoll records one status check.
func (c *Collector) ObservePoll(kind, state string) {
	c.pollsTotal.WithLabelValues(kind, state).Inc()
}

// remoteStatuses bounds the status label; anything else the remote reports
// is counted as "other".
var remoteStatuses = map[string]struct{}{
	"success":         {},
	"failed":          {},
	"processing":      {},
	"error":           {},
	"undecodable":     {},
	"transport_error": {},
}

// ObserveRemote records one call to the generation service.
func (c *Collector) ObserveRemote(operation, status string) {
	c.remoteRequestsTotal.WithLabelValues(operation, remoteStatusLabel(status)).Inc()
}

func remoteStatusLabel(status string) string {
	if status == "" {
		return "unknown"
	}
	if _, ok := remoteStatuses[status]; ok {
		return status
	}
	return "other"
}
