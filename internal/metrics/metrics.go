// Package metrics exposes Prometheus instrumentation for the scan pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "leakscan"

// Metrics holds the Prometheus collectors for the scan pipeline. All
// collectors live in a private registry so multiple instances can coexist
// in tests.
type Metrics struct {
	registry *prometheus.Registry

	patternHits *prometheus.CounterVec
	linesParsed *prometheus.CounterVec

	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobsActive  prometheus.Gauge
	queueDepth  prometheus.Gauge

	upserts *prometheus.CounterVec

	searchRequests *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = defaultNamespace
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		patternHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pattern_hits_total",
				Help:      "Credential lines matched, by parser pattern",
			},
			[]string{"pattern_id"},
		),

		linesParsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lines_processed_total",
				Help:      "Raw lines processed, by outcome",
			},
			[]string{"outcome"},
		),

		jobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Scan jobs finished, by terminal status and job type",
			},
			[]string{"status", "job_type"},
		),

		jobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Scan job execution duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600},
			},
			[]string{"job_type"},
		),

		jobsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_active",
				Help:      "Scan jobs currently running",
			},
		),

		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Messages waiting in the job stream",
			},
		),

		upserts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upserts_total",
				Help:      "Credential upserts, by result",
			},
			[]string{"result"},
		),

		searchRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_requests_total",
				Help:      "Upstream search API requests, by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// RecordPatternHits adds a batch of per-pattern hit counts.
func (m *Metrics) RecordPatternHits(hits map[int]int) {
	for patternID, count := range hits {
		m.patternHits.WithLabelValues(strconv.Itoa(patternID)).Add(float64(count))
	}
}

// RecordLines records line counts for a parse batch.
func (m *Metrics) RecordLines(parsed, unparsed, duplicates int) {
	m.linesParsed.WithLabelValues("parsed").Add(float64(parsed))
	m.linesParsed.WithLabelValues("unparsed").Add(float64(unparsed))
	m.linesParsed.WithLabelValues("duplicate").Add(float64(duplicates))
}

// RecordJobStart marks a job as running.
func (m *Metrics) RecordJobStart() {
	m.jobsActive.Inc()
}

// RecordJobEnd records a finished job with its terminal status.
func (m *Metrics) RecordJobEnd(status, jobType string, duration time.Duration) {
	m.jobsTotal.WithLabelValues(status, jobType).Inc()
	m.jobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
	m.jobsActive.Dec()
}

// RecordUpserts adds upsert result counts for a batch.
func (m *Metrics) RecordUpserts(newCount, duplicates, skipped, failed int) {
	m.upserts.WithLabelValues("new").Add(float64(newCount))
	m.upserts.WithLabelValues("duplicate").Add(float64(duplicates))
	m.upserts.WithLabelValues("skipped").Add(float64(skipped))
	m.upserts.WithLabelValues("failed").Add(float64(failed))
}

// RecordSearchRequest counts one upstream search request.
func (m *Metrics) RecordSearchRequest(outcome string) {
	m.searchRequests.WithLabelValues(outcome).Inc()
}

// SetQueueDepth updates the job stream depth gauge.
func (m *Metrics) SetQueueDepth(depth int64) {
	m.queueDepth.Set(float64(depth))
}

// Registry returns the underlying registry, used by tests and the handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
