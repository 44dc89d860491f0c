// Package metrics exposes Prometheus collectors for the extraction pipeline
// and crawl runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/use-agent/catalog/models"
)

const namespace = "catalog"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	sourceAttempts   *prometheus.CounterVec
	sourceLocated    *prometheus.CounterVec
	sourceNormalized *prometheus.CounterVec
	sourceRejected   *prometheus.CounterVec
	pageOutcomes     *prometheus.CounterVec
	recordsSaved     prometheus.Counter
	sinkErrors       *prometheus.CounterVec
	pageDuration     *prometheus.HistogramVec
	activeRuns       prometheus.Gauge
}

// New registers the collectors on reg. Pass nil to use a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		sourceAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "attempts_total",
			Help:      "Source fetch attempts by source kind and availability.",
		}, []string{"source", "available"}),
		sourceLocated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "candidates_located_total",
			Help:      "Product candidates located per source kind.",
		}, []string{"source"}),
		sourceNormalized: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "candidates_normalized_total",
			Help:      "Candidates that normalized into records, per source kind.",
		}, []string{"source"}),
		sourceRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "candidates_rejected_total",
			Help:      "Candidates rejected by the normalizer, per source kind.",
		}, []string{"source"}),
		pageOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "pages_total",
			Help:      "Processed pages by outcome and empty-page reason.",
		}, []string{"outcome", "reason"}),
		recordsSaved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "records_saved_total",
			Help:      "Records accepted by the dedup tracker and handed to the sink.",
		}),
		sinkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "errors_total",
			Help:      "Sink write failures by sink kind.",
		}, []string{"sink"}),
		pageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "page_duration_seconds",
			Help:      "Time spent resolving one page visit.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		activeRuns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "crawler",
			Name:      "active_runs",
			Help:      "Crawl runs currently in progress.",
		}),
	}
}

// ObserveSources records per-source counters from one resolution.
func (m *Metrics) ObserveSources(reports []models.SourceReport) {
	if m == nil {
		return
	}
	for _, r := range reports {
		if !r.Attempted {
			continue
		}
		available := "false"
		if r.Available {
			available = "true"
		}
		src := string(r.Kind)
		m.sourceAttempts.WithLabelValues(src, available).Inc()
		m.sourceLocated.WithLabelValues(src).Add(float64(r.Located))
		m.sourceNormalized.WithLabelValues(src).Add(float64(r.Normalized))
		m.sourceRejected.WithLabelValues(src).Add(float64(r.Rejected))
	}
}

// ObservePage records one processed page.
func (m *Metrics) ObservePage(outcome models.Outcome, reason models.EmptyReason, d time.Duration) {
	if m == nil {
		return
	}
	m.pageOutcomes.WithLabelValues(string(outcome), string(reason)).Inc()
	m.pageDuration.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

// AddSaved counts records accepted for persistence.
func (m *Metrics) AddSaved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsSaved.Add(float64(n))
}

// SinkError counts a failed sink write.
func (m *Metrics) SinkError(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}

// RunStarted and RunFinished track in-flight crawl runs.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.activeRuns.Inc()
}

func (m *Metrics) RunFinished() {
	if m == nil {
		return
	}
	m.activeRuns.Dec()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
