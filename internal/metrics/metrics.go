// Package metrics provides the Prometheus metrics exported by venuepulse.
//
// All recording methods are safe to call on a nil *Metrics, so components
// can be constructed without metrics in tests and one-shot CLI commands.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "venuepulse"

// Cache lookup outcomes.
const (
	CacheFresh = "fresh"
	CacheStale = "stale"
	CacheMiss  = "miss"
)

// Metrics contains all Prometheus metrics for analysis, caching, ingestion
// and live scoring.
type Metrics struct {
	AnalysesTotal      *prometheus.CounterVec
	AnalysisErrors     *prometheus.CounterVec
	AnalysisDuration   prometheus.Histogram
	ReadingsAnalyzed   prometheus.Histogram
	LearningProgress   *prometheus.GaugeVec
	CacheLookups       *prometheus.CounterVec
	IngestedReadings   *prometheus.CounterVec
	IngestDecodeErrors *prometheus.CounterVec
	IngestOutOfRange   *prometheus.CounterVec
	LiveScores         *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates the metrics and registers them with registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register venuepulse metrics: %w", err)
	}
	return m, nil
}

// Registry returns the registry the metrics were registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) initMetrics() {
	m.AnalysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analyses_total",
		Help:      "Total number of completed analysis runs",
	}, []string{"venue"})

	m.AnalysisErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analysis_errors_total",
		Help:      "Total number of failed analysis runs by stage",
	}, []string{"venue", "stage"})

	m.AnalysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "analysis_duration_seconds",
		Help:      "Duration of a full refresh: fetch, analyze and store",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	m.ReadingsAnalyzed = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "readings_per_analysis",
		Help:      "Number of readings fed into each analysis run",
		Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
	})

	m.LearningProgress = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "learning_progress",
		Help:      "Latest learning progress (0-100) per venue",
	}, []string{"venue"})

	m.CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_lookups_total",
		Help:      "Snapshot lookups by outcome (fresh, stale, miss)",
	}, []string{"outcome"})

	m.IngestedReadings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingested_readings_total",
		Help:      "Total number of readings stored by ingestion source",
	}, []string{"source"})

	m.IngestDecodeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_decode_errors_total",
		Help:      "Total number of ingestion messages that could not be decoded",
	}, []string{"source"})

	m.IngestOutOfRange = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_out_of_range_total",
		Help:      "Ingested factor values outside the learnable range, by source and factor",
	}, []string{"source", "factor"})

	m.LiveScores = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "live_score",
		Help:      "Distribution of live scores",
		Buckets:   prometheus.LinearBuckets(10, 10, 10),
	}, []string{"window"})
}

// ObserveAnalysis records a completed analysis run.
func (m *Metrics) ObserveAnalysis(venueID string, readings, progress int, d time.Duration) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(venueID).Inc()
	m.AnalysisDuration.Observe(d.Seconds())
	m.ReadingsAnalyzed.Observe(float64(readings))
	m.LearningProgress.WithLabelValues(venueID).Set(float64(progress))
}

// IncAnalysisError records a failed analysis run.
func (m *Metrics) IncAnalysisError(venueID, stage string) {
	if m == nil {
		return
	}
	m.AnalysisErrors.WithLabelValues(venueID, stage).Inc()
}

// IncCacheLookup records a snapshot lookup outcome.
func (m *Metrics) IncCacheLookup(outcome string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(outcome).Inc()
}

// AddIngested records stored readings for an ingestion source.
func (m *Metrics) AddIngested(source string, n int) {
	if m == nil {
		return
	}
	m.IngestedReadings.WithLabelValues(source).Add(float64(n))
}

// IncDecodeError records an undecodable ingestion message.
func (m *Metrics) IncDecodeError(source string) {
	if m == nil {
		return
	}
	m.IngestDecodeErrors.WithLabelValues(source).Inc()
}

// IncOutOfRange records an ingested factor value that learning will ignore.
func (m *Metrics) IncOutOfRange(source, factor string) {
	if m == nil {
		return
	}
	m.IngestOutOfRange.WithLabelValues(source, factor).Inc()
}

// ObserveScore records a live score.
func (m *Metrics) ObserveScore(window string, score int) {
	if m == nil {
		return
	}
	m.LiveScores.WithLabelValues(window).Observe(float64(score))
}

// Describe implements the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.AnalysesTotal.Describe(ch)
	m.AnalysisErrors.Describe(ch)
	m.AnalysisDuration.Describe(ch)
	m.ReadingsAnalyzed.Describe(ch)
	m.LearningProgress.Describe(ch)
	m.CacheLookups.Describe(ch)
	m.IngestedReadings.Describe(ch)
	m.IngestDecodeErrors.Describe(ch)
	m.IngestOutOfRange.Describe(ch)
	m.LiveScores.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.AnalysesTotal.Collect(ch)
	m.AnalysisErrors.Collect(ch)
	m.AnalysisDuration.Collect(ch)
	m.ReadingsAnalyzed.Collect(ch)
	m.LearningProgress.Collect(ch)
	m.CacheLookups.Collect(ch)
	m.IngestedReadings.Collect(ch)
	m.IngestDecodeErrors.Collect(ch)
	m.IngestOutOfRange.Collect(ch)
	m.LiveScores.Collect(ch)
}
