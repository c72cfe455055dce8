package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	ItemsScrapedTotal prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
	CohortsTotal      *prometheus.CounterVec
	CacheHitsTotal    prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booksdata_requests_total",
			Help: "Total HTTP requests issued by the transport.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "booksdata_request_duration_seconds",
			Help:    "HTTP request latency for transport requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	itemsScraped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "booksdata_items_scraped_total",
			Help: "Total number of product records parsed.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booksdata_errors_total",
			Help: "Total number of fetch errors by type.",
		},
		[]string{"error_type"},
	)
	cohorts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booksdata_cohorts_total",
			Help: "Concurrent cohorts by stage and outcome.",
		},
		[]string{"stage", "outcome"},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "booksdata_cache_hits_total",
			Help: "Fetches served from the session body cache.",
		},
	)

	registry.MustRegister(requests, requestDuration, itemsScraped, errorsTotal, cohorts, cacheHits)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		ItemsScrapedTotal: itemsScraped,
		ErrorsTotal:       errorsTotal,
		CohortsTotal:      cohorts,
		CacheHitsTotal:    cacheHits,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncItems increments the items scraped counter.
func (m *Metrics) IncItems() {
	if m == nil {
		return
	}
	m.ItemsScrapedTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncCohort records the outcome of one cohort.
func (m *Metrics) IncCohort(stage, outcome string) {
	if m == nil {
		return
	}
	m.CohortsTotal.WithLabelValues(stage, outcome).Inc()
}

// IncCacheHit increments the cache hit counter.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}
