// Package metrics defines the Prometheus collectors for crawling, indexing and serving.
// Every method is safe to call on a nil *Metrics, so components can run without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "film_indexer"

// Page kinds used as the "kind" label on fetch metrics
const (
	KindListing = "listing"
	KindDetail  = "detail"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	PagesFetchedTotal   *prometheus.CounterVec
	FetchDuration       *prometheus.HistogramVec
	FetchRetriesTotal   prometheus.Counter
	WorkUnitsTotal      *prometheus.CounterVec
	DetailLinksSkipped  prometheus.Counter
	WorkQueueDepth      prometheus.Gauge
	WorkersBusy         prometheus.Gauge
	IndexRecords        prometheus.Gauge
	IndexTerms          prometheus.Gauge
	NameCollisionsTotal prometheus.Counter

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	MCPToolCallsTotal   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates all collectors and registers them on reg.
// A nil reg gets a private registry, which keeps tests independent of the global default.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		PagesFetchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_fetched_total",
				Help:      "Pages fetched by kind (listing, detail) and outcome (success, failure).",
			},
			[]string{"kind", "outcome"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Page fetch latency in seconds, retries included.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
		FetchRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_retries_total",
				Help:      "HTTP request retries after a transient failure.",
			},
		),
		WorkUnitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "work_units_total",
				Help:      "Finished detail work units by outcome and error category.",
			},
			[]string{"outcome", "category"},
		),
		DetailLinksSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "detail_links_skipped_total",
				Help:      "Detail links not dispatched because they were already seen in this crawl.",
			},
		),
		WorkQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "work_queue_depth",
				Help:      "Work units waiting in the bounded queue.",
			},
		),
		WorkersBusy: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "workers_busy",
				Help:      "Workers currently executing a work unit.",
			},
		),
		IndexRecords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_records",
				Help:      "Distinct records in the inverted index.",
			},
		),
		IndexTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_terms",
				Help:      "Distinct terms in the inverted index.",
			},
		),
		NameCollisionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_name_collisions_total",
				Help:      "Extracted records whose name was already indexed.",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Query API requests by method, route, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Query API latency in seconds.",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "path"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_cache_hits_total",
				Help:      "Term lookups answered from the response cache.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_cache_misses_total",
				Help:      "Term lookups that had to query the index.",
			},
		),
		MCPToolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mcp_tool_calls_total",
				Help:      "MCP tool invocations by tool and outcome.",
			},
			[]string{"tool", "outcome"},
		),
	}

	reg.MustRegister(
		m.PagesFetchedTotal,
		m.FetchDuration,
		m.FetchRetriesTotal,
		m.WorkUnitsTotal,
		m.DetailLinksSkipped,
		m.WorkQueueDepth,
		m.WorkersBusy,
		m.IndexRecords,
		m.IndexTerms,
		m.NameCollisionsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.MCPToolCallsTotal,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// Handler returns the scrape handler for the registry the metrics were registered on.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// ObserveFetch records one page fetch of the given kind.
func (m *Metrics) ObserveFetch(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.PagesFetchedTotal.WithLabelValues(kind, outcome(err)).Inc()
	m.FetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.FetchRetriesTotal.Inc()
}

// ObserveWorkUnit records a finished work unit. category is "None" on success.
func (m *Metrics) ObserveWorkUnit(err error, category string) {
	if m == nil {
		return
	}
	m.WorkUnitsTotal.WithLabelValues(outcome(err), category).Inc()
}

func (m *Metrics) IncSkipped() {
	if m == nil {
		return
	}
	m.DetailLinksSkipped.Inc()
}

func (m *Metrics) IncNameCollision() {
	if m == nil {
		return
	}
	m.NameCollisionsTotal.Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.WorkQueueDepth.Set(float64(n))
}

// WorkerBusy adjusts the busy-worker gauge by delta (+1 on start, -1 on finish).
func (m *Metrics) WorkerBusy(delta int) {
	if m == nil {
		return
	}
	m.WorkersBusy.Add(float64(delta))
}

func (m *Metrics) SetIndexSize(records, terms int) {
	if m == nil {
		return
	}
	m.IndexRecords.Set(float64(records))
	m.IndexTerms.Set(float64(terms))
}

// ObserveCache records a response cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.Inc()
	} else {
		m.CacheMissesTotal.Inc()
	}
}

func (m *Metrics) ObserveToolCall(tool string, err error) {
	if m == nil {
		return
	}
	m.MCPToolCallsTotal.WithLabelValues(tool, outcome(err)).Inc()
}
