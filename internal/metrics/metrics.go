// Package metrics collects and exposes operational counters for the
// fetch-convert pipeline and the query API.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the prometheus metrics of one server instance. Each
// collector registers its metrics on its own registry so tests can create
// as many as they need.
type Collector struct {
	registry *prometheus.Registry

	fetchFailures    prometheus.Counter
	convertFailures  prometheus.Counter
	cyclesPublished  prometheus.Counter
	evictedArtifacts prometheus.Counter
	queries          *prometheus.CounterVec
	pipelineDuration prometheus.Histogram
	cachedCycles     prometheus.Gauge
}

// NewCollector creates and registers the full metric set.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wind_fetch_failures_total",
			Help: "Total number of failed upstream fetch attempts",
		}),
		convertFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wind_convert_failures_total",
			Help: "Total number of failed conversion attempts",
		}),
		cyclesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wind_cycles_published_total",
			Help: "Total number of cycles converted and published to the dataset cache",
		}),
		evictedArtifacts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wind_evicted_artifacts_total",
			Help: "Total number of artifacts removed by retention eviction",
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wind_queries_total",
			Help: "Total number of dataset queries served, by outcome",
		}, []string{"outcome"}),
		pipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wind_pipeline_duration_seconds",
			Help:    "Duration of successful fetch-convert-publish runs",
			Buckets: prometheus.DefBuckets,
		}),
		cachedCycles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wind_cached_cycles",
			Help: "Current number of cycles persisted in the dataset cache",
		}),
	}

	c.registry.MustRegister(
		c.fetchFailures,
		c.convertFailures,
		c.cyclesPublished,
		c.evictedArtifacts,
		c.queries,
		c.pipelineDuration,
		c.cachedCycles,
	)

	return c
}

// RecordFetchFailure counts one failed upstream fetch.
func (c *Collector) RecordFetchFailure() {
	c.fetchFailures.Inc()
}

// RecordConvertFailure counts one failed conversion.
func (c *Collector) RecordConvertFailure() {
	c.convertFailures.Inc()
}

// RecordPublish counts one completed pipeline run and its duration.
func (c *Collector) RecordPublish(seconds float64) {
	c.cyclesPublished.Inc()
	c.pipelineDuration.Observe(seconds)
}

// RecordQuery counts one served query as a hit or a miss.
func (c *Collector) RecordQuery(hit bool) {
	if hit {
		c.queries.WithLabelValues("hit").Inc()
	} else {
		c.queries.WithLabelValues("miss").Inc()
	}
}

// RecordEvicted counts artifacts removed by the retention step.
func (c *Collector) RecordEvicted(n int) {
	c.evictedArtifacts.Add(float64(n))
}

// SetCachedCycles updates the cached-cycle gauge.
func (c *Collector) SetCachedCycles(n int) {
	c.cachedCycles.Set(float64(n))
}

// Handler returns the /metrics HTTP handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// StartServer serves the collector on its own listener. It blocks, so
// callers typically run it in a goroutine.
func StartServer(port int, c *Collector) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}
