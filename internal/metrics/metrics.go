// Package metrics defines the Prometheus instruments exported by
// storm-assess. All metrics share the stormassess_ prefix.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestRuns counts ingest runs by result ("ok" or "error").
	IngestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stormassess_ingest_runs_total",
		Help: "Completed ingest runs by result",
	}, []string{"result"})

	// FilesParsed counts track files handled per format and result
	// ("ok", "error" or "skipped").
	FilesParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stormassess_files_parsed_total",
		Help: "Track files processed by format and result",
	}, []string{"format", "result"})

	// StormsIngested counts storms written to the catalogue.
	StormsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stormassess_storms_ingested_total",
		Help: "Storms written to the catalogue",
	})

	// IngestDuration observes wall time of ingest runs.
	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stormassess_ingest_duration_seconds",
		Help:    "Ingest run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	// HTTPRequests counts API requests by status code, method and route.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stormassess_http_requests_total",
		Help: "HTTP requests by code, method and route",
	}, []string{"code", "method", "route"})

	// HTTPDuration observes API request latencies by route.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stormassess_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// RegionCache counts region-classification cache lookups by result
	// ("hit" or "miss").
	RegionCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stormassess_region_cache_total",
		Help: "Region classification cache lookups by result",
	}, []string{"result"})
)
