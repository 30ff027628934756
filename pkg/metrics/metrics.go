// Package metrics provides the centralized Prometheus metrics reference.
// All metrics are defined in their respective packages (soda, cache, fetch,
// throttle) via promauto to maintain modularity and avoid circular
// dependencies.
//
// This package documents what is available.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the module.
// All metrics are automatically registered via promauto in their packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/soda):
//   - soda_requests_total{dataset, status} (Counter): Requests by dataset and HTTP status
//   - soda_request_duration_seconds{dataset} (Histogram): Request duration by dataset
//   - soda_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - soda_records_fetched_total{dataset} (Counter): Records fetched by dataset
//
// Cache Metrics (pkg/cache):
//   - soda_cache_hits_total (Counter): Page cache hits
//   - soda_cache_misses_total (Counter): Page cache misses
//   - soda_cache_errors_total{operation} (Counter): Cache operation errors
//
// Pacing Metrics (pkg/throttle):
//   - throttle_waits_total (Counter): Inter-request politeness waits
//   - throttle_rate_limited_total (Counter): Rate-limited responses observed
//   - throttle_wait_seconds (Histogram): Duration of pacing waits
//
// Fetch Metrics (pkg/fetch):
//   - fetch_runs_total{outcome} (Counter): Runs by outcome (empty_page, short_page, partial_failure, error)
//   - fetch_pages_per_run (Histogram): Pages accumulated per run
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(soda_cache_hits_total[5m])) /
//   (sum(rate(soda_cache_hits_total[5m])) + sum(rate(soda_cache_misses_total[5m])))
//
//   # Request Error Rate
//   rate(soda_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(soda_request_duration_seconds_bucket[5m]))
//
//   # Truncated Run Rate
//   rate(fetch_runs_total{outcome="partial_failure"}[5m])
