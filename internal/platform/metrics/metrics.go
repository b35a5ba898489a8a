package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// SearchRuns counts dispatch search runs by outcome (ok, aborted, error).
	SearchRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_search_runs_total", Help: "Dispatch search runs by outcome."},
		[]string{"outcome"},
	)
	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "dispatch_search_duration_seconds", Help: "Dispatch search wall time in seconds.", Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2, 5, 10}},
	)
	SearchExplored = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "dispatch_search_explored_states", Help: "Distinct search states expanded per run.", Buckets: prometheus.ExponentialBuckets(1, 4, 10)},
	)
	SearchMemoHits = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dispatch_search_memo_hits_total", Help: "Memoized subtree results reused."},
	)

	// TravelTimeLookups counts oracle lookups by result (hit, miss).
	TravelTimeLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "traveltime_cache_lookups_total", Help: "Travel-time cache lookups by result."},
		[]string{"result"},
	)
	// ProviderCalls counts external provider calls by provider and status (ok, no_route, error).
	ProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "traveltime_provider_calls_total", Help: "External routing/isochrone provider calls."},
		[]string{"provider", "status"},
	)

	ZonesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "zones_dropped_total", Help: "Candidate zones dropped as empty after subtraction."},
	)
)

var regOnce sync.Once

// Register adds every collector to Registry. Safe to call more than once.
func Register() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(SearchRuns, SearchDuration, SearchExplored, SearchMemoHits)
		Registry.MustRegister(TravelTimeLookups, ProviderCalls, ZonesDropped)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler exposes Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
