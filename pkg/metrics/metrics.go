package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeError        = "error"
	OutcomeNoCredential = "no_credential"
)

// Cache lookup results.
const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheShared = "shared"
	CacheError  = "error"
)

var (
	// Remote fetches
	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txdash_fetch_total",
			Help: "Remote query fetches by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)
	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "txdash_fetch_duration_seconds",
			Help:    "Duration of remote query fetches",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"mode"},
	)

	// Result cache
	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txdash_cache_total",
			Help: "Result cache lookups by result",
		},
		[]string{"result"},
	)

	// HTTP
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_requests_latency_seconds",
			Help:    "Latency of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	initOnce sync.Once
)

// Init registers every collector with the default registry. It is safe to
// call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(FetchTotal)
		prometheus.MustRegister(FetchDuration)
		prometheus.MustRegister(CacheTotal)
		prometheus.MustRegister(HTTPLatency)
	})
}

// Handler serves the default registry for /metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}
