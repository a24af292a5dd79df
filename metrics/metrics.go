package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// GeoLookupsTotal counts geolocation resolutions by outcome.
	GeoLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "complaint_service",
		Subsystem: "geolocation",
		Name:      "lookups_total",
		Help:      "Total number of geolocation resolutions, labeled by outcome (success, unknown, cache_hit, fallback, short_circuited).",
	}, []string{"outcome"})

	// GeoLookupDurationSeconds is the wall time of a full resolution, retries included.
	GeoLookupDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "complaint_service",
		Subsystem: "geolocation",
		Name:      "lookup_duration_seconds",
		Help:      "Time to resolve a network address to a country, including retries.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	// GeoBreakerState is the circuit breaker state: 0 closed, 1 open, 2 half-open.
	GeoBreakerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "complaint_service",
		Subsystem: "geolocation",
		Name:      "breaker_state",
		Help:      "Current circuit breaker state of the geolocation dependency (0=closed, 1=open, 2=half-open).",
	})

	// ComplaintWritesTotal counts complaint submissions by result.
	ComplaintWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "complaint_service",
		Subsystem: "complaints",
		Name:      "writes_total",
		Help:      "Total number of complaint submissions processed, labeled by result (created, deduplicated, failed).",
	}, []string{"result"})

	// EventPublishErrorTotal counts failed complaint event publishes.
	EventPublishErrorTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "complaint_service",
		Subsystem: "complaints",
		Name:      "event_publish_error_total",
		Help:      "Total number of complaint lifecycle events that failed to publish to RabbitMQ.",
	})
)

// MustRegister registers all collectors with the default registry. Safe to
// call more than once.
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			GeoLookupsTotal,
			GeoLookupDurationSeconds,
			GeoBreakerState,
			ComplaintWritesTotal,
			EventPublishErrorTotal,
		)
	})
}
