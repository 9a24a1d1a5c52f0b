package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// TriggersPublished counts update triggers by outcome (ok/error/skipped)
var TriggersPublished = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coinstats_triggers_published_total",
		Help: "Update triggers the scheduler attempted to publish",
	},
	[]string{"result"},
)

// BusConnects counts bus connection attempts by role and outcome
var BusConnects = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coinstats_bus_connect_attempts_total",
		Help: "Connection and subscription attempts against the message bus",
	},
	[]string{"role", "result"},
)

// Ingestion cycle metrics
var (
	IngestCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinstats_ingest_cycles_total",
			Help: "Ingestion cycles run in response to update triggers",
		},
		[]string{"result"},
	)

	StatsStored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinstats_stats_stored_total",
			Help: "Price records written, by coin and outcome",
		},
		[]string{"coin", "result"},
	)

	SourceFetchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coinstats_source_fetch_latency_seconds",
			Help:    "Latency of upstream quote fetches",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// HTTPRequests counts API requests by route and status code
var HTTPRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coinstats_http_requests_total",
		Help: "HTTP requests served by the stats API",
	},
	[]string{"route", "status"},
)

func init() {
	prometheus.MustRegister(TriggersPublished, BusConnects)
	prometheus.MustRegister(IngestCycles, StatsStored, SourceFetchLatency)
	prometheus.MustRegister(HTTPRequests)
}
