package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the wallet gateway. All metrics are registered on the
// default registry via promauto and exposed on /metrics.
var (
	ConnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "secretforge_connect_attempts_total",
		Help: "Wallet connect attempts by outcome.",
	}, []string{"outcome"})

	ConnectDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "secretforge_connect_duration_seconds",
		Help:    "Wall time of the full connect sequence.",
		Buckets: prometheus.DefBuckets,
	})

	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "secretforge_provider_calls_total",
		Help: "Calls to the wallet provider by operation and outcome.",
	}, []string{"operation", "outcome"})

	ChainRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "secretforge_chain_request_duration_seconds",
		Help:    "Latency of LCD requests by operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	KeyResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "secretforge_key_resolutions_total",
		Help: "Viewing key resolutions by source (cache, provider, created, recovered, failed).",
	}, []string{"source"})

	BalanceQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "secretforge_balance_queries_total",
		Help: "Token balance queries by outcome.",
	}, []string{"outcome"})

	EventSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "secretforge_event_subscribers",
		Help: "Currently connected status event subscribers.",
	})
)
