package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics. A nil
// *Metrics is valid and records nothing, so short-lived CLI paths
// don't have to wire a registry.
type Metrics struct {
	// Solana RPC metrics
	solanaRPCCallsTotal        *prometheus.CounterVec
	solanaRPCCallDuration      *prometheus.HistogramVec
	solanaRPCRetries           *prometheus.CounterVec
	solanaRPCSignaturesPerCall *prometheus.HistogramVec

	// Discovery metrics
	discoveryTotal        *prometheus.CounterVec
	discoveryPagesWalked  *prometheus.HistogramVec
	cacheLookupsTotal     *prometheus.CounterVec
	cacheWritesTotal      *prometheus.CounterVec

	// NATS metrics
	natsMessagesPublished *prometheus.CounterVec
}

// New creates a Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_retries_total",
				Help: "Total number of Solana RPC retry attempts",
			},
			[]string{"method", "reason"},
		),
		solanaRPCSignaturesPerCall: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_signatures_per_call",
				Help:    "Number of signatures fetched per getSignaturesForAddress call",
				Buckets: []float64{1, 10, 50, 100, 250, 500, 1000},
			},
			[]string{"endpoint"},
		),
		discoveryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_requests_total",
				Help: "Total number of first-transaction discoveries by source and status",
			},
			[]string{"source", "status"},
		),
		discoveryPagesWalked: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "discovery_pages_walked",
				Help:    "Number of signature pages walked per pagination search",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
			},
			[]string{"network"},
		),
		cacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_cache_lookups_total",
				Help: "Total number of result cache lookups by outcome",
			},
			[]string{"result"},
		),
		cacheWritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_cache_writes_total",
				Help: "Total number of result cache writes by status",
			},
			[]string{"status"},
		),
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of discovery events published to NATS",
			},
			[]string{"status"},
		),
	}
}

// RecordRPCCall records a Solana RPC call with its status and duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordRPCRetry records a retried RPC attempt.
func (m *Metrics) RecordRPCRetry(method, reason string) {
	if m == nil {
		return
	}
	m.solanaRPCRetries.WithLabelValues(method, reason).Inc()
}

// RecordRPCSignaturesPerCall records how many signatures one page returned.
func (m *Metrics) RecordRPCSignaturesPerCall(endpoint string, count float64) {
	if m == nil {
		return
	}
	m.solanaRPCSignaturesPerCall.WithLabelValues(endpoint).Observe(count)
}

// RecordDiscovery records the outcome of one discovery by source.
func (m *Metrics) RecordDiscovery(source, status string) {
	if m == nil {
		return
	}
	m.discoveryTotal.WithLabelValues(source, status).Inc()
}

// RecordPagesWalked records the page count of one pagination search.
func (m *Metrics) RecordPagesWalked(network string, pages float64) {
	if m == nil {
		return
	}
	m.discoveryPagesWalked.WithLabelValues(network).Observe(pages)
}

// RecordCacheLookup records a cache lookup outcome ("hit", "miss" or "error").
func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordCacheWrite records a cache write outcome.
func (m *Metrics) RecordCacheWrite(status string) {
	if m == nil {
		return
	}
	m.cacheWritesTotal.WithLabelValues(status).Inc()
}

// RecordNATSPublish records a discovery event publish attempt.
func (m *Metrics) RecordNATSPublish(status string) {
	if m == nil {
		return
	}
	m.natsMessagesPublished.WithLabelValues(status).Inc()
}
