package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal     *prometheus.CounterVec
	solanaRPCCallDuration   *prometheus.HistogramVec
	solanaSubmissionsTotal  *prometheus.CounterVec
	solanaConfirmationDelay prometheus.Histogram

	// Transfer Metrics
	transfersTotal        *prometheus.CounterVec
	transferLamportsTotal *prometheus.CounterVec
	transferFeeLamports   prometheus.Histogram
	airdropsTotal         *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
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
		solanaSubmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_submissions_total",
				Help: "Total number of submitted transactions by outcome (confirmed, retriable, failed)",
			},
			[]string{"outcome"},
		),
		solanaConfirmationDelay: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "solana_confirmation_duration_seconds",
				Help:    "Time from submission until the requested commitment was reached",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
			},
		),

		// Transfer Metrics
		transfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfers_total",
				Help: "Total number of transfers by mode (fixed, drain) and status",
			},
			[]string{"mode", "status"},
		),
		transferLamportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfer_lamports_total",
				Help: "Total lamports moved by confirmed transfers",
			},
			[]string{"mode"},
		),
		transferFeeLamports: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "transfer_fee_lamports",
				Help:    "Fee estimates returned for drain transfers",
				Buckets: []float64{5000, 10000, 25000, 50000, 100000, 500000},
			},
		),
		airdropsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "airdrops_total",
				Help: "Total number of airdrop requests by status",
			},
			[]string{"status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordSubmission records the outcome of a send-and-confirm.
func (m *Metrics) RecordSubmission(outcome string, duration float64) {
	m.solanaSubmissionsTotal.WithLabelValues(outcome).Inc()
	if outcome == "confirmed" {
		m.solanaConfirmationDelay.Observe(duration)
	}
}

// Transfer metric helpers

// RecordTransfer records a transfer attempt. Lamports are only counted for successes.
func (m *Metrics) RecordTransfer(mode, status string, lamports uint64) {
	m.transfersTotal.WithLabelValues(mode, status).Inc()
	if status == "success" {
		m.transferLamportsTotal.WithLabelValues(mode).Add(float64(lamports))
	}
}

// RecordFeeEstimate records the fee quoted for a drain transfer.
func (m *Metrics) RecordFeeEstimate(fee uint64) {
	m.transferFeeLamports.Observe(float64(fee))
}

// RecordAirdrop records an airdrop request.
func (m *Metrics) RecordAirdrop(status string) {
	m.airdropsTotal.WithLabelValues(status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Timer returns a func that reports the seconds elapsed since start to
// recordFunc. Call it once the timed operation has returned.
func Timer(start time.Time, recordFunc func(float64)) func() {
	return func() {
		recordFunc(time.Since(start).Seconds())
	}
}

// WriteTextfile writes every metric gathered by g to path in the text
// exposition format, for pickup by a node_exporter textfile collector.
// A CLI run is too short-lived to be scraped.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
