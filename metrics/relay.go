// Package metrics exports Prometheus metrics for relay calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "txboost"

	relayRequestsTotalMetric   = "relay_requests_total"
	relayRequestDurationMetric = "relay_request_duration_seconds"
)

// Outcome labels for relay requests.
const (
	OutcomeSuccess        = "success"
	OutcomeEmpty          = "empty"
	OutcomeInvalidRequest = "invalid_request"
	OutcomeClientError    = "client_error"
	OutcomeRPCError       = "rpc_error"
	OutcomeTransport      = "transport_error"
	OutcomeMalformed      = "malformed"
)

var (
	// relayRequestsTotal counts relay calls.
	// Labels:
	//   - method: JSON-RPC method, e.g. eth_sendBundle
	//   - outcome: one of the Outcome* constants
	relayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      relayRequestsTotalMetric,
			Help:      "Total number of JSON-RPC requests sent to relays",
		},
		[]string{"method", "outcome"},
	)

	relayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      relayRequestDurationMetric,
			Help:      "Round trip time of JSON-RPC requests sent to relays",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// RecordRelayRequest records one finished relay call.
func RecordRelayRequest(method, outcome string, duration time.Duration) {
	relayRequestsTotal.With(prometheus.Labels{
		"method":  method,
		"outcome": outcome,
	}).Inc()
	relayRequestDuration.With(prometheus.Labels{"method": method}).Observe(duration.Seconds())
}
