// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for membership operations.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

var (
	membershipOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watchparty",
		Name:      "membership_operations_total",
		Help:      "Party create/join/leave calls by operation and outcome.",
	}, []string{"op", "outcome"})

	membershipLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "watchparty",
		Name:      "membership_tx_seconds",
		Help:      "Duration of membership transactions.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	hostTransfers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "watchparty",
		Name:      "host_transfers_total",
		Help:      "Hosts reassigned because the previous host left.",
	})

	partiesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "watchparty",
		Name:      "parties_deleted_total",
		Help:      "Parties removed because their last participant left.",
	})

	publishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "watchparty",
		Name:      "event_publish_failures_total",
		Help:      "Party events that could not be handed to the broker.",
	})
)

// ObserveMembership records one finished membership operation.
func ObserveMembership(op, outcome string, took time.Duration) {
	membershipOps.WithLabelValues(op, outcome).Inc()
	membershipLatency.WithLabelValues(op).Observe(took.Seconds())
}

func HostTransferred()     { hostTransfers.Inc() }
func PartyDeleted()        { partiesDeleted.Inc() }
func EventPublishFailed()  { publishFailures.Inc() }
