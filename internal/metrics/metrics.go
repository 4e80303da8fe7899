// Package metrics collects and exposes Prometheus metrics for the ledger.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/ballot/internal/model"
)

// Vote outcomes used as the "outcome" label.
const (
	OutcomeAccepted          = "accepted"
	OutcomeAlreadyVoted      = "already_voted"
	OutcomeUnknownRegistrant = "unknown_registrant"
	OutcomeUnknownIdentity   = "unknown_identity"
	OutcomeError             = "error"
)

// Recorder is the metrics surface used by the ledger components.
type Recorder interface {
	RecordVote(outcome string)
	RecordOperation(op string, err error, d time.Duration)
	RecordProbe(result string)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	votes      *prometheus.CounterVec
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	probes     *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ballot_votes_total",
			Help: "castVote attempts by outcome",
		}, []string{"outcome"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ballot_operations_total",
			Help: "Ledger operations by name and error kind (empty kind on success)",
		}, []string{"op", "kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ballot_operation_duration_seconds",
			Help:    "Ledger operation latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ballot_sensor_probes_total",
			Help: "Biometric probe resolutions by result",
		}, []string{"result"}),
	}

	reg.MustRegister(c.votes, c.operations, c.latency, c.probes)
	return c
}

// RecordVote counts a castVote outcome.
func (c *Collector) RecordVote(outcome string) {
	c.votes.WithLabelValues(outcome).Inc()
}

// RecordOperation counts op and observes its latency.
func (c *Collector) RecordOperation(op string, err error, d time.Duration) {
	c.operations.WithLabelValues(op, string(model.KindOf(err))).Inc()
	c.latency.WithLabelValues(op).Observe(d.Seconds())
}

// RecordProbe counts a probe resolution ("match", "cancelled", "sensor_error").
func (c *Collector) RecordProbe(result string) {
	c.probes.WithLabelValues(result).Inc()
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordVote(string)                             {}
func (Nop) RecordOperation(string, error, time.Duration) {}
func (Nop) RecordProbe(string)                            {}

// VoteOutcome maps a castVote error to its outcome label.
func VoteOutcome(err error) string {
	switch model.KindOf(err) {
	case "":
		if err == nil {
			return OutcomeAccepted
		}
		return OutcomeError
	case model.KindAlreadyVoted:
		return OutcomeAlreadyVoted
	case model.KindUnknownRegistrant:
		return OutcomeUnknownRegistrant
	case model.KindNotFound:
		return OutcomeUnknownIdentity
	default:
		return OutcomeError
	}
}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
