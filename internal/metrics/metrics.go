package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Verify outcomes
const (
	OutcomeSuccess   = "success"
	OutcomeInvalid   = "invalid_request"
	OutcomeMalformed = "malformed_challenge"
	OutcomeSignature = "invalid_signature"
	OutcomeNonce     = "invalid_nonce"
	OutcomeError     = "error"
)

// Metrics holds the service counters. A nil *Metrics is a no-op.
type Metrics struct {
	noncesIssued    prometheus.Counter
	verifyAttempts  *prometheus.CounterVec
	ledgerFailures  prometheus.Counter
	eventsPublished *prometheus.CounterVec
}

// New registers the service counters on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		noncesIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wallet2fa",
			Name:      "nonces_issued_total",
			Help:      "Challenge nonces issued.",
		}),
		verifyAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet2fa",
			Name:      "verify_attempts_total",
			Help:      "Signature verification attempts by outcome.",
		}, []string{"outcome"}),
		ledgerFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wallet2fa",
			Name:      "ledger_failures_total",
			Help:      "Authentication records that could not be persisted.",
		}),
		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet2fa",
			Name:      "events_published_total",
			Help:      "Authenticated events published by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) NonceIssued() {
	if m == nil {
		return
	}
	m.noncesIssued.Inc()
}

func (m *Metrics) VerifyAttempt(outcome string) {
	if m == nil {
		return
	}
	m.verifyAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LedgerFailure() {
	if m == nil {
		return
	}
	m.ledgerFailures.Inc()
}

func (m *Metrics) EventPublished(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.eventsPublished.WithLabelValues(result).Inc()
}
