package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.NonceIssued()
	m.NonceIssued()
	m.VerifyAttempt(OutcomeSuccess)
	m.VerifyAttempt(OutcomeNonce)
	m.VerifyAttempt(OutcomeNonce)
	m.LedgerFailure()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.noncesIssued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifyAttempts.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.verifyAttempts.WithLabelValues(OutcomeNonce)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ledgerFailures))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.NonceIssued()
	m.VerifyAttempt(OutcomeError)
	m.LedgerFailure()
	m.EventPublished(true)
}
