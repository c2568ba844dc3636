package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveTurn(OutcomeDispatched, 120*time.Millisecond)
	m.ObserveTurn(OutcomeReply, 10*time.Millisecond)
	m.ObserveTurn(OutcomeReply, 10*time.Millisecond)
	m.ObserveClassification("refrigerator")
	m.ObserveRouting("parts", "keyword")
	m.ObserveHandler("parts", true)
	m.ObserveGeneration("classifier", time.Second, nil)
	m.ObserveGeneration("classifier", time.Second, errors.New("boom"))
	m.AddCost("gemini-2.5-flash", 0.25)
	m.AddCost("gemini-2.5-flash", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.turns.WithLabelValues(OutcomeReply)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.turns.WithLabelValues(OutcomeDispatched)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.classifications.WithLabelValues("refrigerator")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.routingDecisions.WithLabelValues("parts", "keyword")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handlerCalls.WithLabelValues("parts", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generationErrors.WithLabelValues("classifier")))
	assert.InDelta(t, 0.25, testutil.ToFloat64(m.llmCost.WithLabelValues("gemini-2.5-flash")), 1e-9)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTurn(OutcomeApology, time.Millisecond)
		m.ObserveClassification("other")
		m.ObserveRouting("manual", "default")
		m.ObserveHandler("manual", false)
		m.ObserveGeneration("routing", time.Millisecond, nil)
		m.AddCost("x", 1)
	})
}

func TestMetrics_NilRegistererSkipsRegistration(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil)
		New(nil)
	})
}
