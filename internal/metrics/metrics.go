// Package metrics holds the prometheus collectors for the conversation router.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "appliance_router"

// Turn outcomes.
const (
	OutcomeReply      = "reply"
	OutcomeDispatched = "dispatched"
	OutcomeFallback   = "fallback"
	OutcomeApology    = "apology"
)

type Metrics struct {
	turns            *prometheus.CounterVec
	turnDuration     prometheus.Histogram
	classifications  *prometheus.CounterVec
	routingDecisions *prometheus.CounterVec
	handlerCalls     *prometheus.CounterVec
	generation       *prometheus.HistogramVec
	generationErrors *prometheus.CounterVec
	llmCost          *prometheus.CounterVec
}

// New builds the collectors and registers them on reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of handled turns by outcome",
		}, []string{"outcome"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall time of one handled turn",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Classifier verdicts by category",
		}, []string{"category"}),
		routingDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_decisions_total",
			Help:      "Routing decisions by handler and decision source",
		}, []string{"handler", "source"}),
		handlerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_calls_total",
			Help:      "Help handler invocations by handler and success",
		}, []string{"handler", "success"}),
		generation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Duration of text-generation calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"component"}),
		generationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_errors_total",
			Help:      "Failed text-generation calls",
		}, []string{"component"}),
		llmCost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_cost_usd_total",
			Help:      "Accumulated model usage cost in USD",
		}, []string{"model"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.turns,
			m.turnDuration,
			m.classifications,
			m.routingDecisions,
			m.handlerCalls,
			m.generation,
			m.generationErrors,
			m.llmCost,
		)
	}
	return m
}

func (m *Metrics) ObserveTurn(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
	m.turnDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveClassification(category string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(category).Inc()
}

func (m *Metrics) ObserveRouting(handler, source string) {
	if m == nil {
		return
	}
	m.routingDecisions.WithLabelValues(handler, source).Inc()
}

func (m *Metrics) ObserveHandler(handler string, success bool) {
	if m == nil {
		return
	}
	s := "false"
	if success {
		s = "true"
	}
	m.handlerCalls.WithLabelValues(handler, s).Inc()
}

// ObserveGeneration records one text-generation call; err marks it failed.
func (m *Metrics) ObserveGeneration(component string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.generation.WithLabelValues(component).Observe(d.Seconds())
	if err != nil {
		m.generationErrors.WithLabelValues(component).Inc()
	}
}

func (m *Metrics) AddCost(model string, usd float64) {
	if m == nil || usd <= 0 {
		return
	}
	m.llmCost.WithLabelValues(model).Add(usd)
}
