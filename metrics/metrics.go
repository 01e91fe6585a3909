package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "crm"

// Episode outcomes
const (
	OutcomeTerminated = "terminated"
	OutcomeTruncated  = "truncated"
	OutcomeError      = "error"
)

// Collector groups the counters updated while stepping cross products.
// A nil *Collector is valid and records nothing.
type Collector struct {
	steps          *prometheus.CounterVec
	episodes       *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	counterfactual *prometheus.CounterVec
}

// NewCollector registers the collectors on reg.
// Passing prometheus.DefaultRegisterer exposes them on the default /metrics handler.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		// steps counts real cross product steps.
		// Labels: machine
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Total cross product steps",
		}, []string{"machine"}),

		// episodes counts finished episodes.
		// Labels: machine, outcome (terminated, truncated, error)
		episodes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "episodes_total",
			Help:      "Total finished episodes by outcome",
		}, []string{"machine", "outcome"}),

		// transitions counts machine state changes, self loops included.
		// Labels: machine, from, to
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Total machine transitions by source and target state",
		}, []string{"machine", "from", "to"}),

		// counterfactual counts synthesized experiences.
		// Labels: machine, result (generated, skipped)
		counterfactual: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counterfactual_total",
			Help:      "Counterfactual experiences generated or skipped because no transition fired",
		}, []string{"machine", "result"}),
	}
}

func (c *Collector) RecordStep(machine string, from, to int) {
	if c == nil {
		return
	}
	c.steps.WithLabelValues(machine).Inc()
	c.transitions.WithLabelValues(machine, strconv.Itoa(from), strconv.Itoa(to)).Inc()
}

func (c *Collector) RecordEpisode(machine, outcome string) {
	if c == nil {
		return
	}
	c.episodes.WithLabelValues(machine, outcome).Inc()
}

func (c *Collector) RecordCounterfactual(machine string, generated, skipped int) {
	if c == nil {
		return
	}
	c.counterfactual.WithLabelValues(machine, "generated").Add(float64(generated))
	c.counterfactual.WithLabelValues(machine, "skipped").Add(float64(skipped))
}
