// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package runner

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "maasng"

// Collector is a prometheus.Collector that collects metrics about
// applied states.
type Collector struct {
	results  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "state_results_total",
				Help:      "The number of applied states by kind and outcome.",
			}, []string{"state", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "state_duration_seconds",
				Help:      "The time taken to apply a state.",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 1800},
			}, []string{"state"},
		),
	}
}

func (c *Collector) observe(kind, outcome string, seconds float64) {
	c.results.WithLabelValues(kind, outcome).Inc()
	c.duration.WithLabelValues(kind).Observe(seconds)
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.results.Describe(ch)
	c.duration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.results.Collect(ch)
	c.duration.Collect(ch)
}
