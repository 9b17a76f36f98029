// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plugger Contributors

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/plugger/plugger/pkg/loader"
	"github.com/plugger/plugger/pkg/plugin"
)

// Transition outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics records plugin lifecycle transitions. It implements loader.Recorder.
type Metrics struct {
	TransitionsTotal  *prometheus.CounterVec
	TransitionSeconds *prometheus.HistogramVec
	Status            *prometheus.GaugeVec
}

var _ loader.Recorder = (*Metrics)(nil)

// NewMetrics creates and registers the lifecycle metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugger_plugin_transitions_total",
				Help: "Total number of plugin init and shutdown attempts by outcome",
			},
			[]string{"plugin", "event", "outcome"},
		),
		TransitionSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plugger_plugin_transition_seconds",
				Help:    "Time spent in plugin init and shutdown callbacks",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"event"},
		),
		Status: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "plugger_plugin_status",
				Help: "Current lifecycle status of each plugin (0 ready, 1 busy, 2 initialized, 3 crashed)",
			},
			[]string{"plugin"},
		),
	}

	reg.MustRegister(m.TransitionsTotal)
	reg.MustRegister(m.TransitionSeconds)
	reg.MustRegister(m.Status)

	return m
}

// RecordTransition implements loader.Recorder.
func (m *Metrics) RecordTransition(name string, event plugin.Event, status plugin.Status, elapsed time.Duration, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.TransitionsTotal.WithLabelValues(name, string(event), outcome).Inc()
	m.TransitionSeconds.WithLabelValues(string(event)).Observe(elapsed.Seconds())
	m.Status.WithLabelValues(name).Set(float64(status))
}
