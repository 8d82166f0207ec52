// Package metrics holds the Prometheus collectors for the engine.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	Turns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moviegraph",
		Name:      "turns_total",
		Help:      "Conversation turns handled, by engine profile and outcome.",
	}, []string{"profile", "outcome"})

	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "moviegraph",
		Name:      "stage_duration_seconds",
		Help:      "Latency of translation, execution and synthesis round trips.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"profile", "stage"})

	Sessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "moviegraph",
		Name:      "sessions_active",
		Help:      "Conversation sessions currently held in the registry.",
	})

	Evictions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "moviegraph",
		Name:      "sessions_evicted_total",
		Help:      "Sessions removed for being idle past the TTL.",
	})
)

// Register adds all collectors to reg. Registering twice is not an error.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{Turns, StageDuration, Sessions, Evictions} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}
