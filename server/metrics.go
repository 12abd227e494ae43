package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Connections prometheus.Gauge
	Waiting     prometheus.Gauge
	Matches     prometheus.Counter
	Rejected    prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "tangerine", Subsystem: "lobby", Name: "connections",
			Help: "Open lobby websocket connections.",
		}),
		Waiting: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "tangerine", Subsystem: "lobby", Name: "waiting",
			Help: "Players waiting for an opponent.",
		}),
		Matches: f.NewCounter(prometheus.CounterOpts{
			Namespace: "tangerine", Subsystem: "lobby", Name: "matches_total",
			Help: "Pairings handed out.",
		}),
		Rejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: "tangerine", Subsystem: "lobby", Name: "rejected_hellos_total",
			Help: "Hello messages answered with an error.",
		}),
	}
}
