package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_events_delivered_total",
		Help: "Events enqueued to a recipient's connection.",
	}, []string{"event"})

	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_events_dropped_total",
		Help: "Events dropped because the recipient's send queue was full or closing.",
	}, []string{"event"})

	eventsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_events_skipped_total",
		Help: "Best-effort events skipped because the recipient had no session.",
	}, []string{"event"})

	connectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connections_active",
		Help: "Currently registered websocket connections.",
	})
)
