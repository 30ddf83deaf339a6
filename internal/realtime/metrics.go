package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EvictReason identifies why a connection left the registry
type EvictReason string

const (
	EvictLivenessTimeout EvictReason = "liveness_timeout"
	EvictSendFailed      EvictReason = "send_failed"
	EvictClientClosed    EvictReason = "client_closed"
)

var (
	connectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connections_active",
			Help: "Number of registered realtime connections",
		},
	)

	connectionsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_connections_opened_total",
			Help: "Total number of realtime connections registered",
		},
	)

	connectionsRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_connections_removed_total",
			Help: "Total number of realtime connections removed",
		},
		[]string{"reason"},
	)

	eventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_sent_total",
			Help: "Total number of events delivered to transports",
		},
		[]string{"type"},
	)

	eventsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_failed_total",
			Help: "Total number of event sends that failed",
		},
		[]string{"type"},
	)

	inboundFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_inbound_frames_total",
			Help: "Total number of inbound frames by type",
		},
		[]string{"type"},
	)

	livenessTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_liveness_ticks_total",
			Help: "Total number of liveness rounds run",
		},
	)
)
