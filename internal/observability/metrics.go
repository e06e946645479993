package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocketConnectionsTotal is the gauge of active WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parley_websocket_connections_total",
		Help: "Number of active WebSocket connections",
	})

	// KnownUsers is the gauge of registry records, connected or not.
	KnownUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parley_known_users",
		Help: "Number of user records in the registry (including disconnected)",
	})

	// FramesTotal counts processed inbound frames by opcode.
	FramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_frames_total",
		Help: "Total inbound frames processed by opcode",
	}, []string{"opcode"})

	// FramesDropped counts inbound frames dropped without processing.
	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_frames_dropped_total",
		Help: "Total inbound frames dropped by reason",
	}, []string{"reason"})

	// WireErrors counts ERROR frames sent to clients by error code.
	WireErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_wire_errors_total",
		Help: "Total ERROR frames sent by error code",
	}, []string{"code"})

	// BackpressureDrops counts outbound frames dropped because a client's
	// send buffer was full or its channel already closed.
	BackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_backpressure_drops_total",
		Help: "Total outbound frames dropped due to backpressure",
	}, []string{"reason"})

	// StatusTransitions counts presence transitions by resulting status.
	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_status_transitions_total",
		Help: "Total presence transitions by resulting status",
	}, []string{"status"})

	// EvictedUsers counts records hard-evicted by the reaper.
	EvictedUsers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parley_evicted_users_total",
		Help: "Total user records evicted after the disconnect grace period",
	})
)
