package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bsuchat_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// MessagesRouted counts send attempts by room class and outcome.
	MessagesRouted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bsuchat_messages_routed_total",
		Help: "Total number of chat send attempts by room class and outcome",
	}, []string{"class", "outcome"})

	// ModerationActions counts block and report actions.
	ModerationActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bsuchat_moderation_actions_total",
		Help: "Total number of moderation actions by kind",
	}, []string{"action"})

	// SweepPrunedMessages counts messages removed by the expiry sweeper.
	SweepPrunedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bsuchat_sweep_pruned_messages_total",
		Help: "Total number of messages removed by the expiry sweeper",
	}, []string{"class"})

	// SweepRoomFailures counts per-room prune failures.
	SweepRoomFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bsuchat_sweep_room_failures_total",
		Help: "Total number of rooms whose prune failed during a sweep",
	})

	// SweepDuration records how long a full sweep pass takes.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bsuchat_sweep_duration_seconds",
		Help:    "Duration of an expiry sweep pass in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bsuchat_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts inbound WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bsuchat_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bsuchat_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)
