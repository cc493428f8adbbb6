package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Chat metrics
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kekar_messages_sent_total",
			Help: "Total messages sent",
		},
	)

	MessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kekar_messages_received_total",
			Help: "Total inbound messages delivered by the realtime feed",
		},
	)

	SendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kekar_send_failures_total",
			Help: "Total message sends rejected by the backend",
		},
	)

	// Presence metrics
	HeartbeatTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kekar_heartbeat_ticks_total",
			Help: "Total successful presence heartbeat writes",
		},
	)

	HeartbeatFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kekar_heartbeat_failures_total",
			Help: "Total failed presence heartbeat writes",
		},
	)

	PresenceEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kekar_presence_events_total",
			Help: "Total presence change events delivered",
		},
	)

	// Subscription metrics
	ActiveSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kekar_active_subscriptions",
			Help: "Active realtime subscriptions per table",
		},
		[]string{"table"},
	)
)
