package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Realtime engine metrics for monitoring event flow, dedup effectiveness
// and notification delivery
var (
	EventReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_event_received_total",
		Help: "Total number of transport events received",
	}, []string{"type"})

	MessageDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_message_duplicate_total",
		Help: "Total number of messages suppressed by the dedup cache",
	})

	MessageDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_message_dropped_total",
		Help: "Total number of messages dropped from unread/notification processing",
	}, []string{"reason"})

	NotificationEffectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_notification_effect_total",
		Help: "Notification side effects by outcome",
	}, []string{"effect", "status"})

	CallTerminatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_call_terminated_total",
		Help: "Call sessions terminated, by cause",
	}, []string{"cause"})

	CallAnsweredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_call_answered_total",
		Help: "Incoming calls answered by the operator",
	})

	HandlerPanicTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_handler_panic_total",
		Help: "Panics recovered at the event handler boundary",
	})
)
