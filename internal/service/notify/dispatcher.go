// Package notify fans a qualifying inbound message out to the console's
// side effects: desktop notification, transient toast, and alert sound.
// Effects are best-effort and independent; one failing or panicking sink
// never blocks the others.
package notify

import (
	"time"

	"go.uber.org/zap"

	"astroconsole-backend/internal/domain"
	"astroconsole-backend/internal/service/roster"
	"astroconsole-backend/pkg/constants"
	"astroconsole-backend/pkg/logger"
	"astroconsole-backend/pkg/metrics"
)

// Sink is the pluggable side-effect surface the hosting UI implements
type Sink interface {
	Notify(title, body string, meta map[string]string) error
	PlayAlertSound() error
	ShowToast(text string, duration time.Duration) error
}

// ViewContext reports which conversation the operator currently has open,
// or empty when none. Toasts for that conversation are suppressed.
type ViewContext interface {
	OpenConversationID() string
}

// Dispatcher routes deduplicated inbound messages into the aggregator and
// fires the side effects for counterpart-to-operator messages.
type Dispatcher struct {
	agg  *roster.Service
	sink Sink
	view ViewContext
}

// NewDispatcher wires the dispatcher to its collaborators
func NewDispatcher(agg *roster.Service, sink Sink, view ViewContext) *Dispatcher {
	return &Dispatcher{agg: agg, sink: sink, view: view}
}

// Dispatch folds the message into the unread model and, for messages sent
// by a counterpart to the operator, triggers notification, toast and
// sound. Echoes of the operator's own sends update activity only.
func (d *Dispatcher) Dispatch(msg domain.InboundMessage) {
	d.agg.ApplyMessage(msg, roster.ProducerStream)

	if !d.qualifies(msg) {
		return
	}

	title := msg.SenderName
	if title == "" {
		if counterpart, ok := d.agg.Lookup(msg.SenderID); ok && counterpart.Name != "" {
			title = counterpart.Name
		} else {
			title = "New message"
		}
	}
	body := truncate(msg.Content, constants.NotificationBodyLimit)

	d.runEffect("desktop", func() error {
		return d.sink.Notify(title, body, map[string]string{"sender_id": msg.SenderID})
	})

	if d.view == nil || d.view.OpenConversationID() != msg.SenderID {
		d.runEffect("toast", func() error {
			return d.sink.ShowToast(title+": "+body, constants.ToastDuration)
		})
	} else {
		metrics.NotificationEffectTotal.WithLabelValues("toast", "suppressed").Inc()
	}

	d.runEffect("sound", func() error {
		return d.sink.PlayAlertSound()
	})
}

// qualifies reports whether the message direction warrants side effects:
// sent by a counterpart, addressed to the operator.
func (d *Dispatcher) qualifies(msg domain.InboundMessage) bool {
	if msg.IsOwn() || msg.RecipientType != domain.RoleAdmin {
		return false
	}
	return msg.SenderID != ""
}

// runEffect isolates one side effect. Permission denials and sink panics
// are logged and counted, nothing more.
func (d *Dispatcher) runEffect(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("notification effect panicked",
				zap.String("effect", name), zap.Any("panic", r))
			metrics.NotificationEffectTotal.WithLabelValues(name, "panic").Inc()
		}
	}()

	if err := fn(); err != nil {
		logger.Warn("notification effect failed",
			zap.String("effect", name), zap.Error(err))
		metrics.NotificationEffectTotal.WithLabelValues(name, "error").Inc()
		return
	}
	metrics.NotificationEffectTotal.WithLabelValues(name, "ok").Inc()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
