// Package engine is the composition root of the realtime core. It owns
// the gateway subscriptions, routes events through the dedup cache into
// the call state machine and the notification dispatcher, and exposes the
// read model the console UI renders from.
package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"astroconsole-backend/internal/domain"
	"astroconsole-backend/internal/gateway"
	"astroconsole-backend/internal/service/call"
	"astroconsole-backend/internal/service/dedup"
	"astroconsole-backend/internal/service/notify"
	"astroconsole-backend/internal/service/roster"
	"astroconsole-backend/internal/service/rooms"
	"astroconsole-backend/pkg/logger"
	"astroconsole-backend/pkg/metrics"
)

// ReadModel is a consistent snapshot of everything the UI observes
type ReadModel struct {
	TotalUnread  int                 `json:"total_unread"`
	UnreadCounts map[string]int      `json:"unread_counts"`
	Call         *domain.CallSession `json:"call,omitempty"`
}

// Options tune the engine. Zero values fall back to defaults.
type Options struct {
	DedupWindow time.Duration
	ConnectWait time.Duration
}

// Engine wires the realtime components together. All event handlers and
// entry points are safe to call concurrently; each mutation is atomic
// with respect to the others.
type Engine struct {
	gw       gateway.Gateway
	dedup    *dedup.Cache
	calls    *call.Service
	agg      *roster.Service
	rooms    *rooms.Manager
	dispatch *notify.Dispatcher
	presence roster.PresenceChecker

	mu               sync.Mutex
	openConversation string
	unsubs           []gateway.Unsubscribe
	rawHandlers      map[int]func(domain.InboundMessage)
	watchers         map[int]chan struct{}
	nextID           int
	started          bool
}

// New builds an engine around the given gateway, presence source and
// side-effect sink.
func New(gw gateway.Gateway, presence roster.PresenceChecker, sink notify.Sink, opts Options) *Engine {
	e := &Engine{
		gw:          gw,
		dedup:       dedup.New(opts.DedupWindow),
		calls:       call.NewService(gw),
		agg:         roster.NewService(),
		rooms:       rooms.NewManager(gw, opts.ConnectWait),
		presence:    presence,
		rawHandlers: make(map[int]func(domain.InboundMessage)),
		watchers:    make(map[int]chan struct{}),
	}
	e.dispatch = notify.NewDispatcher(e.agg, sink, e)
	return e
}

// Start registers the gateway subscriptions and begins connecting in the
// background. Calling Start twice registers nothing the second time: a
// duplicate registration would process every inbound event twice.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	unsubs := []gateway.Unsubscribe{
		e.gw.OnMessage(func(msg domain.InboundMessage) {
			e.safely("message", func() { e.handleMessage(msg) })
		}),
		e.gw.OnIncomingCall(func(ev domain.IncomingCallEvent) {
			e.safely("incoming_call", func() {
				metrics.EventReceivedTotal.WithLabelValues("incoming_call").Inc()
				e.calls.HandleIncoming(ev)
				e.notifyChange()
			})
		}),
		e.gw.OnCallAccept(func(ev domain.CallAcceptEvent) {
			e.safely("call_accept", func() {
				metrics.EventReceivedTotal.WithLabelValues("call_accept").Inc()
				e.calls.HandleAccept(ev)
				e.notifyChange()
			})
		}),
		e.gw.OnCallEnd(func(ev domain.CallEndEvent) {
			e.safely("call_end", func() {
				metrics.EventReceivedTotal.WithLabelValues("call_end").Inc()
				e.calls.HandleEnd(ev)
				e.notifyChange()
			})
		}),
		e.gw.OnCallToken(func(ev domain.CallTokenEvent) {
			e.safely("call_token", func() {
				metrics.EventReceivedTotal.WithLabelValues("call_token").Inc()
				e.calls.HandleToken(ev)
				e.notifyChange()
			})
		}),
	}

	e.mu.Lock()
	e.unsubs = unsubs
	e.mu.Unlock()

	e.gw.Connect()
}

// Close tears the engine down: subscriptions are released and eviction
// timers cancelled so nothing references destroyed state.
func (e *Engine) Close() {
	e.mu.Lock()
	unsubs := e.unsubs
	e.unsubs = nil
	for id, ch := range e.watchers {
		close(ch)
		delete(e.watchers, id)
	}
	e.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	e.dedup.Close()
}

// LoadRoster seeds the aggregator with the counterpart list and pre-joins
// their rooms in the background without blocking the caller's render.
func (e *Engine) LoadRoster(counterparts []domain.Counterpart) {
	ids := make([]string, 0, len(counterparts))
	for _, c := range counterparts {
		e.agg.Track(c)
		ids = append(ids, c.ID)
	}
	e.notifyChange()

	go e.rooms.PreJoin(ids)
}

// safely is the handler boundary: one malformed event must not stop
// subsequent events from being processed.
func (e *Engine) safely(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event handler panicked",
				zap.String("handler", name), zap.Any("panic", r))
			metrics.HandlerPanicTotal.Inc()
		}
	}()
	fn()
}

func (e *Engine) handleMessage(msg domain.InboundMessage) {
	metrics.EventReceivedTotal.WithLabelValues("message").Inc()

	if !e.dedup.Observe(msg.ID) {
		metrics.MessageDuplicateTotal.Inc()
		return
	}

	// Raw delivery to the active view happens even when the unread model
	// cannot resolve an identity for the message
	e.mu.Lock()
	raws := make([]func(domain.InboundMessage), 0, len(e.rawHandlers))
	for _, h := range e.rawHandlers {
		raws = append(raws, h)
	}
	e.mu.Unlock()
	for _, h := range raws {
		h(msg)
	}

	if msg.CounterpartID() == "" {
		metrics.MessageDroppedTotal.WithLabelValues("missing_identity").Inc()
		logger.Debug("message without resolvable counterpart",
			zap.String("message_id", msg.ID))
		return
	}

	e.dispatch.Dispatch(msg)
	e.notifyChange()
}

// OpenConversationID implements notify.ViewContext
func (e *Engine) OpenConversationID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.openConversation
}

// MarkConversationOpened records the conversation the operator switched
// to and zeroes its unread counters.
func (e *Engine) MarkConversationOpened(counterpartID string) {
	e.mu.Lock()
	e.openConversation = counterpartID
	e.mu.Unlock()

	e.agg.MarkOpened(counterpartID)
	e.notifyChange()
}

// RequestCall starts an outgoing call to a counterpart
func (e *Engine) RequestCall(counterpartID string, kind domain.MediaKind) error {
	counterpart, ok := e.agg.Lookup(counterpartID)
	if !ok {
		counterpart = domain.Counterpart{ID: counterpartID, Role: domain.RoleAstrologer}
	}
	if err := e.calls.Initiate(counterpart, kind); err != nil {
		return err
	}
	e.notifyChange()
	return nil
}

// EndOrCancelCurrentCall ends the active call or cancels the pending or
// ringing attempt, whichever is current.
func (e *Engine) EndOrCancelCurrentCall() {
	e.calls.EndOrCancel()
	e.notifyChange()
}

// RespondToIncomingCall accepts or rejects the displayed incoming call.
// Accepting selects the caller's conversation as the open one.
func (e *Engine) RespondToIncomingCall(accept bool, reason string) error {
	if !accept {
		e.calls.RejectIncoming(reason)
		e.notifyChange()
		return nil
	}

	counterpartID, err := e.calls.AcceptIncoming()
	if err != nil {
		return err
	}
	e.MarkConversationOpened(counterpartID)
	return nil
}

// CurrentCall returns the user-facing call session, if any
func (e *Engine) CurrentCall() *domain.CallSession {
	return e.calls.Current()
}

// Snapshot returns the unread read model plus the current call
func (e *Engine) Snapshot() ReadModel {
	return ReadModel{
		TotalUnread:  e.agg.TotalUnread(),
		UnreadCounts: e.agg.UnreadCounts(),
		Call:         e.calls.Current(),
	}
}

// Roster returns the ranked conversation list
func (e *Engine) Roster(ctx context.Context) []domain.RosterEntry {
	return e.agg.Roster(ctx, e.presence)
}

// Subscribe returns a channel that receives a signal whenever the read
// model changes, plus the matching teardown. Signals are collapsed, never
// blocking.
func (e *Engine) Subscribe() (<-chan struct{}, func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	ch := make(chan struct{}, 1)
	e.watchers[id] = ch
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.watchers, id)
			e.mu.Unlock()
		})
	}
}

// SubscribeRawMessages delivers every deduplicated message, including
// ones the unread model drops, to the active conversation view.
func (e *Engine) SubscribeRawMessages(handler func(domain.InboundMessage)) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.rawHandlers[id] = handler
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.rawHandlers, id)
			e.mu.Unlock()
		})
	}
}

func (e *Engine) notifyChange() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
