package gateway

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"astroconsole-backend/internal/domain"
	"astroconsole-backend/pkg/constants"
	"astroconsole-backend/pkg/logger"
)

// Inbound event names used by the marketplace socket server
const (
	eventMessage      = "message"
	eventIncomingCall = "incoming_call"
	eventCallAccepted = "call_accepted"
	eventCallEnded    = "call_ended"
	eventCallToken    = "call_token"
)

// Outbound action names
const (
	actionInitiateCall = "initiate_call"
	actionAcceptCall   = "accept_call"
	actionRejectCall   = "reject_call"
	actionEndCall      = "end_call"
	actionJoinRoom     = "join_conversation"
)

// frame is the wire envelope for both directions
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// WSGateway is a gorilla/websocket client implementation of Gateway. One
// reader goroutine decodes frames and fans them out to subscribers; writes
// go through a buffered queue drained by a single writer.
type WSGateway struct {
	url        string
	operatorID string

	mu         sync.Mutex
	conn       *websocket.Conn
	connected  bool
	connecting bool
	waiters    []chan error

	send      chan frame
	done      chan struct{}
	closeOnce sync.Once

	subMu   sync.RWMutex
	nextSub int
	subs    map[string]map[int]func(json.RawMessage)
}

// NewWSGateway creates a gateway client for the given socket URL. The
// operator id is sent as the identity query parameter on connect.
func NewWSGateway(url, operatorID string) *WSGateway {
	return &WSGateway{
		url:        url,
		operatorID: operatorID,
		send:       make(chan frame, constants.GatewaySendQueueSize),
		done:       make(chan struct{}),
		subs:       make(map[string]map[int]func(json.RawMessage)),
	}
}

// Connect dials in the background. Safe to call repeatedly; a live or
// in-flight connection makes it a no-op.
func (g *WSGateway) Connect() {
	g.mu.Lock()
	if g.connected || g.connecting {
		g.mu.Unlock()
		return
	}
	g.connecting = true
	g.mu.Unlock()

	go g.dial()
}

// ConnectAndWait dials and blocks until the connection is up or the
// timeout elapses.
func (g *WSGateway) ConnectAndWait(timeout time.Duration) error {
	g.mu.Lock()
	if g.connected {
		g.mu.Unlock()
		return nil
	}
	waiter := make(chan error, 1)
	g.waiters = append(g.waiters, waiter)
	starting := !g.connecting
	g.connecting = true
	g.mu.Unlock()

	if starting {
		go g.dial()
	}

	select {
	case err := <-waiter:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("gateway connect timed out after %s", timeout)
	}
}

func (g *WSGateway) dial() {
	conn, _, err := websocket.DefaultDialer.Dial(g.url+"?user_id="+g.operatorID, nil)

	g.mu.Lock()
	g.connecting = false
	if err != nil {
		waiters := g.waiters
		g.waiters = nil
		g.mu.Unlock()
		logger.Warn("gateway dial failed", zap.String("url", g.url), zap.Error(err))
		for _, w := range waiters {
			w <- err
		}
		return
	}
	g.conn = conn
	g.connected = true
	waiters := g.waiters
	g.waiters = nil
	g.mu.Unlock()

	logger.Info("gateway connected", zap.String("url", g.url))
	for _, w := range waiters {
		w <- nil
	}

	go g.writePump(conn)
	go g.readPump(conn)
}

// readPump decodes inbound frames and dispatches them to subscribers.
// Handlers run on this goroutine, which is what serializes all engine
// event processing.
func (g *WSGateway) readPump(conn *websocket.Conn) {
	defer g.teardown(conn)

	conn.SetReadDeadline(time.Now().Add(constants.GatewayPingInterval * 2))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(constants.GatewayPingInterval * 2))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("gateway connection closed", zap.Error(err))
			}
			return
		}

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			logger.Warn("gateway frame malformed", zap.Error(err))
			continue
		}
		g.dispatch(f)
	}
}

func (g *WSGateway) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(constants.GatewayPingInterval)
	defer ticker.Stop()

	for {
		select {
		case f := <-g.send:
			conn.SetWriteDeadline(time.Now().Add(constants.GatewayWriteTimeout))
			if err := conn.WriteJSON(f); err != nil {
				logger.Warn("gateway write failed", zap.String("event", f.Event), zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(constants.GatewayWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-g.done:
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (g *WSGateway) teardown(conn *websocket.Conn) {
	conn.Close()
	g.mu.Lock()
	if g.conn == conn {
		g.conn = nil
		g.connected = false
	}
	g.mu.Unlock()
}

// Close shuts the connection down. Pending sends are dropped. Safe to
// call more than once.
func (g *WSGateway) Close() {
	g.closeOnce.Do(func() { close(g.done) })
	g.mu.Lock()
	if g.conn != nil {
		g.conn.Close()
	}
	g.mu.Unlock()
}

func (g *WSGateway) dispatch(f frame) {
	g.subMu.RLock()
	handlers := make([]func(json.RawMessage), 0, len(g.subs[f.Event]))
	for _, h := range g.subs[f.Event] {
		handlers = append(handlers, h)
	}
	g.subMu.RUnlock()

	for _, h := range handlers {
		h(f.Data)
	}
}

func (g *WSGateway) subscribe(event string, h func(json.RawMessage)) Unsubscribe {
	g.subMu.Lock()
	id := g.nextSub
	g.nextSub++
	if g.subs[event] == nil {
		g.subs[event] = make(map[int]func(json.RawMessage))
	}
	g.subs[event][id] = h
	g.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.subMu.Lock()
			delete(g.subs[event], id)
			g.subMu.Unlock()
		})
	}
}

// OnMessage subscribes to inbound chat messages
func (g *WSGateway) OnMessage(handler func(domain.InboundMessage)) Unsubscribe {
	return g.subscribe(eventMessage, func(data json.RawMessage) {
		var msg domain.InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("message payload malformed", zap.Error(err))
			return
		}
		handler(msg)
	})
}

// OnIncomingCall subscribes to incoming call announcements
func (g *WSGateway) OnIncomingCall(handler func(domain.IncomingCallEvent)) Unsubscribe {
	return g.subscribe(eventIncomingCall, func(data json.RawMessage) {
		var ev domain.IncomingCallEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logger.Warn("incoming call payload malformed", zap.Error(err))
			return
		}
		handler(ev)
	})
}

// OnCallAccept subscribes to remote call answers
func (g *WSGateway) OnCallAccept(handler func(domain.CallAcceptEvent)) Unsubscribe {
	return g.subscribe(eventCallAccepted, func(data json.RawMessage) {
		var ev domain.CallAcceptEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logger.Warn("call accept payload malformed", zap.Error(err))
			return
		}
		handler(ev)
	})
}

// OnCallEnd subscribes to remote end/reject events
func (g *WSGateway) OnCallEnd(handler func(domain.CallEndEvent)) Unsubscribe {
	return g.subscribe(eventCallEnded, func(data json.RawMessage) {
		var ev domain.CallEndEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logger.Warn("call end payload malformed", zap.Error(err))
			return
		}
		handler(ev)
	})
}

// OnCallToken subscribes to token issuance for locally initiated calls
func (g *WSGateway) OnCallToken(handler func(domain.CallTokenEvent)) Unsubscribe {
	return g.subscribe(eventCallToken, func(data json.RawMessage) {
		var ev domain.CallTokenEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logger.Warn("call token payload malformed", zap.Error(err))
			return
		}
		handler(ev)
	})
}

func (g *WSGateway) enqueue(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", event, err)
	}

	g.mu.Lock()
	connected := g.connected
	g.mu.Unlock()
	if !connected {
		return fmt.Errorf("gateway not connected")
	}

	select {
	case g.send <- frame{Event: event, Data: data}:
		return nil
	default:
		return fmt.Errorf("gateway send queue full")
	}
}

// InitiateCall requests an outgoing call; the token event carries the reply
func (g *WSGateway) InitiateCall(recipientID string, recipientRole domain.Role, callType domain.MediaKind) error {
	return g.enqueue(actionInitiateCall, map[string]interface{}{
		"recipient_id":   recipientID,
		"recipient_type": recipientRole,
		"call_type":      callType,
	})
}

// AcceptCall acknowledges an incoming call
func (g *WSGateway) AcceptCall(callID, callerID string) error {
	return g.enqueue(actionAcceptCall, map[string]interface{}{
		"call_id":   callID,
		"caller_id": callerID,
	})
}

// RejectCall declines an incoming call with a reason code
func (g *WSGateway) RejectCall(callID, reason string) error {
	return g.enqueue(actionRejectCall, map[string]interface{}{
		"call_id": callID,
		"reason":  reason,
	})
}

// EndCall ends or cancels a call the operator is part of
func (g *WSGateway) EndCall(callID string, params domain.EndCallParams) error {
	return g.enqueue(actionEndCall, map[string]interface{}{
		"call_id":    callID,
		"contact_id": params.ContactID,
		"duration":   params.Duration,
		"end_reason": params.EndReason,
	})
}

// JoinConversation requests membership of a conversation room
func (g *WSGateway) JoinConversation(roomKey string) error {
	return g.enqueue(actionJoinRoom, map[string]interface{}{
		"room": roomKey,
	})
}
