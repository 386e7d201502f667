// Package gateway defines the transport gateway consumed by the realtime
// engine and provides the production WebSocket adapter for it. The gateway
// is the marketplace's socket server; this side only subscribes and sends.
package gateway

import (
	"time"

	"astroconsole-backend/internal/domain"
)

// Unsubscribe releases a subscription. Calling it more than once is safe.
type Unsubscribe func()

// Gateway is the duplex event channel the engine runs on. All subscription
// callbacks are delivered sequentially from a single reader, so handlers
// never race each other.
type Gateway interface {
	// Connect establishes the channel in the background. Idempotent.
	Connect()

	// ConnectAndWait establishes the channel and blocks until it is up or
	// the timeout elapses. Idempotent.
	ConnectAndWait(timeout time.Duration) error

	OnMessage(handler func(domain.InboundMessage)) Unsubscribe
	OnIncomingCall(handler func(domain.IncomingCallEvent)) Unsubscribe
	OnCallAccept(handler func(domain.CallAcceptEvent)) Unsubscribe
	OnCallEnd(handler func(domain.CallEndEvent)) Unsubscribe
	OnCallToken(handler func(domain.CallTokenEvent)) Unsubscribe

	InitiateCall(recipientID string, recipientRole domain.Role, callType domain.MediaKind) error
	AcceptCall(callID, callerID string) error
	RejectCall(callID, reason string) error
	EndCall(callID string, params domain.EndCallParams) error
	JoinConversation(roomKey string) error
}
