package domain

import "time"

// InboundMessage is a chat message delivered by the transport gateway.
// The same message can arrive via the conversation room and via the
// operator's personal preview room; the ID is the dedup key.
type InboundMessage struct {
	ID            string    `json:"id"`
	SenderID      string    `json:"sender_id"`
	SenderType    Role      `json:"sender_type"`
	RecipientID   string    `json:"recipient_id"`
	RecipientType Role      `json:"recipient_type"`
	Content       string    `json:"content"`
	SenderName    string    `json:"sender_name,omitempty"`
	SenderAvatar  string    `json:"sender_avatar,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// CounterpartID resolves the conversation this message belongs to from the
// operator's point of view. Empty when no identity is resolvable.
func (m *InboundMessage) CounterpartID() string {
	if m.SenderType == RoleAdmin {
		return m.RecipientID
	}
	return m.SenderID
}

// IsOwn reports whether the operator authored the message
func (m *InboundMessage) IsOwn() bool {
	return m.SenderType == RoleAdmin
}

// IncomingCallEvent announces a call attempt from a counterpart
type IncomingCallEvent struct {
	CallID       string            `json:"call_id"`
	CallerID     string            `json:"caller_id"`
	CallerRole   Role              `json:"caller_role"`
	CallerName   string            `json:"caller_name,omitempty"`
	CallerAvatar string            `json:"caller_avatar,omitempty"`
	CallType     MediaKind         `json:"call_type"`
	Credential   ChannelCredential `json:"credential"`
}

// CallTokenEvent confirms a locally initiated call and carries the media
// credential plus the call id assigned by the remote side.
type CallTokenEvent struct {
	CallID  string `json:"call_id"`
	Token   string `json:"token"`
	Channel string `json:"channel"`
}

// CallAcceptEvent reports that the remote party answered
type CallAcceptEvent struct {
	CallID     string `json:"call_id"`
	AccepterID string `json:"accepter_id,omitempty"`
}

// CallEndEvent reports that the remote party ended or rejected a call
type CallEndEvent struct {
	CallID string `json:"call_id"`
	Reason string `json:"reason,omitempty"`
}

// EndCallParams accompanies a locally initiated end/cancel request
type EndCallParams struct {
	ContactID string `json:"contact_id"`
	Duration  int    `json:"duration"`
	EndReason string `json:"end_reason"`
}
