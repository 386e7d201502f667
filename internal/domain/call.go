package domain

import "time"

// CallDirection indicates who started the call attempt
type CallDirection string

const (
	DirectionOutgoing CallDirection = "outgoing"
	DirectionIncoming CallDirection = "incoming"
)

// MediaKind is the requested media for a call
type MediaKind string

const (
	MediaVoice MediaKind = "voice"
	MediaVideo MediaKind = "video"
)

// CallPhase is the lifecycle state of a live call session. A request
// still waiting for its token has no session yet, and a terminated
// session is discarded rather than kept in a final phase.
type CallPhase string

const (
	PhaseRinging  CallPhase = "ringing"
	PhaseIncoming CallPhase = "incoming_ringing"
	PhaseActive   CallPhase = "active"
)

// End reasons sent with an end/reject request
const (
	EndReasonCompleted = "completed"
	EndReasonCancelled = "cancelled"
	EndReasonDeclined  = "declined"
)

// ChannelCredential carries the opaque token and channel name needed to
// join the media session. The engine never interprets the token.
type ChannelCredential struct {
	Token   string `json:"token"`
	Channel string `json:"channel"`
}

// CallSession represents one attempt to establish a voice/video call,
// independent of the media transport itself.
type CallSession struct {
	CallID            string             `json:"call_id"`
	Direction         CallDirection      `json:"direction"`
	CounterpartID     string             `json:"counterpart_id"`
	CounterpartRole   Role               `json:"counterpart_role"`
	CounterpartName   string             `json:"counterpart_name"`
	CounterpartAvatar string             `json:"counterpart_avatar,omitempty"`
	MediaKind         MediaKind          `json:"media_kind"`
	Credential        *ChannelCredential `json:"credential,omitempty"`
	Phase             CallPhase          `json:"phase"`
	StartedAt         time.Time          `json:"started_at"`
}

// ElapsedSeconds returns whole seconds since StartedAt. A zero StartedAt
// or a clock running backwards both yield 0.
func (s *CallSession) ElapsedSeconds(now time.Time) int {
	if s == nil || s.StartedAt.IsZero() {
		return 0
	}
	secs := int(now.Sub(s.StartedAt).Seconds())
	if secs < 0 {
		return 0
	}
	return secs
}
