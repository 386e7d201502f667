// Package call owns the lifecycle state machine for call attempts: token
// pending and ringing for outgoing calls, ringing for incoming ones, one
// active call, and terminal cleanup. Signaling round-trips go through the
// transport gateway; local state is cleared immediately without waiting
// for acknowledgments.
package call

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"astroconsole-backend/internal/domain"
	"astroconsole-backend/internal/gateway"
	"astroconsole-backend/pkg/logger"
	"astroconsole-backend/pkg/metrics"
)

const unknownCallerName = "Unknown caller"

// pendingRequest tracks a locally initiated call between the initiate
// request and the token event that assigns it a call id.
type pendingRequest struct {
	CounterpartID   string
	CounterpartRole domain.Role
	CounterpartName string
	MediaKind       domain.MediaKind
	RequestedAt     time.Time
}

// Service is the call session state machine. At most one of pending,
// outgoing, incoming and active is user-facing at a time; terminated
// sessions are discarded, never reused.
type Service struct {
	mu sync.Mutex
	gw gateway.Gateway

	pending  *pendingRequest
	outgoing *domain.CallSession
	incoming *domain.CallSession
	active   *domain.CallSession

	now func() time.Time
}

// NewService creates a call service bound to the given gateway
func NewService(gw gateway.Gateway) *Service {
	return &Service{
		gw:  gw,
		now: time.Now,
	}
}

// Initiate requests an outgoing call. The session becomes user-visible
// only once the token event arrives.
func (s *Service) Initiate(counterpart domain.Counterpart, kind domain.MediaKind) error {
	s.mu.Lock()
	if s.pending != nil || s.outgoing != nil || s.active != nil {
		s.mu.Unlock()
		return fmt.Errorf("a call is already underway")
	}
	s.pending = &pendingRequest{
		CounterpartID:   counterpart.ID,
		CounterpartRole: counterpart.Role,
		CounterpartName: counterpart.Name,
		MediaKind:       kind,
		RequestedAt:     s.now(),
	}
	s.mu.Unlock()

	if err := s.gw.InitiateCall(counterpart.ID, counterpart.Role, kind); err != nil {
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()
		return fmt.Errorf("failed to initiate call: %w", err)
	}
	return nil
}

// HandleToken moves a pending outgoing call to ringing. A token with no
// matching pending request is stale and ignored.
func (s *Service) HandleToken(ev domain.CallTokenEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		logger.Debug("stale call token ignored", zap.String("call_id", ev.CallID))
		return
	}

	s.outgoing = &domain.CallSession{
		CallID:          ev.CallID,
		Direction:       domain.DirectionOutgoing,
		CounterpartID:   s.pending.CounterpartID,
		CounterpartRole: s.pending.CounterpartRole,
		CounterpartName: s.pending.CounterpartName,
		MediaKind:       s.pending.MediaKind,
		Credential:      &domain.ChannelCredential{Token: ev.Token, Channel: ev.Channel},
		Phase:           domain.PhaseRinging,
		StartedAt:       s.now(),
	}
	s.pending = nil
}

// HandleAccept moves the ringing outgoing session to active when the call
// id matches; anything else belongs to a superseded attempt.
func (s *Service) HandleAccept(ev domain.CallAcceptEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outgoing == nil || s.outgoing.CallID != ev.CallID {
		logger.Debug("call accept for unknown session ignored", zap.String("call_id", ev.CallID))
		return
	}

	s.active = s.outgoing
	s.outgoing = nil
	s.active.Phase = domain.PhaseActive
	// Duration accounting starts when media starts, not when ringing did
	s.active.StartedAt = s.now()
}

// HandleEnd terminates whichever session matches the call id. Unknown or
// already-terminated ids are a silent no-op; sessions for other ids stay
// untouched.
func (s *Service) HandleEnd(ev domain.CallEndEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.active != nil && s.active.CallID == ev.CallID:
		s.active = nil
		metrics.CallTerminatedTotal.WithLabelValues("remote_end").Inc()
	case s.outgoing != nil && s.outgoing.CallID == ev.CallID:
		s.outgoing = nil
		metrics.CallTerminatedTotal.WithLabelValues("remote_reject").Inc()
	case s.incoming != nil && s.incoming.CallID == ev.CallID:
		s.incoming = nil
		metrics.CallTerminatedTotal.WithLabelValues("caller_hangup").Inc()
	default:
		logger.Debug("call end for unknown session ignored",
			zap.String("call_id", ev.CallID),
			zap.String("reason", ev.Reason))
	}
}

// HandleIncoming surfaces a caller's attempt. A second event for the same
// call id is a duplicate; a different call while one prompt is already
// shown is ignored rather than replacing it.
func (s *Service) HandleIncoming(ev domain.IncomingCallEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.incoming != nil {
		logger.Debug("incoming call while prompt already shown ignored",
			zap.String("call_id", ev.CallID))
		return
	}
	if s.active != nil && s.active.CallID == ev.CallID {
		return
	}

	name := ev.CallerName
	if name == "" {
		name = unknownCallerName
	}
	cred := ev.Credential
	s.incoming = &domain.CallSession{
		CallID:            ev.CallID,
		Direction:         domain.DirectionIncoming,
		CounterpartID:     ev.CallerID,
		CounterpartRole:   ev.CallerRole,
		CounterpartName:   name,
		CounterpartAvatar: ev.CallerAvatar,
		MediaKind:         ev.CallType,
		Credential:        &cred,
		Phase:             domain.PhaseIncoming,
		StartedAt:         s.now(),
	}
}

// AcceptIncoming answers the currently displayed incoming call and returns
// the caller's id so the engine can select that conversation. A ringing
// outgoing attempt is cleared locally without a cancel round-trip: the
// user action is "switch to the incoming call".
func (s *Service) AcceptIncoming() (string, error) {
	s.mu.Lock()
	if s.incoming == nil {
		s.mu.Unlock()
		return "", fmt.Errorf("no incoming call to accept")
	}

	session := s.incoming
	s.incoming = nil
	s.pending = nil
	if s.outgoing != nil {
		metrics.CallTerminatedTotal.WithLabelValues("superseded").Inc()
		s.outgoing = nil
	}
	session.Phase = domain.PhaseActive
	session.StartedAt = s.now()
	s.active = session
	callID, callerID := session.CallID, session.CounterpartID
	s.mu.Unlock()

	if err := s.gw.AcceptCall(callID, callerID); err != nil {
		logger.Warn("accept acknowledgment failed",
			zap.String("call_id", callID), zap.Error(err))
	}
	metrics.CallAnsweredTotal.Inc()
	return callerID, nil
}

// RejectIncoming declines the currently displayed incoming call. An empty
// reason defaults to "declined". No-op when no prompt is shown.
func (s *Service) RejectIncoming(reason string) {
	if reason == "" {
		reason = domain.EndReasonDeclined
	}

	s.mu.Lock()
	if s.incoming == nil {
		s.mu.Unlock()
		return
	}
	callID := s.incoming.CallID
	s.incoming = nil
	s.mu.Unlock()

	if err := s.gw.RejectCall(callID, reason); err != nil {
		logger.Warn("reject acknowledgment failed",
			zap.String("call_id", callID), zap.Error(err))
	}
	metrics.CallTerminatedTotal.WithLabelValues("local_reject").Inc()
}

// EndOrCancel ends the active call, cancels the ringing outgoing one, or
// abandons a pending token request, whichever is current. Local state is
// cleared immediately; the end request is best effort.
func (s *Service) EndOrCancel() {
	s.mu.Lock()

	var (
		session *domain.CallSession
		reason  string
	)
	switch {
	case s.active != nil:
		session, reason = s.active, domain.EndReasonCompleted
		s.active = nil
	case s.outgoing != nil:
		session, reason = s.outgoing, domain.EndReasonCancelled
		s.outgoing = nil
	case s.pending != nil:
		// No call id was assigned yet, so there is nothing to signal
		s.pending = nil
		s.mu.Unlock()
		metrics.CallTerminatedTotal.WithLabelValues("abandoned").Inc()
		return
	default:
		s.mu.Unlock()
		return
	}
	duration := session.ElapsedSeconds(s.now())
	s.mu.Unlock()

	if err := s.gw.EndCall(session.CallID, domain.EndCallParams{
		ContactID: session.CounterpartID,
		Duration:  duration,
		EndReason: reason,
	}); err != nil {
		logger.Warn("end request failed",
			zap.String("call_id", session.CallID), zap.Error(err))
	}
	metrics.CallTerminatedTotal.WithLabelValues("local_" + reason).Inc()
}

// Current returns a copy of the user-facing session, or nil outside any
// visible call. An active call wins over an incoming prompt, which wins
// over a ringing outgoing attempt; a pending token request is not yet
// user-visible.
func (s *Service) Current() *domain.CallSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	var src *domain.CallSession
	switch {
	case s.active != nil:
		src = s.active
	case s.incoming != nil:
		src = s.incoming
	case s.outgoing != nil:
		src = s.outgoing
	default:
		return nil
	}
	cp := *src
	return &cp
}
