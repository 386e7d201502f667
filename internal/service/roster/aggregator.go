// Package roster merges unread counters and activity timestamps from the
// two producers that observe inbound messages (the global notification
// stream and the currently open conversation view) and derives the ranked
// conversation list for the console.
package roster

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"astroconsole-backend/internal/domain"
	"astroconsole-backend/pkg/logger"
)

// Producer identifies which observer reported a message
type Producer int

const (
	// ProducerStream is the cross-cutting notification channel that sees
	// every message addressed to the operator
	ProducerStream Producer = iota
	// ProducerView is the open conversation view's own tracking
	ProducerView
)

// PresenceChecker reports whether a counterpart is currently online.
// Implementations must treat lookup failure as offline.
type PresenceChecker interface {
	IsOnline(ctx context.Context, counterpartID string) bool
}

// conversation is the per-counterpart state. It is never destroyed while
// the session is live, only reset.
type conversation struct {
	counterpart domain.Counterpart

	// One counter per producer; the visible count is their max and
	// MarkOpened zeroes both under the same lock acquisition.
	streamUnread int
	viewUnread   int

	lastActivityAt time.Time
	preview        domain.MessagePreview
}

func (c *conversation) unread() int {
	if c.streamUnread > c.viewUnread {
		return c.streamUnread
	}
	return c.viewUnread
}

// Service is the unread & activity aggregator
type Service struct {
	mu    sync.Mutex
	convs map[string]*conversation

	now func() time.Time
}

// NewService creates an empty aggregator
func NewService() *Service {
	return &Service{
		convs: make(map[string]*conversation),
		now:   time.Now,
	}
}

// Track seeds (or refreshes identity for) a roster counterpart with
// default activity state.
func (s *Service) Track(counterpart domain.Counterpart) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.convs[counterpart.ID]; ok {
		conv.counterpart = counterpart
		return
	}
	s.convs[counterpart.ID] = &conversation{counterpart: counterpart}
}

// Lookup returns the tracked identity of a counterpart
func (s *Service) Lookup(counterpartID string) (domain.Counterpart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[counterpartID]
	if !ok {
		return domain.Counterpart{}, false
	}
	return conv.counterpart, true
}

// ApplyMessage folds one deduplicated message into the model. Operator
// authored messages refresh the preview and activity but never increment
// unread; messages without a resolvable counterpart are dropped.
func (s *Service) ApplyMessage(msg domain.InboundMessage, producer Producer) {
	counterpartID := msg.CounterpartID()
	if counterpartID == "" {
		logger.Debug("message without counterpart dropped from activity",
			zap.String("message_id", msg.ID))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[counterpartID]
	if !ok {
		// Counterpart not yet on the loaded roster; start from defaults.
		// Sender identity describes the counterpart only on their own
		// messages, never on echoes of the operator's sends.
		seed := domain.Counterpart{ID: counterpartID}
		if !msg.IsOwn() {
			seed.Name = msg.SenderName
			seed.Role = msg.SenderType
		}
		conv = &conversation{counterpart: seed}
		s.convs[counterpartID] = conv
	}
	if conv.counterpart.Name == "" && msg.SenderName != "" && !msg.IsOwn() {
		conv.counterpart.Name = msg.SenderName
	}

	if !msg.IsOwn() {
		switch producer {
		case ProducerView:
			conv.viewUnread++
		default:
			conv.streamUnread++
		}
	}

	at := msg.Timestamp
	if at.IsZero() {
		at = s.now()
	}
	if at.After(conv.lastActivityAt) {
		conv.lastActivityAt = at
	}
	conv.preview = domain.MessagePreview{Text: msg.Content, IsOwn: msg.IsOwn()}
}

// MarkOpened zeroes both producers' counters for a counterpart and
// refreshes its activity timestamp. Atomic with respect to ApplyMessage.
func (s *Service) MarkOpened(counterpartID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[counterpartID]
	if !ok {
		conv = &conversation{counterpart: domain.Counterpart{ID: counterpartID}}
		s.convs[counterpartID] = conv
	}
	conv.streamUnread = 0
	conv.viewUnread = 0
	conv.lastActivityAt = s.now()
}

// Unread returns the visible unread count for one counterpart
func (s *Service) Unread(counterpartID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.convs[counterpartID]; ok {
		return conv.unread()
	}
	return 0
}

// UnreadCounts returns every non-zero unread count keyed by counterpart
func (s *Service) UnreadCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	for id, conv := range s.convs {
		if n := conv.unread(); n > 0 {
			counts[id] = n
		}
	}
	return counts
}

// TotalUnread returns the sum of visible unread counts
func (s *Service) TotalUnread() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, conv := range s.convs {
		total += conv.unread()
	}
	return total
}

// Roster returns the ranked conversation list: unread first, then online,
// then most recent activity, then name. The order is deterministic; ids
// break any remaining ties.
func (s *Service) Roster(ctx context.Context, presence PresenceChecker) []domain.RosterEntry {
	s.mu.Lock()
	entries := make([]domain.RosterEntry, 0, len(s.convs))
	for _, conv := range s.convs {
		entries = append(entries, domain.RosterEntry{
			CounterpartID:  conv.counterpart.ID,
			Name:           conv.counterpart.Name,
			Avatar:         conv.counterpart.Avatar,
			UnreadCount:    conv.unread(),
			LastActivityAt: conv.lastActivityAt,
			LastPreview:    conv.preview,
		})
	}
	s.mu.Unlock()

	// Presence lookups happen outside the lock; they may block on Redis
	if presence != nil {
		for i := range entries {
			entries[i].Online = presence.IsOnline(ctx, entries[i].CounterpartID)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if (a.UnreadCount > 0) != (b.UnreadCount > 0) {
			return a.UnreadCount > 0
		}
		if a.Online != b.Online {
			return a.Online
		}
		if !a.LastActivityAt.Equal(b.LastActivityAt) {
			return a.LastActivityAt.After(b.LastActivityAt)
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.CounterpartID < b.CounterpartID
	})
	return entries
}
