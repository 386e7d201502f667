package roster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"astroconsole-backend/internal/domain"
	"astroconsole-backend/pkg/logger"
)

func init() {
	logger.InitDefault()
}

type stubPresence struct {
	online map[string]bool
}

func (p *stubPresence) IsOnline(_ context.Context, id string) bool {
	return p.online[id]
}

func inbound(id, sender string, senderType domain.Role, content string) domain.InboundMessage {
	return domain.InboundMessage{
		ID:            id,
		SenderID:      sender,
		SenderType:    senderType,
		RecipientID:   "admin-1",
		RecipientType: domain.RoleAdmin,
		Content:       content,
		Timestamp:     time.Now(),
	}
}

// TestApplyMessage_CounterpartIncrements tests the basic unread path
func TestApplyMessage_CounterpartIncrements(t *testing.T) {
	service := NewService()
	service.Track(domain.Counterpart{ID: "astro-1", Name: "Vera", Role: domain.RoleAstrologer})

	service.ApplyMessage(inbound("m1", "astro-1", domain.RoleAstrologer, "hello"), ProducerStream)
	service.ApplyMessage(inbound("m2", "astro-1", domain.RoleAstrologer, "there"), ProducerStream)

	assert.Equal(t, 2, service.Unread("astro-1"))
	assert.Equal(t, 2, service.TotalUnread())
}

// TestApplyMessage_OwnNeverIncrements tests unread monotonicity under
// suppression: operator-authored messages update the preview only
func TestApplyMessage_OwnNeverIncrements(t *testing.T) {
	service := NewService()
	service.Track(domain.Counterpart{ID: "astro-1", Name: "Vera"})

	msg := domain.InboundMessage{
		ID:            "m1",
		SenderID:      "admin-1",
		SenderType:    domain.RoleAdmin,
		RecipientID:   "astro-1",
		RecipientType: domain.RoleAstrologer,
		Content:       "our reply",
		Timestamp:     time.Now(),
	}
	service.ApplyMessage(msg, ProducerStream)
	service.ApplyMessage(msg, ProducerView)

	assert.Equal(t, 0, service.Unread("astro-1"))

	entries := service.Roster(context.Background(), nil)
	assert.Len(t, entries, 1)
	assert.Equal(t, "our reply", entries[0].LastPreview.Text)
	assert.True(t, entries[0].LastPreview.IsOwn)
	assert.False(t, entries[0].LastActivityAt.IsZero())
}

// TestApplyMessage_MissingCounterpart tests that unidentifiable messages
// are dropped from activity tracking
func TestApplyMessage_MissingCounterpart(t *testing.T) {
	service := NewService()

	service.ApplyMessage(domain.InboundMessage{ID: "m1", Content: "??"}, ProducerStream)

	assert.Equal(t, 0, service.TotalUnread())
	assert.Empty(t, service.Roster(context.Background(), nil))
}

// TestApplyMessage_UnknownCounterpartTracked tests that a message from a
// counterpart not yet on the roster starts from defaults
func TestApplyMessage_UnknownCounterpartTracked(t *testing.T) {
	service := NewService()

	service.ApplyMessage(inbound("m1", "astro-9", domain.RoleAstrologer, "hi"), ProducerStream)

	assert.Equal(t, 1, service.Unread("astro-9"))
	counterpart, ok := service.Lookup("astro-9")
	assert.True(t, ok)
	assert.Equal(t, domain.RoleAstrologer, counterpart.Role)
}

// TestApplyMessage_OwnEchoDoesNotStealIdentity tests that an echo of an
// operator send to an untracked counterpart seeds default identity, not
// the operator's own name and role
func TestApplyMessage_OwnEchoDoesNotStealIdentity(t *testing.T) {
	service := NewService()

	service.ApplyMessage(domain.InboundMessage{
		ID:            "m1",
		SenderID:      "admin-1",
		SenderType:    domain.RoleAdmin,
		SenderName:    "Operator Olga",
		RecipientID:   "astro-9",
		RecipientType: domain.RoleAstrologer,
		Content:       "hello",
		Timestamp:     time.Now(),
	}, ProducerStream)

	counterpart, ok := service.Lookup("astro-9")
	assert.True(t, ok)
	assert.Empty(t, counterpart.Name)
	assert.Empty(t, counterpart.Role)

	// The counterpart's first reply fills the identity in
	service.ApplyMessage(domain.InboundMessage{
		ID:            "m2",
		SenderID:      "astro-9",
		SenderType:    domain.RoleAstrologer,
		SenderName:    "Vera",
		RecipientID:   "admin-1",
		RecipientType: domain.RoleAdmin,
		Content:       "hi",
		Timestamp:     time.Now(),
	}, ProducerStream)

	counterpart, _ = service.Lookup("astro-9")
	assert.Equal(t, "Vera", counterpart.Name)
}

// TestMarkOpened_ZeroesBothProducers tests the atomic two-producer reset
func TestMarkOpened_ZeroesBothProducers(t *testing.T) {
	service := NewService()
	service.Track(domain.Counterpart{ID: "astro-1"})

	service.ApplyMessage(inbound("m1", "astro-1", domain.RoleAstrologer, "a"), ProducerStream)
	service.ApplyMessage(inbound("m2", "astro-1", domain.RoleAstrologer, "b"), ProducerView)
	service.ApplyMessage(inbound("m3", "astro-1", domain.RoleAstrologer, "c"), ProducerView)

	// Visible count is the max-merge of the two producers
	assert.Equal(t, 2, service.Unread("astro-1"))

	service.MarkOpened("astro-1")
	assert.Equal(t, 0, service.Unread("astro-1"))
	assert.Equal(t, 0, service.TotalUnread())
}

// TestMarkOpened_UntrackedCounterpart tests that opening an unknown
// conversation seeds default state instead of panicking
func TestMarkOpened_UntrackedCounterpart(t *testing.T) {
	service := NewService()

	service.MarkOpened("astro-7")
	assert.Equal(t, 0, service.Unread("astro-7"))
}

// TestRoster_Ranking tests the total order: unread, online, recency, name
func TestRoster_Ranking(t *testing.T) {
	service := NewService()
	now := time.Now()

	service.Track(domain.Counterpart{ID: "a", Name: "Ana"})
	service.Track(domain.Counterpart{ID: "b", Name: "Bo"})
	service.Track(domain.Counterpart{ID: "c", Name: "Cleo"})
	service.Track(domain.Counterpart{ID: "d", Name: "Dov"})

	// c has unread, d is online, a is more recent than b
	service.ApplyMessage(domain.InboundMessage{
		ID: "m1", SenderID: "c", SenderType: domain.RoleAstrologer,
		RecipientType: domain.RoleAdmin, Content: "hi", Timestamp: now.Add(-time.Hour),
	}, ProducerStream)
	service.ApplyMessage(domain.InboundMessage{
		ID: "m2", SenderID: "admin-1", SenderType: domain.RoleAdmin,
		RecipientID: "a", Content: "x", Timestamp: now.Add(-time.Minute),
	}, ProducerStream)
	service.ApplyMessage(domain.InboundMessage{
		ID: "m3", SenderID: "admin-1", SenderType: domain.RoleAdmin,
		RecipientID: "b", Content: "y", Timestamp: now.Add(-30 * time.Minute),
	}, ProducerStream)

	presence := &stubPresence{online: map[string]bool{"d": true}}

	order := func() []string {
		ids := []string{}
		for _, e := range service.Roster(context.Background(), presence) {
			ids = append(ids, e.CounterpartID)
		}
		return ids
	}

	expected := []string{"c", "d", "a", "b"}
	assert.Equal(t, expected, order())

	// Determinism: repeated computation yields the identical order
	for i := 0; i < 5; i++ {
		assert.Equal(t, expected, order())
	}
}

// TestRoster_UnreadPrecedesRead tests the unread-first law for any mix
func TestRoster_UnreadPrecedesRead(t *testing.T) {
	service := NewService()
	for _, id := range []string{"p", "q", "r", "s"} {
		service.Track(domain.Counterpart{ID: id, Name: id})
	}
	service.ApplyMessage(inbound("m1", "q", domain.RoleAstrologer, "x"), ProducerStream)
	service.ApplyMessage(inbound("m2", "s", domain.RoleAstrologer, "y"), ProducerStream)

	entries := service.Roster(context.Background(), nil)
	seenRead := false
	for _, e := range entries {
		if e.UnreadCount == 0 {
			seenRead = true
		} else {
			assert.False(t, seenRead, "unread entry ranked after a read one")
		}
	}
}
