package notify

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"astroconsole-backend/internal/domain"
	"astroconsole-backend/internal/service/roster"
	"astroconsole-backend/pkg/logger"
)

func init() {
	logger.InitDefault()
}

// recordingSink captures effect invocations and can fail or panic per effect
type recordingSink struct {
	notifies  []string
	toasts    []string
	sounds    int
	notifyErr error
	panicOn   string
}

func (s *recordingSink) Notify(title, body string, meta map[string]string) error {
	if s.panicOn == "notify" {
		panic("permission denied")
	}
	s.notifies = append(s.notifies, title+"|"+body+"|"+meta["sender_id"])
	return s.notifyErr
}

func (s *recordingSink) PlayAlertSound() error {
	if s.panicOn == "sound" {
		panic("no audio device")
	}
	s.sounds++
	return nil
}

func (s *recordingSink) ShowToast(text string, duration time.Duration) error {
	s.toasts = append(s.toasts, text)
	return nil
}

type fixedView struct{ open string }

func (v fixedView) OpenConversationID() string { return v.open }

func astroMessage(id, content string) domain.InboundMessage {
	return domain.InboundMessage{
		ID:            id,
		SenderID:      "astro-1",
		SenderType:    domain.RoleAstrologer,
		SenderName:    "Vera",
		RecipientID:   "admin-1",
		RecipientType: domain.RoleAdmin,
		Content:       content,
		Timestamp:     time.Now(),
	}
}

// TestDispatch_AllEffects tests the full fan-out for a qualifying message
func TestDispatch_AllEffects(t *testing.T) {
	agg := roster.NewService()
	sink := &recordingSink{}
	dispatcher := NewDispatcher(agg, sink, fixedView{})

	dispatcher.Dispatch(astroMessage("m1", "Hi"))

	assert.Equal(t, []string{"Vera|Hi|astro-1"}, sink.notifies)
	assert.Equal(t, []string{"Vera: Hi"}, sink.toasts)
	assert.Equal(t, 1, sink.sounds)
	assert.Equal(t, 1, agg.Unread("astro-1"))
}

// TestDispatch_UserSenderNotifies tests that marketplace end users
// qualify for notification the same way astrologers do
func TestDispatch_UserSenderNotifies(t *testing.T) {
	agg := roster.NewService()
	sink := &recordingSink{}
	dispatcher := NewDispatcher(agg, sink, fixedView{})

	dispatcher.Dispatch(domain.InboundMessage{
		ID:            "m1",
		SenderID:      "user-5",
		SenderType:    domain.RoleUser,
		SenderName:    "Priya",
		RecipientID:   "admin-1",
		RecipientType: domain.RoleAdmin,
		Content:       "refund please",
		Timestamp:     time.Now(),
	})

	assert.Equal(t, []string{"Priya|refund please|user-5"}, sink.notifies)
	assert.Equal(t, 1, agg.Unread("user-5"))

	counterpart, ok := agg.Lookup("user-5")
	assert.True(t, ok)
	assert.Equal(t, domain.RoleUser, counterpart.Role)
}

// TestDispatch_OwnEchoNotNotified tests that echoes of operator sends
// update activity but fire nothing
func TestDispatch_OwnEchoNotNotified(t *testing.T) {
	agg := roster.NewService()
	sink := &recordingSink{}
	dispatcher := NewDispatcher(agg, sink, fixedView{})

	dispatcher.Dispatch(domain.InboundMessage{
		ID:            "m1",
		SenderID:      "admin-1",
		SenderType:    domain.RoleAdmin,
		RecipientID:   "astro-1",
		RecipientType: domain.RoleAstrologer,
		Content:       "reply",
	})

	assert.Empty(t, sink.notifies)
	assert.Empty(t, sink.toasts)
	assert.Zero(t, sink.sounds)
	assert.Equal(t, 0, agg.Unread("astro-1"))

	_, tracked := agg.Lookup("astro-1")
	assert.True(t, tracked)
}

// TestDispatch_ToastSuppressedForOpenConversation tests contextual
// suppression while the operator is viewing that conversation
func TestDispatch_ToastSuppressedForOpenConversation(t *testing.T) {
	agg := roster.NewService()
	sink := &recordingSink{}
	dispatcher := NewDispatcher(agg, sink, fixedView{open: "astro-1"})

	dispatcher.Dispatch(astroMessage("m1", "Hi"))

	assert.Len(t, sink.notifies, 1)
	assert.Empty(t, sink.toasts)
	assert.Equal(t, 1, sink.sounds)
}

// TestDispatch_EffectFailureIsolated tests that a denied desktop
// notification still lets sound and toast run
func TestDispatch_EffectFailureIsolated(t *testing.T) {
	agg := roster.NewService()
	sink := &recordingSink{notifyErr: fmt.Errorf("permission denied")}
	dispatcher := NewDispatcher(agg, sink, fixedView{})

	dispatcher.Dispatch(astroMessage("m1", "Hi"))

	assert.Len(t, sink.toasts, 1)
	assert.Equal(t, 1, sink.sounds)
}

// TestDispatch_EffectPanicIsolated tests that a panicking sink does not
// escape the dispatcher
func TestDispatch_EffectPanicIsolated(t *testing.T) {
	agg := roster.NewService()
	sink := &recordingSink{panicOn: "notify"}
	dispatcher := NewDispatcher(agg, sink, fixedView{})

	assert.NotPanics(t, func() {
		dispatcher.Dispatch(astroMessage("m1", "Hi"))
	})
	assert.Len(t, sink.toasts, 1)
	assert.Equal(t, 1, sink.sounds)
}

// TestDispatch_MissingSenderDropped tests that unidentifiable messages
// fire no effects
func TestDispatch_MissingSenderDropped(t *testing.T) {
	agg := roster.NewService()
	sink := &recordingSink{}
	dispatcher := NewDispatcher(agg, sink, fixedView{})

	dispatcher.Dispatch(domain.InboundMessage{
		ID:            "m1",
		SenderType:    domain.RoleAstrologer,
		RecipientType: domain.RoleAdmin,
		Content:       "??",
	})

	assert.Empty(t, sink.notifies)
	assert.Zero(t, sink.sounds)
}

// TestTruncate tests the notification body limit
func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcde…", truncate("abcdefgh", 5))
	// Rune-safe truncation
	assert.Equal(t, "日本語…", truncate("日本語テキスト", 3))
}
