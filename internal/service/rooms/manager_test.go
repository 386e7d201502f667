package rooms

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"astroconsole-backend/internal/domain"
	"astroconsole-backend/internal/gateway"
	"astroconsole-backend/pkg/logger"
)

func init() {
	logger.InitDefault()
}

// fakeGateway counts joins and can simulate connect/join failures
type fakeGateway struct {
	mu          sync.Mutex
	connectErr  error
	failRooms   map[string]bool
	joins       map[string]int
	connectWait time.Duration
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{joins: map[string]int{}, failRooms: map[string]bool{}}
}

func (f *fakeGateway) Connect() {}

func (f *fakeGateway) ConnectAndWait(timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectWait = timeout
	return f.connectErr
}

func (f *fakeGateway) OnMessage(func(domain.InboundMessage)) gateway.Unsubscribe {
	return func() {}
}
func (f *fakeGateway) OnIncomingCall(func(domain.IncomingCallEvent)) gateway.Unsubscribe {
	return func() {}
}
func (f *fakeGateway) OnCallAccept(func(domain.CallAcceptEvent)) gateway.Unsubscribe {
	return func() {}
}
func (f *fakeGateway) OnCallEnd(func(domain.CallEndEvent)) gateway.Unsubscribe {
	return func() {}
}
func (f *fakeGateway) OnCallToken(func(domain.CallTokenEvent)) gateway.Unsubscribe {
	return func() {}
}

func (f *fakeGateway) InitiateCall(string, domain.Role, domain.MediaKind) error { return nil }
func (f *fakeGateway) AcceptCall(string, string) error                          { return nil }
func (f *fakeGateway) RejectCall(string, string) error                          { return nil }
func (f *fakeGateway) EndCall(string, domain.EndCallParams) error               { return nil }

func (f *fakeGateway) JoinConversation(roomKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRooms[roomKey] {
		return fmt.Errorf("join refused")
	}
	f.joins[roomKey]++
	return nil
}

// TestPreJoin_JoinsEachRoomOnce tests idempotence across repeated passes
func TestPreJoin_JoinsEachRoomOnce(t *testing.T) {
	gw := newFakeGateway()
	manager := NewManager(gw, time.Second)

	ids := []string{"astro-1", "astro-2"}
	manager.PreJoin(ids)
	manager.PreJoin(ids)

	assert.Equal(t, 1, gw.joins[Key("astro-1")])
	assert.Equal(t, 1, gw.joins[Key("astro-2")])
	assert.True(t, manager.Joined("astro-1"))
	assert.True(t, manager.Joined("astro-2"))
}

// TestPreJoin_ConnectFailureNonFatal tests that a connect timeout skips
// the pass without marking anything joined
func TestPreJoin_ConnectFailureNonFatal(t *testing.T) {
	gw := newFakeGateway()
	gw.connectErr = fmt.Errorf("timed out")
	manager := NewManager(gw, 250*time.Millisecond)

	manager.PreJoin([]string{"astro-1"})

	assert.Equal(t, 250*time.Millisecond, gw.connectWait)
	assert.False(t, manager.Joined("astro-1"))
	assert.Empty(t, gw.joins)
}

// TestPreJoin_FailedRoomRetried tests that only failed rooms are retried
func TestPreJoin_FailedRoomRetried(t *testing.T) {
	gw := newFakeGateway()
	gw.failRooms[Key("astro-2")] = true
	manager := NewManager(gw, time.Second)

	manager.PreJoin([]string{"astro-1", "astro-2"})
	assert.True(t, manager.Joined("astro-1"))
	assert.False(t, manager.Joined("astro-2"))

	gw.mu.Lock()
	gw.failRooms[Key("astro-2")] = false
	gw.mu.Unlock()

	manager.PreJoin([]string{"astro-1", "astro-2"})
	assert.True(t, manager.Joined("astro-2"))
	assert.Equal(t, 1, gw.joins[Key("astro-1")])
}

// TestNewManager_DefaultWait tests the fallback connect bound
func TestNewManager_DefaultWait(t *testing.T) {
	gw := newFakeGateway()
	manager := NewManager(gw, 0)

	manager.PreJoin(nil)
	assert.NotZero(t, gw.connectWait)
}
