// Package rooms opportunistically joins conversation rooms after the
// roster loads so messages for the active view arrive with low latency.
// Pre-joining is an optimization: the global notification channel still
// delivers messages for rooms whose join failed.
package rooms

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"astroconsole-backend/internal/gateway"
	"astroconsole-backend/pkg/constants"
	"astroconsole-backend/pkg/logger"
)

// Key derives the room key for a counterpart conversation
func Key(counterpartID string) string {
	return fmt.Sprintf("conversation:%s", counterpartID)
}

// Manager tracks which conversation rooms have been joined. Joins are
// idempotent; a failed join is retried on the next PreJoin pass.
type Manager struct {
	mu     sync.Mutex
	gw     gateway.Gateway
	wait   time.Duration
	joined map[string]bool
}

// NewManager creates a manager with the given connect wait bound. A
// non-positive wait falls back to the default.
func NewManager(gw gateway.Gateway, wait time.Duration) *Manager {
	if wait <= 0 {
		wait = constants.GatewayConnectWait
	}
	return &Manager{
		gw:     gw,
		wait:   wait,
		joined: make(map[string]bool),
	}
}

// PreJoin connects to the gateway (bounded wait) and joins the room of
// every counterpart not yet joined. Never fatal: callers run it after the
// roster is already on screen.
func (m *Manager) PreJoin(counterpartIDs []string) {
	if err := m.gw.ConnectAndWait(m.wait); err != nil {
		logger.Warn("gateway not ready, skipping room pre-join", zap.Error(err))
		return
	}

	for _, id := range counterpartIDs {
		key := Key(id)

		m.mu.Lock()
		already := m.joined[key]
		m.mu.Unlock()
		if already {
			continue
		}

		if err := m.gw.JoinConversation(key); err != nil {
			logger.Warn("room join failed",
				zap.String("room", key), zap.Error(err))
			continue
		}

		m.mu.Lock()
		m.joined[key] = true
		m.mu.Unlock()
	}
}

// Joined reports whether a counterpart's room has been joined
func (m *Manager) Joined(counterpartID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.joined[Key(counterpartID)]
}
