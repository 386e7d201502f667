// Package dedup suppresses re-delivery of messages that arrive more than
// once because the gateway broadcasts them to both the conversation room
// and the operator's personal preview room.
package dedup

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"astroconsole-backend/pkg/constants"
	"astroconsole-backend/pkg/logger"
)

// Cache remembers recently observed message ids for a fixed retention
// window. Eviction is per-id via a deferred timer, so memory is bounded
// by recent traffic only.
type Cache struct {
	mu        sync.Mutex
	retention time.Duration
	timers    map[string]*time.Timer
	closed    bool
}

// New creates a cache with the given retention window. A non-positive
// window falls back to the default.
func New(retention time.Duration) *Cache {
	if retention <= 0 {
		retention = constants.MessageDedupRetention
	}
	return &Cache{
		retention: retention,
		timers:    make(map[string]*time.Timer),
	}
}

// Observe records a message id and reports whether it is new. An empty id
// cannot be deduplicated and is presumed unique. Callers must discard the
// event entirely when the id was already seen.
func (c *Cache) Observe(messageID string) bool {
	if messageID == "" {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return true
	}
	if _, seen := c.timers[messageID]; seen {
		logger.Debug("duplicate message suppressed", zap.String("message_id", messageID))
		return false
	}

	c.timers[messageID] = time.AfterFunc(c.retention, func() {
		c.evict(messageID)
	})
	return true
}

func (c *Cache) evict(messageID string) {
	c.mu.Lock()
	delete(c.timers, messageID)
	c.mu.Unlock()
}

// Len reports the number of ids currently retained
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Close cancels all outstanding eviction timers. The cache accepts no new
// ids afterwards; every Observe reports new.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}
