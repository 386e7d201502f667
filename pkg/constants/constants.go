// Package constants defines application-wide constants for timeouts,
// limits, and durations.
package constants

import "time"

// Realtime engine timing
const (
	// MessageDedupRetention is how long an observed message id is kept
	// before it may be delivered again
	MessageDedupRetention = 60 * time.Second

	// GatewayConnectWait bounds the wait for the gateway connection
	// during room pre-join
	GatewayConnectWait = 2 * time.Second

	// ToastDuration is how long a transient in-app toast stays visible
	ToastDuration = 4 * time.Second
)

// Gateway connection constants
const (
	// GatewayPingInterval is the WebSocket ping/pong interval
	GatewayPingInterval = 30 * time.Second

	// GatewayWriteTimeout bounds a single frame write
	GatewayWriteTimeout = 10 * time.Second

	// GatewaySendQueueSize is the outbound frame buffer; sends beyond it
	// fail fast instead of blocking a handler
	GatewaySendQueueSize = 256
)

// Display limits
const (
	// NotificationBodyLimit is the truncation length for desktop
	// notification bodies, in runes
	NotificationBodyLimit = 120
)

// HTTP server constants
const (
	// GracefulShutdownTimeout is the timeout for graceful server shutdown
	GracefulShutdownTimeout = 15 * time.Second
)
