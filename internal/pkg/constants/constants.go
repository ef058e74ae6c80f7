// Package constants provides shared constants used across osmon components.
package constants

import "time"

// Sampling defaults
const (
	// DefaultDelay is the poll interval used when no delay option is configured
	DefaultDelay = 3000 * time.Millisecond

	// DefaultThrottle is the default window for throttled listeners (0 disables rate limiting)
	DefaultThrottle = time.Duration(0)
)

// Stream sizing
const (
	// StreamHighWaterMark is the number of unread bytes the byte stream holds
	// before it starts rejecting records
	StreamHighWaterMark = 102400
)

// Shutdown and graceful termination timeouts
const (
	// GracefulShutdownTimeout is the time to wait for graceful component shutdown
	GracefulShutdownTimeout = 2 * time.Second
)

// Channel buffer sizes
//
// Signal channels use a single-item buffer so the runtime never blocks
// delivering an OS signal.
const (
	// SignalChannelBuffer is the buffer size for OS signal channels
	SignalChannelBuffer = 1

	// ReloadChannelBuffer is the buffer size for config reload requests.
	// Reloads coalesce: a pending request already covers a newer one.
	ReloadChannelBuffer = 1
)
