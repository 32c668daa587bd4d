// Package source produces the live stream of log lines the alert
// engine consumes. Two implementations exist: a journald follower that
// shells out to journalctl, and a file tailer built on fsnotify with a
// polling fallback.
package source

import (
	"context"
	"time"
)

// Line is a single log line with its arrival timestamp.
type Line struct {
	Text   string    // The line content
	Origin string    // Where the line came from (unit name or file path)
	Time   time.Time // When the line was read
	Err    error     // Any error that occurred
}

// Source is a producer of log lines.
type Source interface {
	// Lines returns the channel that emits lines as they arrive.
	// The channel is closed when the source stops.
	Lines() <-chan Line
	// Start begins producing lines until the context is cancelled.
	Start(ctx context.Context) error
	// Stop stops the source and releases its resources.
	Stop()
}
