// Package session owns the realtime connection to the PC peer.
package session

import (
	"log/slog"
	"time"
)

const (
	defaultConnectWait  = 2 * time.Second
	defaultDialTimeout  = 15 * time.Second
	defaultKeepalive    = 30 * time.Second
	defaultMoveInterval = 8 * time.Millisecond
	defaultWriteTimeout = 10 * time.Second
	defaultStreamBuffer = 64
	defaultHighWater    = 256
)

// Logger is the structured logger used by the manager. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type options struct {
	logger       Logger
	connectWait  time.Duration
	dialTimeout  time.Duration
	keepalive    time.Duration
	moveInterval time.Duration
	writeTimeout time.Duration
	streamBuffer int
	highWater    int
	now          func() time.Time
}

// Option configures a Manager.
type Option func(*options)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithConnectWait sets how long Connect waits for the dial before reporting ErrConnectPending.
func WithConnectWait(d time.Duration) Option {
	return func(o *options) { o.connectWait = d }
}

// WithDialTimeout bounds a single dial attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

// WithKeepalive sets the liveness probe interval.
func WithKeepalive(d time.Duration) Option {
	return func(o *options) { o.keepalive = d }
}

// WithMoveInterval sets the minimum spacing between accepted droppable messages of one type.
func WithMoveInterval(d time.Duration) Option {
	return func(o *options) { o.moveInterval = d }
}

// WithWriteTimeout sets the per-frame write deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.writeTimeout = d }
}

// WithStreamBuffer sets the buffer of each subscriber channel.
func WithStreamBuffer(n int) Option {
	return func(o *options) { o.streamBuffer = n }
}

// WithQueueHighWater sets the outbound depth that triggers a backlog warning.
func WithQueueHighWater(n int) Option {
	return func(o *options) { o.highWater = n }
}

// WithClock overrides the clock used for throttling.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// applyDefaults fills unset options.
func applyDefaults(o *options) {
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.connectWait <= 0 {
		o.connectWait = defaultConnectWait
	}
	if o.dialTimeout <= 0 {
		o.dialTimeout = defaultDialTimeout
	}
	if o.keepalive <= 0 {
		o.keepalive = defaultKeepalive
	}
	if o.moveInterval <= 0 {
		o.moveInterval = defaultMoveInterval
	}
	if o.writeTimeout <= 0 {
		o.writeTimeout = defaultWriteTimeout
	}
	if o.streamBuffer <= 0 {
		o.streamBuffer = defaultStreamBuffer
	}
	if o.highWater <= 0 {
		o.highWater = defaultHighWater
	}
	if o.now == nil {
		o.now = time.Now
	}
}
