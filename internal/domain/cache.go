package domain

import (
	"context"
	"time"
)

// LockManager guards work that must not run in two processes at once, such
// as a tick against a shared ledger. Acquire returns ErrLockHeld when another
// holder owns key; the returned unlock is safe to call more than once.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RateLimiter admits at most limit calls per key within a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// StreamMessage is one replayable entry of a signal-bus stream. ID orders
// entries and doubles as the resume cursor.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus carries announcements between processes: Publish/Subscribe for
// live listeners, StreamAppend/StreamRead for readers that connect late.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream, afterID string, count int) ([]StreamMessage, error)
}
