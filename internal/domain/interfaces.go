package domain

import (
	"context"
	"errors"
)

// ErrPlaybackBlocked is returned by an AlertPlayer when the platform
// refuses playback until a user gesture has been observed.
var ErrPlaybackBlocked = errors.New("playback blocked pending user gesture")

// EventHandler receives raw events in transport delivery order.
type EventHandler func(event RawEvent)

// Transport interfaces
type StreamTransport interface {
	Open(ctx context.Context, token string) (StreamConn, error)
}

type StreamConn interface {
	// Next blocks until the next event arrives, the context is
	// cancelled, or the connection is lost.
	Next(ctx context.Context) (*RawEvent, error)
	Close() error
}

// Connection interface, satisfied by the stream manager.
type Connection interface {
	Connect(token string) error
	Disconnect()
	Connected() bool
}

// Alert interfaces
type Playback interface {
	Stop()
}

type AlertPlayer interface {
	// Play begins looping playback for key. A Playback handle is
	// returned on success; ErrPlaybackBlocked signals platform gating.
	Play(key string) (Playback, error)
}

// Cache interfaces
type ReadModelCache interface {
	// Invalidate marks the read-model behind key stale so the next
	// read refetches. Invalidating an absent key is a no-op.
	Invalidate(ctx context.Context, key CacheKey) error
}

// Notification interfaces
type NotificationProvider interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, n Notification) error
}
