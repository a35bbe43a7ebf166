package core

import (
	"context"
	"time"

	"github.com/dkeye/LiveVoice/internal/domain"
)

// Frame is a raw binary payload (e.g., a JSON control message).
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MediaSender accepts outbound media blobs without blocking.
// A full outbound queue returns domain.ErrBackpressure.
type MediaSender interface {
	Send(domain.MediaBlob) error
}

// StreamConnection is one duplex session to the remote inference endpoint.
type StreamConnection interface {
	MediaSender
	ID() domain.SessionID
	State() domain.SessionState
	// Events delivers inbound events in arrival order. It is closed when
	// the session stops reading.
	Events() <-chan Event
	// Close is idempotent.
	Close()
}

// StreamDialer opens a session and returns once it is Open.
type StreamDialer interface {
	Dial(ctx context.Context, cfg domain.SessionConfig) (StreamConnection, error)
}

// Synthesizer turns text into raw PCM16 LE at the output rate.
// A nil slice with a nil error means nothing to play.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Clock reports time on the output audio clock.
type Clock interface {
	Now() time.Duration
}
