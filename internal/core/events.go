package core

import "github.com/dkeye/LiveVoice/internal/domain"

type EventKind int

const (
	EventAudioChunk EventKind = iota
	EventInterrupted
	EventClosed
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventAudioChunk:
		return "audio_chunk"
	case EventInterrupted:
		return "interrupted"
	case EventClosed:
		return "closed"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Event is one inbound message of a session. Chunk is set for
// EventAudioChunk, Err for EventError.
type Event struct {
	Kind  EventKind
	Chunk domain.InboundAudioChunk
	Err   error
}
