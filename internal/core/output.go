package core

import "time"

// Buffer is a mono playable buffer in [-1, 1].
type Buffer struct {
	Samples    []float32
	SampleRate int
}

func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// Source is a handle to one scheduled buffer. Stop is idempotent and
// silences the buffer immediately; it does not fire the end callback.
type Source interface {
	Stop()
}

// OutputContext is the process-scoped audio output with its own clock.
// onEnded fires once on natural end, never from inside Start.
type OutputContext interface {
	Clock
	SampleRate() int
	Start(buf *Buffer, at time.Duration, onEnded func()) (Source, error)
	Close() error
}
