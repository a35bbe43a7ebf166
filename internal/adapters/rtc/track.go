package rtc

import (
	"context"
	"io"
	"sync"

	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/metrics"
)

const remoteAudioKind = "remote_audio"

// remoteTrack is one subscriber of a relay. The relay pushes decoded
// frames, the capture pipeline reads them.
type remoteTrack struct {
	core.TrackFlag

	rate    int
	frames  chan []float32
	pending []float32
	done    chan struct{}
	once    sync.Once
}

func newRemoteTrack(rate, depth int) *remoteTrack {
	return &remoteTrack{
		rate:   rate,
		frames: make(chan []float32, depth),
		done:   make(chan struct{}),
	}
}

func (t *remoteTrack) SampleRate() int { return t.rate }

// push never blocks the relay; a full queue loses its oldest frame.
func (t *remoteTrack) push(samples []float32) {
	for {
		select {
		case t.frames <- samples:
			return
		default:
		}
		select {
		case <-t.frames:
			metrics.FramesDropped.WithLabelValues(remoteAudioKind, "overflow").Inc()
		default:
		}
	}
}

func (t *remoteTrack) ReadSamples(ctx context.Context, dst []float32) (int, error) {
	if len(t.pending) == 0 {
		select {
		case f := <-t.frames:
			t.pending = f
		case <-t.done:
			return 0, io.EOF
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	n := copy(dst, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *remoteTrack) Stop() {
	t.MarkEnded()
	t.once.Do(func() { close(t.done) })
}
