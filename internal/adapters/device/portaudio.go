//go:build portaudio

package device

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/domain"
)

// PortAudio captures the default input device. It has no camera.
type PortAudio struct {
	Rate            int
	FramesPerBuffer int
}

func NewPortAudio(rate, framesPerBuffer int) (core.MediaDevices, error) {
	return &PortAudio{Rate: rate, FramesPerBuffer: framesPerBuffer}, nil
}

func (p *PortAudio) GetUserMedia(ctx context.Context, req domain.DeviceRequest) (*core.MediaStream, error) {
	if req.Video != nil {
		return nil, domain.ErrNoVideoDevice
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: portaudio: %v", domain.ErrNoInputDevice, err)
	}
	in := make([]float32, p.FramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(p.Rate), len(in), in)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: open input stream: %v", domain.ErrNoInputDevice, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: start input stream: %v", domain.ErrNoInputDevice, err)
	}
	log.Info().Str("module", "device").Int("rate", p.Rate).Msg("portaudio microphone started")
	return &core.MediaStream{Audio: &portaudioTrack{stream: stream, in: in, rate: p.Rate}}, nil
}

type portaudioTrack struct {
	core.TrackFlag
	stream *portaudio.Stream
	in     []float32
	rate   int

	mu      sync.Mutex
	pending []float32
}

func (t *portaudioTrack) SampleRate() int { return t.rate }

func (t *portaudioTrack) ReadSamples(ctx context.Context, dst []float32) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if t.State() == core.TrackStateEnded {
		return 0, io.EOF
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pending) == 0 {
		if err := t.stream.Read(); err != nil {
			return 0, err
		}
		t.pending = t.in
	}
	n := copy(dst, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *portaudioTrack) Stop() {
	if !t.MarkEnded() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.stream.Stop()
	_ = t.stream.Close()
	_ = portaudio.Terminate()
}
