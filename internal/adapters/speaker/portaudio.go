//go:build portaudio

package speaker

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveVoice/internal/playback"
)

// PortAudio plays through the default output device. Write blocks for the
// duration of the samples, so it drives the mixer clock.
type PortAudio struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	out    []float32
}

func NewPortAudio(rate, framesPerBuffer int) (playback.Sink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: %w", err)
	}
	out := make([]float32, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(rate), len(out), out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start output stream: %w", err)
	}
	log.Info().Str("module", "speaker").Int("rate", rate).Msg("portaudio output started")
	return &PortAudio{stream: stream, out: out}, nil
}

func (p *PortAudio) Clocked() bool { return true }

func (p *PortAudio) Write(samples []float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(samples) > 0 {
		n := copy(p.out, samples)
		clear(p.out[n:])
		if err := p.stream.Write(); err != nil {
			return err
		}
		samples = samples[n:]
	}
	return nil
}

func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.stream.Stop()
	_ = p.stream.Close()
	return portaudio.Terminate()
}
