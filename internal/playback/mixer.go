package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveVoice/internal/codec"
	"github.com/dkeye/LiveVoice/internal/core"
)

var ErrOutputClosed = errors.New("output context closed")

// Sink consumes rendered mono samples at the mixer rate.
type Sink interface {
	Write(samples []float32) error
	Close() error
}

// ClockedSink blocks in Write for as long as the samples take to play,
// so it can drive the mixer clock by itself.
type ClockedSink interface {
	Sink
	Clocked() bool
}

// Mixer is a software OutputContext. Its clock is the number of frames
// rendered so far, so Now never runs ahead of what was handed to the sink.
type Mixer struct {
	rate   int
	period int

	mu     sync.Mutex
	frame  int64
	voices []*voice
	closed bool
}

type voice struct {
	m       *Mixer
	samples []float32
	start   int64
	onEnded func()
}

func NewMixer(rate int, period time.Duration) *Mixer {
	frames := int(int64(rate) * int64(period) / int64(time.Second))
	if frames <= 0 {
		frames = rate / 50
	}
	return &Mixer{rate: rate, period: frames}
}

func (m *Mixer) SampleRate() int { return m.rate }

func (m *Mixer) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.framesToDuration(m.frame)
}

func (m *Mixer) Start(buf *core.Buffer, at time.Duration, onEnded func()) (core.Source, error) {
	if buf == nil {
		return nil, fmt.Errorf("start: nil buffer")
	}
	samples := buf.Samples
	if buf.SampleRate != m.rate {
		samples = codec.Resample(samples, buf.SampleRate, m.rate)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrOutputClosed
	}
	v := &voice{
		m:       m,
		samples: samples,
		start:   max(m.durationToFrames(at), m.frame),
		onEnded: onEnded,
	}
	m.voices = append(m.voices, v)
	return v, nil
}

// Stop removes the voice without firing its end callback.
func (v *voice) Stop() {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cur := range m.voices {
		if cur == v {
			m.voices = append(m.voices[:i], m.voices[i+1:]...)
			return
		}
	}
}

// Render mixes the next len(out) frames into out and advances the clock.
// End callbacks run after the lock is released.
func (m *Mixer) Render(out []float32) {
	clear(out)
	var ended []func()

	m.mu.Lock()
	from := m.frame
	to := from + int64(len(out))
	kept := m.voices[:0]
	for _, v := range m.voices {
		end := v.start + int64(len(v.samples))
		lo, hi := max(v.start, from), min(end, to)
		for f := lo; f < hi; f++ {
			out[f-from] += v.samples[f-v.start]
		}
		if end <= to {
			if v.onEnded != nil {
				ended = append(ended, v.onEnded)
			}
			continue
		}
		kept = append(kept, v)
	}
	clear(m.voices[len(kept):])
	m.voices = kept
	m.frame = to
	m.mu.Unlock()

	for i, s := range out {
		out[i] = min(max(s, -1), 1)
	}
	for _, fn := range ended {
		fn()
	}
}

// Run renders one period at a time into the sink until ctx is done.
func (m *Mixer) Run(ctx context.Context, sink Sink) error {
	logger := log.With().Str("module", "playback.mixer").Int("rate", m.rate).Logger()
	buf := make([]float32, m.period)

	if cs, ok := sink.(ClockedSink); ok && cs.Clocked() {
		logger.Info().Msg("mixer driven by sink clock")
		for ctx.Err() == nil {
			m.Render(buf)
			if err := sink.Write(buf); err != nil {
				return fmt.Errorf("sink write: %w", err)
			}
		}
		return nil
	}

	ticker := time.NewTicker(m.framesToDuration(int64(m.period)))
	defer ticker.Stop()
	logger.Info().Msg("mixer driven by ticker")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Render(buf)
			if err := sink.Write(buf); err != nil {
				return fmt.Errorf("sink write: %w", err)
			}
		}
	}
}

// Close silences every voice; later Start calls fail.
func (m *Mixer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.voices = nil
	return nil
}

func (m *Mixer) framesToDuration(frames int64) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(m.rate)
}

func (m *Mixer) durationToFrames(d time.Duration) int64 {
	return (int64(d)*int64(m.rate) + int64(time.Second)/2) / int64(time.Second)
}
