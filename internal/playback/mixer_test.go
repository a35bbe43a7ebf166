package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/LiveVoice/internal/core"
)

func TestMixerClockFollowsRenderedFrames(t *testing.T) {
	m := NewMixer(1000, 10*time.Millisecond)
	assert.Equal(t, time.Duration(0), m.Now())

	m.Render(make([]float32, 250))
	assert.Equal(t, 250*time.Millisecond, m.Now())
}

func TestMixerPlaysAtScheduledFrame(t *testing.T) {
	m := NewMixer(1000, 10*time.Millisecond)
	ended := 0
	_, err := m.Start(&core.Buffer{Samples: []float32{0.5, 0.5}, SampleRate: 1000}, 2*time.Millisecond, func() { ended++ })
	require.NoError(t, err)

	out := make([]float32, 3)
	m.Render(out)
	assert.Equal(t, []float32{0, 0, 0.5}, out)
	assert.Equal(t, 0, ended)

	m.Render(out)
	assert.Equal(t, []float32{0.5, 0, 0}, out)
	assert.Equal(t, 1, ended)

	m.Render(out)
	assert.Equal(t, 1, ended, "end callback fires once")
}

func TestMixerPastStartPlaysImmediately(t *testing.T) {
	m := NewMixer(1000, 10*time.Millisecond)
	m.Render(make([]float32, 10))

	_, err := m.Start(&core.Buffer{Samples: []float32{0.25}, SampleRate: 1000}, 0, nil)
	require.NoError(t, err)

	out := make([]float32, 2)
	m.Render(out)
	assert.Equal(t, []float32{0.25, 0}, out)
}

func TestMixerStopSilencesWithoutCallback(t *testing.T) {
	m := NewMixer(1000, 10*time.Millisecond)
	ended := false
	src, err := m.Start(&core.Buffer{Samples: []float32{1, 1, 1, 1}, SampleRate: 1000}, 0, func() { ended = true })
	require.NoError(t, err)

	out := make([]float32, 2)
	m.Render(out)
	assert.Equal(t, []float32{1, 1}, out)

	src.Stop()
	src.Stop()
	m.Render(out)
	assert.Equal(t, []float32{0, 0}, out)
	assert.False(t, ended)
}

func TestMixerClampsSum(t *testing.T) {
	m := NewMixer(1000, 10*time.Millisecond)
	for range 3 {
		_, err := m.Start(&core.Buffer{Samples: []float32{0.6}, SampleRate: 1000}, 0, nil)
		require.NoError(t, err)
	}
	out := make([]float32, 1)
	m.Render(out)
	assert.Equal(t, []float32{1}, out)
}

func TestMixerClose(t *testing.T) {
	m := NewMixer(1000, 10*time.Millisecond)
	require.NoError(t, m.Close())
	_, err := m.Start(&core.Buffer{Samples: []float32{1}, SampleRate: 1000}, 0, nil)
	assert.ErrorIs(t, err, ErrOutputClosed)
}

type countingSink struct {
	mu     sync.Mutex
	writes int
}

func (s *countingSink) Write([]float32) error {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
	return nil
}

func (s *countingSink) Close() error { return nil }

func (s *countingSink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func TestMixerRunDrivesSink(t *testing.T) {
	m := NewMixer(24000, 5*time.Millisecond)
	sink := &countingSink{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, sink) }()

	assert.Eventually(t, func() bool { return sink.Writes() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Greater(t, m.Now(), time.Duration(0))
}
