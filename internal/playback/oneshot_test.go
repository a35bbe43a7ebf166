package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/LiveVoice/internal/codec"
)

type stubSynth struct {
	mu    sync.Mutex
	calls []string
	pcm   []byte
	err   error
	gate  chan struct{}
}

func (s *stubSynth) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, text+"|"+voice)
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.pcm, s.err
}

func (s *stubSynth) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func newTestPlayer(synth *stubSynth) (*Player, *manualOutput) {
	out := &manualOutput{}
	return NewPlayer(out, synth, codec.NewDecoder(testRate), ""), out
}

func TestToggleStartsAndStopsSameID(t *testing.T) {
	synth := &stubSynth{pcm: make([]byte, 4800)}
	p, out := newTestPlayer(synth)
	ctx := context.Background()

	require.Equal(t, ResultPlaying, p.Toggle(ctx, Request{ID: "a", Text: "hello"}))
	_, playing := p.State()
	assert.Equal(t, "a", playing)
	assert.Equal(t, []string{"hello|Kore"}, synth.Calls())

	assert.Equal(t, ResultStopped, p.Toggle(ctx, Request{ID: "a", Text: "hello"}))
	_, playing = p.State()
	assert.Empty(t, playing)
	assert.True(t, out.Calls()[0].src.Stopped())
}

func TestToggleOtherIDStopsPrevious(t *testing.T) {
	synth := &stubSynth{pcm: make([]byte, 4800)}
	p, out := newTestPlayer(synth)
	ctx := context.Background()

	require.Equal(t, ResultPlaying, p.Toggle(ctx, Request{ID: "a", Text: "one"}))
	require.Equal(t, ResultPlaying, p.Toggle(ctx, Request{ID: "b", Text: "two", Voice: "Puck"}))

	calls := out.Calls()
	require.Len(t, calls, 2)
	assert.True(t, calls[0].src.Stopped())
	assert.False(t, calls[1].src.Stopped())
	_, playing := p.State()
	assert.Equal(t, "b", playing)
	assert.Equal(t, "two|Puck", synth.Calls()[1])
}

func TestToggleIgnoredWhileLoading(t *testing.T) {
	synth := &stubSynth{pcm: make([]byte, 4800), gate: make(chan struct{})}
	p, _ := newTestPlayer(synth)
	ctx := context.Background()

	first := make(chan Result, 1)
	go func() { first <- p.Toggle(ctx, Request{ID: "a", Text: "slow"}) }()
	require.Eventually(t, func() bool {
		loading, _ := p.State()
		return loading == "a"
	}, time.Second, time.Millisecond)

	assert.Equal(t, ResultIgnored, p.Toggle(ctx, Request{ID: "b", Text: "fast"}))
	assert.Len(t, synth.Calls(), 1)

	close(synth.gate)
	assert.Equal(t, ResultPlaying, <-first)
}

func TestNaturalEndClearsState(t *testing.T) {
	synth := &stubSynth{pcm: make([]byte, 480)}
	p, out := newTestPlayer(synth)

	require.Equal(t, ResultPlaying, p.Toggle(context.Background(), Request{ID: "a", Text: "x"}))
	out.End(0)

	loading, playing := p.State()
	assert.Empty(t, loading)
	assert.Empty(t, playing)

	// A toggle after natural end plays again rather than stopping.
	assert.Equal(t, ResultPlaying, p.Toggle(context.Background(), Request{ID: "a", Text: "x"}))
}

func TestToggleFailuresAreSilent(t *testing.T) {
	tests := []struct {
		name  string
		synth *stubSynth
		want  Result
	}{
		{"synth error", &stubSynth{err: errors.New("boom")}, ResultFailed},
		{"nothing to play", &stubSynth{}, ResultNothingToPlay},
		{"corrupt pcm", &stubSynth{pcm: []byte{1, 2, 3}}, ResultFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, out := newTestPlayer(tt.synth)
			assert.Equal(t, tt.want, p.Toggle(context.Background(), Request{ID: "a", Text: "x"}))
			loading, playing := p.State()
			assert.Empty(t, loading)
			assert.Empty(t, playing)
			assert.Empty(t, out.Calls())
		})
	}
}

func TestTogglePrefetchedPCM(t *testing.T) {
	synth := &stubSynth{}
	p, out := newTestPlayer(synth)

	assert.Equal(t, ResultPlaying, p.Toggle(context.Background(), Request{ID: "a", PCM: make([]byte, 480)}))
	assert.Empty(t, synth.Calls())
	require.Len(t, out.Calls(), 1)
	assert.Equal(t, 10*time.Millisecond, out.Calls()[0].dur)
}

func TestStopAbandonsPendingLoad(t *testing.T) {
	synth := &stubSynth{pcm: make([]byte, 480), gate: make(chan struct{})}
	p, out := newTestPlayer(synth)

	res := make(chan Result, 1)
	go func() { res <- p.Toggle(context.Background(), Request{ID: "a", Text: "x"}) }()
	require.Eventually(t, func() bool {
		loading, _ := p.State()
		return loading == "a"
	}, time.Second, time.Millisecond)

	p.Stop()
	close(synth.gate)
	assert.Equal(t, ResultStopped, <-res)
	assert.Empty(t, out.Calls())
}
