package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/domain"
)

type fakeSignal struct{ frames []core.Frame }

func (f *fakeSignal) TrySend(fr core.Frame) error {
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeSignal) Close() {}

type fakeMedia struct {
	core.MediaConnection
	closed bool
}

func (f *fakeMedia) Close() { f.closed = true }

func TestSimplePolicy(t *testing.T) {
	p := SimplePolicy{SlowAfter: 3}
	assert.Equal(t, DropFrame, p.OnBackPressure("audio", 1))
	assert.Equal(t, DropFrame, p.OnBackPressure("audio", 2))
	assert.Equal(t, MarkSlow, p.OnBackPressure("audio", 3))
	assert.Equal(t, DropFrame, SimplePolicy{}.OnBackPressure("video", 1000))
	assert.Equal(t, "mark_slow", MarkSlow.String())
}

func TestRegistryClients(t *testing.T) {
	r := NewRegistry()
	c := r.GetOrCreateClient("a")
	assert.Equal(t, "guest", c.Name)

	require.NoError(t, r.UpdateName("a", "kitchen"))
	assert.Equal(t, "kitchen", r.GetOrCreateClient("a").Name)
	assert.ErrorIs(t, r.UpdateName("a", ""), domain.ErrClientNameEmpty)
	assert.Equal(t, "kitchen", r.GetOrCreateClient("a").Name)
}

func TestRegistryBindings(t *testing.T) {
	r := NewRegistry()
	first, second := &fakeSignal{}, &fakeSignal{}
	cancelled := false
	r.BindSignal("a", first, func() { cancelled = true })
	r.BindSignal("a", second, nil)
	assert.True(t, cancelled, "replaced signal is cancelled")

	snaps := r.Signals()
	require.Len(t, snaps, 1)
	assert.Same(t, second, snaps[0].Signal)

	m1, m2 := &fakeMedia{}, &fakeMedia{}
	assert.Nil(t, r.BindMedia("a", m1))
	assert.Same(t, m1, r.BindMedia("a", m2))
	assert.False(t, r.ReleaseMedia("a", m1))
	got, ok := r.Media("a")
	require.True(t, ok)
	assert.Same(t, m2, got)
	assert.True(t, r.ReleaseMedia("a", m2))
	_, ok = r.Media("a")
	assert.False(t, ok)

	assert.False(t, r.Unbind("a", first))
	assert.Len(t, r.Signals(), 1, "stale unbind is ignored")
	assert.True(t, r.Unbind("a", second))
	assert.Empty(t, r.Signals())
	assert.False(t, r.Cancel("a"))
}
