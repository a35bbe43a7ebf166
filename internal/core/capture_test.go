package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackFlag(t *testing.T) {
	var f TrackFlag
	assert.True(t, f.Enabled())

	f.SetEnabled(false)
	assert.Equal(t, TrackStateMuted, f.State())
	f.SetEnabled(true)
	assert.True(t, f.Enabled())

	assert.True(t, f.MarkEnded())
	assert.False(t, f.MarkEnded())
	f.SetEnabled(true)
	assert.Equal(t, TrackStateEnded, f.State())
}

func TestBufferDuration(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, (&Buffer{Samples: make([]float32, 12000), SampleRate: 24000}).Duration())

	var nilBuf *Buffer
	assert.Equal(t, time.Duration(0), nilBuf.Duration())
}
