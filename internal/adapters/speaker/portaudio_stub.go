//go:build !portaudio

package speaker

import (
	"errors"

	"github.com/dkeye/LiveVoice/internal/playback"
)

// NewPortAudio fails in builds without the portaudio tag.
func NewPortAudio(rate, framesPerBuffer int) (playback.Sink, error) {
	return nil, errors.New("built without portaudio")
}
