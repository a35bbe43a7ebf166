//go:build !portaudio

package device

import (
	"fmt"

	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/domain"
)

// NewPortAudio fails in builds without the portaudio tag.
func NewPortAudio(rate, framesPerBuffer int) (core.MediaDevices, error) {
	return nil, fmt.Errorf("%w: built without portaudio", domain.ErrEncodingUnsupported)
}
