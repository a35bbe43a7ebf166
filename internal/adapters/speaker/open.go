package speaker

import (
	"fmt"
	"time"

	"github.com/dkeye/LiveVoice/internal/playback"
)

// Open builds the sink named by kind: null, ffplay or portaudio.
func Open(kind, command string, rate int, period time.Duration) (playback.Sink, error) {
	switch kind {
	case "", "null":
		return &Null{}, nil
	case "ffplay":
		return NewFFplay(command, rate)
	case "portaudio":
		return NewPortAudio(rate, int(int64(rate)*int64(period)/int64(time.Second)))
	}
	return nil, fmt.Errorf("unknown audio sink %q", kind)
}
