package codec

import (
	"fmt"
	"sync"

	"github.com/pion/opus"

	"github.com/dkeye/LiveVoice/internal/domain"
)

const (
	// OpusRate is the rate pion/opus renders every frame at.
	OpusRate = 48000
	// 20 ms at OpusRate.
	opusFrameSamples = OpusRate / 50
)

// OpusDecoder decodes single Opus packets to mono float samples.
// Decoding is stateful, so one decoder serves one stream.
type OpusDecoder struct {
	mu  sync.Mutex
	dec opus.Decoder
	out []float32
}

func NewOpusDecoder() *OpusDecoder {
	return &OpusDecoder{
		dec: opus.NewDecoder(),
		out: make([]float32, opusFrameSamples),
	}
}

// Decode returns the samples of one 20 ms packet at OpusRate. The SILK
// decoder renders mono whatever the packet's stereo flag says.
func (d *OpusDecoder) Decode(packet []byte) ([]float32, int, error) {
	if len(packet) == 0 {
		return nil, 0, fmt.Errorf("%w: empty opus packet", domain.ErrDecode)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, _, err := d.dec.DecodeFloat32(packet, d.out); err != nil {
		return nil, 0, fmt.Errorf("%w: opus: %v", domain.ErrDecode, err)
	}
	pcm := make([]float32, len(d.out))
	copy(pcm, d.out)
	return pcm, OpusRate, nil
}
