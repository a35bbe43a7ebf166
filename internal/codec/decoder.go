package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/domain"
)

// Decoder turns inbound chunks into buffers at the output rate.
type Decoder struct {
	// OutputRate is the playback engine's native rate.
	OutputRate int
	// DefaultInputRate applies to raw PCM chunks without a rate parameter.
	DefaultInputRate int

	opus *OpusDecoder
}

func NewDecoder(outputRate int) *Decoder {
	return &Decoder{
		OutputRate:       outputRate,
		DefaultInputRate: outputRate,
		opus:             NewOpusDecoder(),
	}
}

// Decode never panics on bad input; every failure wraps domain.ErrDecode.
func (d *Decoder) Decode(chunk domain.InboundAudioChunk) (*core.Buffer, error) {
	base, rate, err := d.parseMime(chunk.MimeType)
	if err != nil {
		return nil, err
	}
	var samples []float32
	switch base {
	case "audio/pcm", "audio/l16", "":
		samples, err = DecodePCM16(chunk.Data)
	case domain.MimeOpus:
		samples, rate, err = d.opus.Decode(chunk.Data)
	default:
		return nil, fmt.Errorf("%w: unsupported mime %q", domain.ErrDecode, chunk.MimeType)
	}
	if err != nil {
		return nil, err
	}
	return &core.Buffer{
		Samples:    Resample(samples, rate, d.OutputRate),
		SampleRate: d.OutputRate,
	}, nil
}

// DecodePCM decodes a raw PCM16 payload at the default input rate.
func (d *Decoder) DecodePCM(data []byte) (*core.Buffer, error) {
	return d.Decode(domain.InboundAudioChunk{Data: data})
}

func (d *Decoder) parseMime(mime string) (string, int, error) {
	rate := d.DefaultInputRate
	parts := strings.Split(mime, ";")
	base := strings.ToLower(strings.TrimSpace(parts[0]))
	for _, p := range parts[1:] {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || strings.ToLower(k) != "rate" {
			continue
		}
		r, err := strconv.Atoi(v)
		if err != nil || r <= 0 {
			return "", 0, fmt.Errorf("%w: bad rate in %q", domain.ErrDecode, mime)
		}
		rate = r
	}
	return base, rate, nil
}
