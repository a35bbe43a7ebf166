package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/LiveVoice/internal/domain"
)

func TestDecoderPCM(t *testing.T) {
	d := NewDecoder(24000)

	buf, err := d.Decode(domain.InboundAudioChunk{
		MimeType: "audio/pcm;rate=24000",
		Data:     make([]byte, 4800),
	})
	require.NoError(t, err)
	assert.Equal(t, 24000, buf.SampleRate)
	assert.Len(t, buf.Samples, 2400)
	assert.Equal(t, "100ms", buf.Duration().String())
}

func TestDecoderResamplesToOutputRate(t *testing.T) {
	d := NewDecoder(24000)

	buf, err := d.Decode(domain.InboundAudioChunk{
		MimeType: "audio/pcm;rate=16000",
		Data:     make([]byte, 3200),
	})
	require.NoError(t, err)
	assert.Len(t, buf.Samples, 2400)
}

func TestDecoderDefaultsMissingMime(t *testing.T) {
	d := NewDecoder(24000)

	buf, err := d.DecodePCM(make([]byte, 480))
	require.NoError(t, err)
	assert.Len(t, buf.Samples, 240)
}

func TestDecoderFailures(t *testing.T) {
	d := NewDecoder(24000)
	tests := []struct {
		name  string
		chunk domain.InboundAudioChunk
	}{
		{"odd length", domain.InboundAudioChunk{MimeType: "audio/pcm", Data: []byte{1, 2, 3}}},
		{"empty", domain.InboundAudioChunk{MimeType: "audio/pcm;rate=24000"}},
		{"bad rate", domain.InboundAudioChunk{MimeType: "audio/pcm;rate=abc", Data: []byte{0, 0}}},
		{"unknown mime", domain.InboundAudioChunk{MimeType: "audio/mp3", Data: []byte{0, 0}}},
		{"empty opus", domain.InboundAudioChunk{MimeType: "audio/opus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Decode(tt.chunk)
			assert.ErrorIs(t, err, domain.ErrDecode)
		})
	}
}
