package codec

import (
	"bytes"
	_ "embed"
	"errors"
	"io"
	"testing"

	"github.com/pion/opus"
	"github.com/pion/opus/pkg/oggreader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/LiveVoice/internal/domain"
)

// SILK wideband recording from the pion/opus test corpus.
//
//go:embed testdata/tiny.ogg
var tinyOgg []byte

func opusPackets(t *testing.T) [][]byte {
	t.Helper()
	ogg, _, err := oggreader.NewWith(bytes.NewReader(tinyOgg))
	require.NoError(t, err)

	var packets [][]byte
	for {
		segments, _, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if bytes.HasPrefix(segments[0], []byte("OpusTags")) {
			continue
		}
		packets = append(packets, segments...)
	}
	require.NotEmpty(t, packets)
	return packets
}

func TestOpusDecoderReturnsFullFrames(t *testing.T) {
	packets := opusPackets(t)
	dec := NewOpusDecoder()
	ref := opus.NewDecoder()
	want := make([]float32, 960)

	var energy float64
	for i, p := range packets {
		got, rate, err := dec.Decode(p)
		require.NoError(t, err, "packet %d", i)
		assert.Equal(t, OpusRate, rate)
		require.Len(t, got, 960, "20ms at 48kHz")

		_, _, err = ref.DecodeFloat32(p, want)
		require.NoError(t, err)
		assert.Equal(t, want, got, "packet %d", i)

		for _, s := range got {
			energy += float64(s * s)
		}
	}
	assert.Positive(t, energy)
}

func TestOpusDecoderCopiesOutput(t *testing.T) {
	packets := opusPackets(t)
	dec := NewOpusDecoder()

	first, _, err := dec.Decode(packets[0])
	require.NoError(t, err)
	snapshot := append([]float32(nil), first...)
	if len(packets) > 1 {
		_, _, err = dec.Decode(packets[1])
		require.NoError(t, err)
	}
	assert.Equal(t, snapshot, first)
}

func TestDecoderOpusChunkResamples(t *testing.T) {
	d := NewDecoder(24000)

	buf, err := d.Decode(domain.InboundAudioChunk{MimeType: domain.MimeOpus, Data: opusPackets(t)[0]})
	require.NoError(t, err)
	assert.Equal(t, 24000, buf.SampleRate)
	assert.Len(t, buf.Samples, 480)
	assert.Equal(t, "20ms", buf.Duration().String())
}

func TestOpusDecoderRejectsGarbage(t *testing.T) {
	_, _, err := NewOpusDecoder().Decode([]byte{0xff, 0x01})
	assert.ErrorIs(t, err, domain.ErrDecode)
}
