// Package codec converts between capture samples, wire blobs and playable buffers.
package codec

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dkeye/LiveVoice/internal/domain"
)

const bytesPerSample = 2

// EncodePCM16 converts samples in [-1, 1] to little-endian signed 16-bit PCM.
// Out-of-range samples are clamped.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(floatToInt16(s)))
	}
	return out
}

// DecodePCM16 converts little-endian signed 16-bit PCM to samples in [-1, 1).
func DecodePCM16(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty pcm payload", domain.ErrDecode)
	}
	if len(data)%bytesPerSample != 0 {
		return nil, fmt.Errorf("%w: pcm length %d is not a multiple of %d", domain.ErrDecode, len(data), bytesPerSample)
	}
	out := make([]float32, len(data)/bytesPerSample)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(data[i*bytesPerSample:])) //nolint:gosec // PCM16 reinterpretation
		out[i] = float32(v) / 32768
	}
	return out, nil
}

// Int16ToFloat converts native int16 samples to [-1, 1).
func Int16ToFloat(in []int16) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v) / 32768
	}
	return out
}

func floatToInt16(s float32) int16 {
	if s != s { // NaN
		return 0
	}
	if s >= 1 {
		return math.MaxInt16
	}
	if s <= -1 {
		return math.MinInt16
	}
	if s < 0 {
		return int16(s * 0x8000)
	}
	return int16(s * 0x7fff)
}

// EncodeFrame turns one capture block into the outbound audio blob.
func EncodeFrame(f domain.AudioFrame) domain.MediaBlob {
	return domain.MediaBlob{
		MimeType: domain.PCMMime(f.SampleRate),
		Data:     base64.StdEncoding.EncodeToString(EncodePCM16(f.Samples)),
	}
}

// EncodeVideo wraps a compressed still as an outbound blob.
func EncodeVideo(v domain.VideoSample) domain.MediaBlob {
	return domain.MediaBlob{
		MimeType: v.MimeType,
		Data:     base64.StdEncoding.EncodeToString(v.Data),
	}
}
