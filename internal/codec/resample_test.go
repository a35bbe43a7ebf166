package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResample(t *testing.T) {
	t.Run("same rate is identity", func(t *testing.T) {
		in := []float32{0.1, 0.2}
		assert.Equal(t, in, Resample(in, 24000, 24000))
	})

	t.Run("downsample halves length", func(t *testing.T) {
		in := make([]float32, 480)
		assert.Len(t, Resample(in, 48000, 24000), 240)
	})

	t.Run("upsample interpolates", func(t *testing.T) {
		got := Resample([]float32{0, 1}, 1, 2)
		assert.InDeltaSlice(t, []float32{0, 0.5, 1, 1}, got, 1e-6)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, Resample(nil, 16000, 24000))
	})
}
