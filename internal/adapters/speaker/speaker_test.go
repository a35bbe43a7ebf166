package speaker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullCountsFrames(t *testing.T) {
	var n Null
	require.NoError(t, n.Write(make([]float32, 480)))
	require.NoError(t, n.Write(make([]float32, 20)))
	assert.Equal(t, int64(500), n.Frames())
	assert.NoError(t, n.Close())
}

func TestFFplayMissingBinary(t *testing.T) {
	_, err := NewFFplay("no-such-player -i pipe:0", 24000)
	assert.Error(t, err)

	_, err = NewFFplay(`ffplay "broken`, 24000)
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	sink, err := Open("", "", 24000, 0)
	require.NoError(t, err)
	assert.IsType(t, &Null{}, sink)

	_, err = Open("tape-deck", "", 24000, 0)
	assert.Error(t, err)
}
