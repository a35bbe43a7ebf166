package capture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/domain"
)

func TestAcquireRequestedFacingFirst(t *testing.T) {
	md := &scriptedDevices{answers: map[string]func() (*core.MediaStream, error){
		"audio+video(environment)": func() (*core.MediaStream, error) {
			return &core.MediaStream{Audio: &toneTrack{rate: 16000}, Video: &stillTrack{}}, nil
		},
	}}

	dev, err := Acquire(context.Background(), md, KindAudioVideo, domain.FacingEnvironment)
	require.NoError(t, err)
	assert.True(t, dev.HasVideo())
	assert.Equal(t, []string{"audio+video(environment)"}, md.Requests())
}

func TestAcquireFallsBackToAnyCamera(t *testing.T) {
	md := &scriptedDevices{answers: map[string]func() (*core.MediaStream, error){
		"audio+video(user)": func() (*core.MediaStream, error) { return nil, errNoCamera },
		"audio+video(any)": func() (*core.MediaStream, error) {
			return &core.MediaStream{Audio: &toneTrack{rate: 16000}, Video: &stillTrack{}}, nil
		},
	}}

	dev, err := Acquire(context.Background(), md, KindAudioVideo, domain.FacingUser)
	require.NoError(t, err)
	assert.True(t, dev.HasVideo())
	assert.Equal(t, []string{"audio+video(user)", "audio+video(any)"}, md.Requests())
}

func TestAcquireFallsBackToAudioOnly(t *testing.T) {
	md := &scriptedDevices{answers: map[string]func() (*core.MediaStream, error){
		"audio": func() (*core.MediaStream, error) {
			return &core.MediaStream{Audio: &toneTrack{rate: 16000}}, nil
		},
	}}

	dev, err := Acquire(context.Background(), md, KindAudioVideo, domain.FacingUser)
	require.NoError(t, err)
	assert.False(t, dev.HasVideo())
	assert.Nil(t, dev.Video)
	assert.Equal(t, []string{"audio+video(user)", "audio+video(any)", "audio"}, md.Requests())
}

func TestAcquireNoInputDevice(t *testing.T) {
	md := &scriptedDevices{}

	_, err := Acquire(context.Background(), md, KindAudioVideo, domain.FacingUser)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoInputDevice)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	var devErr *domain.DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Nil(t, devErr.Request.Video)
	assert.Len(t, md.Requests(), 3)
}

func TestAcquireAudioKindSkipsVideo(t *testing.T) {
	md := &scriptedDevices{answers: map[string]func() (*core.MediaStream, error){
		"audio": func() (*core.MediaStream, error) {
			return &core.MediaStream{Audio: &toneTrack{rate: 16000}}, nil
		},
	}}

	_, err := Acquire(context.Background(), md, KindAudio, domain.FacingUser)
	require.NoError(t, err)
	assert.Equal(t, []string{"audio"}, md.Requests())
}

func TestAcquireRejectsStreamWithoutAudio(t *testing.T) {
	video := &stillTrack{}
	md := &scriptedDevices{answers: map[string]func() (*core.MediaStream, error){
		"audio+video(user)": func() (*core.MediaStream, error) {
			return &core.MediaStream{Video: video}, nil
		},
		"audio": func() (*core.MediaStream, error) {
			return &core.MediaStream{Audio: &toneTrack{rate: 16000}}, nil
		},
	}}

	dev, err := Acquire(context.Background(), md, KindAudioVideo, domain.FacingUser)
	require.NoError(t, err)
	assert.False(t, dev.HasVideo())
	assert.Equal(t, core.TrackStateEnded, video.State())
}

func TestDeviceStopIsIdempotent(t *testing.T) {
	audio, video := &toneTrack{rate: 16000}, &stillTrack{}
	dev := &Device{Audio: audio, Video: video}

	dev.Stop()
	dev.Stop()
	assert.Equal(t, core.TrackStateEnded, audio.State())
	assert.Equal(t, core.TrackStateEnded, video.State())

	var nilDev *Device
	assert.NotPanics(t, nilDev.Stop)
}
