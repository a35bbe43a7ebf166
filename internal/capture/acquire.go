// Package capture acquires input devices and turns them into outbound media.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/domain"
	"github.com/dkeye/LiveVoice/internal/metrics"
)

type Kind int

const (
	KindAudio Kind = iota
	KindAudioVideo
)

// Device is the acquired microphone and optional camera. Tracks are shared
// read-only with the pipeline; only the owner calls Stop.
type Device struct {
	Facing  domain.FacingMode
	Request domain.DeviceRequest
	Audio   core.AudioTrack
	Video   core.VideoTrack

	stopOnce sync.Once
}

func (d *Device) HasVideo() bool { return d != nil && d.Video != nil }

// Stop ends every track. Safe to call more than once.
func (d *Device) Stop() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		if d.Video != nil {
			d.Video.Stop()
		}
		if d.Audio != nil {
			d.Audio.Stop()
		}
		log.Info().Str("module", "capture").Str("request", d.Request.String()).Msg("device stopped")
	})
}

// fallbackChain lists the requests tried in order for kind.
func fallbackChain(kind Kind, facing domain.FacingMode) []domain.DeviceRequest {
	audioOnly := domain.DeviceRequest{Audio: true}
	if kind == KindAudio {
		return []domain.DeviceRequest{audioOnly}
	}
	return []domain.DeviceRequest{
		{Audio: true, Video: &domain.VideoConstraint{FacingMode: facing}},
		{Audio: true, Video: &domain.VideoConstraint{}},
		audioOnly,
	}
}

// Acquire walks the fallback chain and returns the first device that has a
// microphone. Failed attempts are logged and swallowed; only the failure of
// the audio-only attempt is returned, as domain.ErrNoInputDevice.
func Acquire(ctx context.Context, md core.MediaDevices, kind Kind, facing domain.FacingMode) (*Device, error) {
	logger := log.With().Str("module", "capture").Str("facing", string(facing)).Logger()

	chain := fallbackChain(kind, facing)
	var lastErr error
	for _, req := range chain {
		stream, err := md.GetUserMedia(ctx, req)
		if err == nil && (stream == nil || stream.Audio == nil) {
			if stream != nil && stream.Video != nil {
				stream.Video.Stop()
			}
			err = errors.New("stream without audio track")
		}
		if err == nil {
			if req.Video == nil && stream.Video != nil {
				stream.Video.Stop()
				stream.Video = nil
			}
			logger.Info().Str("request", req.String()).Bool("video", stream.Video != nil).Msg("device acquired")
			return &Device{Facing: facing, Request: req, Audio: stream.Audio, Video: stream.Video}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		metrics.DeviceFallbacks.WithLabelValues(req.String()).Inc()
		logger.Warn().Err(err).Str("request", req.String()).Msg("acquire attempt failed")
		lastErr = err
	}
	return nil, &domain.DeviceError{
		Request: chain[len(chain)-1],
		Err:     fmt.Errorf("%w: %w", domain.ErrNoInputDevice, lastErr),
	}
}
