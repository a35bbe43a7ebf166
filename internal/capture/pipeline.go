package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/LiveVoice/internal/codec"
	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/domain"
	"github.com/dkeye/LiveVoice/internal/metrics"
)

const (
	KindAudioLabel = "audio"
	KindVideoLabel = "video"
)

type Options struct {
	BlockSize     int
	InputRate     int
	VideoInterval time.Duration
	VideoScale    float64
	JPEGQuality   int
}

func DefaultOptions() Options {
	return Options{
		BlockSize:     4096,
		InputRate:     16000,
		VideoInterval: time.Second,
		VideoScale:    0.5,
		JPEGQuality:   60,
	}
}

// DropFunc is told about every frame the sender refused.
type DropFunc func(kind string, err error)

// Pipeline streams a device into a sender: fixed-size audio blocks as fast
// as the microphone fills them, and one still per video interval.
type Pipeline struct {
	dev    *Device
	out    core.MediaSender
	opts   Options
	onDrop DropFunc
	logger zerolog.Logger
}

func NewPipeline(dev *Device, out core.MediaSender, opts Options, onDrop DropFunc) *Pipeline {
	if onDrop == nil {
		onDrop = func(string, error) {}
	}
	return &Pipeline{
		dev:    dev,
		out:    out,
		opts:   opts,
		onDrop: onDrop,
		logger: log.With().Str("module", "capture.pipeline").Logger(),
	}
}

// Run blocks until ctx is done or the microphone ends. The audio and video
// loops run independently.
func (p *Pipeline) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.pumpAudio(ctx) })
	if p.dev.HasVideo() {
		g.Go(func() error { return p.pumpVideo(ctx) })
	} else {
		p.logger.Info().Msg("no video track, video capture disabled")
	}
	return g.Wait()
}

func (p *Pipeline) pumpAudio(ctx context.Context) error {
	track := p.dev.Audio
	srcRate := track.SampleRate()
	srcLen := p.opts.BlockSize
	if srcRate != p.opts.InputRate {
		srcLen = int(int64(p.opts.BlockSize) * int64(srcRate) / int64(p.opts.InputRate))
	}
	src := make([]float32, srcLen)
	p.logger.Info().Int("block", p.opts.BlockSize).Int("track_rate", srcRate).Int("rate", p.opts.InputRate).Msg("audio pump started")

	for {
		if err := readFull(ctx, track, src); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return &domain.DeviceError{Request: p.dev.Request, Err: fmt.Errorf("microphone: %w", err)}
		}
		if !track.Enabled() {
			metrics.FramesDropped.WithLabelValues(KindAudioLabel, "muted").Inc()
			continue
		}
		frame := domain.AudioFrame{
			Samples:    fitBlock(codec.Resample(src, srcRate, p.opts.InputRate), p.opts.BlockSize),
			SampleRate: p.opts.InputRate,
		}
		p.send(KindAudioLabel, codec.EncodeFrame(frame))
	}
}

func (p *Pipeline) pumpVideo(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.VideoInterval)
	defer ticker.Stop()
	p.logger.Info().Dur("interval", p.opts.VideoInterval).Msg("video pump started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.grabStill(); errors.Is(err, domain.ErrEncodingUnsupported) {
				p.logger.Warn().Err(err).Msg("video capture disabled")
				return nil
			}
		}
	}
}

// grabStill sends one frame. Only an encode failure is returned.
func (p *Pipeline) grabStill() error {
	track := p.dev.Video
	if track == nil || !track.Enabled() {
		metrics.FramesDropped.WithLabelValues(KindVideoLabel, "disabled").Inc()
		return nil
	}
	img, ok := track.Snapshot()
	if !ok {
		metrics.FramesDropped.WithLabelValues(KindVideoLabel, "no_frame").Inc()
		return nil
	}
	sample, err := EncodeStill(img, p.opts.VideoScale, p.opts.JPEGQuality)
	if err != nil {
		metrics.FramesDropped.WithLabelValues(KindVideoLabel, "encode").Inc()
		if !errors.Is(err, domain.ErrEncodingUnsupported) {
			p.logger.Warn().Err(err).Msg("encode still")
		}
		return err
	}
	p.send(KindVideoLabel, codec.EncodeVideo(sample))
	return nil
}

func (p *Pipeline) send(kind string, blob domain.MediaBlob) {
	err := p.out.Send(blob)
	switch {
	case err == nil:
		metrics.FramesSent.WithLabelValues(kind).Inc()
		return
	case errors.Is(err, domain.ErrBackpressure):
		metrics.FramesDropped.WithLabelValues(kind, "backpressure").Inc()
	case errors.Is(err, domain.ErrSessionClosed):
		metrics.FramesDropped.WithLabelValues(kind, "closed").Inc()
	default:
		metrics.FramesDropped.WithLabelValues(kind, "error").Inc()
	}
	p.onDrop(kind, err)
}

func readFull(ctx context.Context, track core.AudioTrack, dst []float32) error {
	for off := 0; off < len(dst); {
		n, err := track.ReadSamples(ctx, dst[off:])
		off += n
		if err != nil {
			return err
		}
	}
	return nil
}

// fitBlock pads with silence or truncates so every frame has size samples.
func fitBlock(in []float32, size int) []float32 {
	if len(in) == size {
		return in
	}
	out := make([]float32, size)
	copy(out, in)
	return out
}
