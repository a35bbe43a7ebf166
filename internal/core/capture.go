package core

import (
	"context"
	"image"
	"sync/atomic"

	"github.com/dkeye/LiveVoice/internal/domain"
)

type TrackState int32

const (
	TrackStateLive TrackState = iota
	TrackStateMuted
	TrackStateEnded
)

// TrackFlag is the enabled/ended flag shared by every track implementation.
type TrackFlag struct {
	state atomic.Int32 // Zero by default (TrackStateLive)
}

func (f *TrackFlag) State() TrackState {
	return TrackState(f.state.Load())
}

func (f *TrackFlag) Enabled() bool { return f.State() == TrackStateLive }

// SetEnabled toggles between live and muted; an ended track stays ended.
func (f *TrackFlag) SetEnabled(on bool) {
	next := int32(TrackStateMuted)
	if on {
		next = int32(TrackStateLive)
	}
	for {
		cur := f.state.Load()
		if TrackState(cur) == TrackStateEnded {
			return
		}
		if f.state.CompareAndSwap(cur, next) {
			return
		}
	}
}

// MarkEnded reports whether this call ended the track.
func (f *TrackFlag) MarkEnded() bool {
	return TrackState(f.state.Swap(int32(TrackStateEnded))) != TrackStateEnded
}

// AudioTrack delivers mono float samples at SampleRate.
type AudioTrack interface {
	SampleRate() int
	// ReadSamples blocks until at least one sample is available.
	ReadSamples(ctx context.Context, dst []float32) (int, error)
	Enabled() bool
	SetEnabled(bool)
	Stop()
}

// VideoTrack exposes the latest captured frame.
type VideoTrack interface {
	Snapshot() (image.Image, bool)
	Enabled() bool
	SetEnabled(bool)
	Stop()
}

// MediaStream is the result of a successful acquisition. Video may be nil.
type MediaStream struct {
	Audio AudioTrack
	Video VideoTrack
}

// MediaDevices acquires input tracks for a request.
type MediaDevices interface {
	GetUserMedia(ctx context.Context, req domain.DeviceRequest) (*MediaStream, error)
}
