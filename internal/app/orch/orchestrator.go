package orch

import (
	"context"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/LiveVoice/internal/app"
	"github.com/dkeye/LiveVoice/internal/capture"
	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/domain"
	"github.com/dkeye/LiveVoice/internal/playback"
)

// RelaySet turns published remote tracks into capture sources.
type RelaySet interface {
	StartRelay(ctx context.Context, id domain.ClientID, track *webrtc.TrackRemote)
	StopRelay(id domain.ClientID)
}

type Options struct {
	Session     domain.SessionConfig
	Capture     capture.Options
	Kind        capture.Kind
	SettleDelay time.Duration
}

// Status is what the control UI shows.
type Status struct {
	Connected  bool              `json:"connected"`
	State      string            `json:"state"`
	Error      string            `json:"error,omitempty"`
	MicOn      bool              `json:"mic_on"`
	VideoOn    bool              `json:"video_on"`
	FacingMode domain.FacingMode `json:"facing_mode"`
	HasVideo   bool              `json:"has_video"`
	Slow       bool              `json:"slow"`
	StatusText string            `json:"status_text"`
}

// Orchestrator owns the capture device and the live session as one unit.
type Orchestrator struct {
	Devices   core.MediaDevices
	Dialer    core.StreamDialer
	Output    core.OutputContext
	Scheduler *playback.Scheduler
	Player    *playback.Player
	Policy    app.Policy
	Registry  *app.Registry
	Relays    RelaySet
	Options   Options

	// settle waits between teardown and restart on a device switch.
	settle func(ctx context.Context, d time.Duration) error

	// opMu serializes Start, Stop, SwitchDevice and session ends.
	opMu sync.Mutex

	mu       sync.Mutex
	live     *liveSession
	gen      uint64
	state    domain.SessionState
	lastErr  error
	facing   domain.FacingMode
	micMuted bool
	videoOff bool
	slow     bool
	subs     []func(Status)
}

func New(devices core.MediaDevices, dialer core.StreamDialer, out core.OutputContext, decoder playback.ChunkDecoder, synth core.Synthesizer, opts Options) *Orchestrator {
	return &Orchestrator{
		Devices:   devices,
		Dialer:    dialer,
		Output:    out,
		Scheduler: playback.NewScheduler(out, decoder),
		Player:    playback.NewPlayer(out, synth, decoder, opts.Session.Voice),
		Policy:    app.SimplePolicy{},
		Registry:  app.NewRegistry(),
		Options:   opts,
		settle:    sleepCtx,
		facing:    domain.FacingUser,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statusLocked()
}

func (o *Orchestrator) statusLocked() Status {
	st := Status{
		Connected:  o.live != nil && o.state == domain.StateOpen,
		State:      o.state.String(),
		MicOn:      !o.micMuted,
		FacingMode: o.facing,
		Slow:       o.slow,
	}
	if o.live != nil {
		st.HasVideo = o.live.dev.HasVideo()
	}
	st.VideoOn = st.HasVideo && !o.videoOff
	switch {
	case o.lastErr != nil:
		st.Error = domain.UserMessage(o.lastErr)
		st.StatusText = st.Error
	case st.Connected && st.VideoOn:
		st.StatusText = domain.StatusSeeHear
	case st.Connected:
		st.StatusText = domain.StatusListening
	case o.state == domain.StateConnecting:
		st.StatusText = domain.StatusInit
	}
	return st
}

// Subscribe registers fn for every status change.
func (o *Orchestrator) Subscribe(fn func(Status)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subs = append(o.subs, fn)
}

func (o *Orchestrator) notify() {
	o.mu.Lock()
	st := o.statusLocked()
	subs := append([]func(Status){}, o.subs...)
	o.mu.Unlock()
	for _, fn := range subs {
		fn(st)
	}
}

// SetMicMuted keeps the microphone open and drops its frames before send.
func (o *Orchestrator) SetMicMuted(muted bool) {
	o.mu.Lock()
	o.micMuted = muted
	if o.live != nil {
		o.live.dev.Audio.SetEnabled(!muted)
	}
	o.mu.Unlock()
	o.notify()
}

// SetVideoEnabled toggles the camera track. Turning video on while live
// without a camera fails with domain.ErrNoCamera.
func (o *Orchestrator) SetVideoEnabled(on bool) error {
	o.mu.Lock()
	if o.live != nil {
		if on && !o.live.dev.HasVideo() {
			o.mu.Unlock()
			return domain.ErrNoCamera
		}
		if o.live.dev.Video != nil {
			o.live.dev.Video.SetEnabled(on)
		}
	}
	o.videoOff = !on
	o.mu.Unlock()
	o.notify()
	return nil
}

// Speak toggles one-shot playback of a single message.
func (o *Orchestrator) Speak(ctx context.Context, req playback.Request) playback.Result {
	return o.Player.Toggle(ctx, req)
}

// Close stops the session and any one-shot playback, then releases the
// output context.
func (o *Orchestrator) Close() error {
	o.Stop()
	o.Player.Stop()
	if o.Output == nil {
		return nil
	}
	return o.Output.Close()
}
