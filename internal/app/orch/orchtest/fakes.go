// Package orchtest provides in-memory devices and sessions for driving an
// orchestrator in tests.
package orchtest

import (
	"context"
	"image"
	"image/color"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/domain"
)

// Mic produces silent blocks at 16 kHz until stopped.
type Mic struct {
	core.TrackFlag
	stop chan struct{}
	once sync.Once
}

func NewMic() *Mic { return &Mic{stop: make(chan struct{})} }

func (m *Mic) SampleRate() int { return 16000 }

func (m *Mic) ReadSamples(ctx context.Context, dst []float32) (int, error) {
	select {
	case <-m.stop:
		return 0, io.EOF
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(time.Millisecond):
	}
	clear(dst)
	return len(dst), nil
}

func (m *Mic) Stop() {
	m.MarkEnded()
	m.once.Do(func() { close(m.stop) })
}

// Cam always has a small frame.
type Cam struct {
	core.TrackFlag
}

func (c *Cam) Snapshot() (image.Image, bool) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(0, 0, color.White)
	return img, true
}

func (c *Cam) Stop() { c.MarkEnded() }

// Devices hands out a fresh Mic, and a Cam when Camera is set.
type Devices struct {
	Camera bool
	NoMic  bool

	mu      sync.Mutex
	reqs    []domain.DeviceRequest
	streams []*core.MediaStream
}

func (d *Devices) GetUserMedia(_ context.Context, req domain.DeviceRequest) (*core.MediaStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reqs = append(d.reqs, req)
	if d.NoMic {
		return nil, domain.ErrPermissionDenied
	}
	if req.Video != nil && !d.Camera {
		return nil, domain.ErrNoVideoDevice
	}
	s := &core.MediaStream{Audio: NewMic()}
	if req.Video != nil {
		s.Video = &Cam{}
	}
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *Devices) Streams() []*core.MediaStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*core.MediaStream(nil), d.streams...)
}

func (d *Devices) LastStream() *core.MediaStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streams[len(d.streams)-1]
}

func (d *Devices) Requests() []domain.DeviceRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.DeviceRequest(nil), d.reqs...)
}

// Conn is an open session whose inbound events are pushed by the test.
type Conn struct {
	inbound chan core.Event

	id      domain.SessionID
	sendErr error
	sent    atomic.Int64
	closed  atomic.Bool
}

func NewConn() *Conn {
	return &Conn{id: domain.NewSessionID(), inbound: make(chan core.Event, 16)}
}

func (c *Conn) Send(domain.MediaBlob) error {
	if c.closed.Load() {
		return domain.ErrSessionClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent.Add(1)
	return nil
}

func (c *Conn) ID() domain.SessionID { return c.id }

func (c *Conn) State() domain.SessionState {
	if c.closed.Load() {
		return domain.StateClosed
	}
	return domain.StateOpen
}

func (c *Conn) Events() <-chan core.Event { return c.inbound }

func (c *Conn) Close() { c.closed.Store(true) }

// Push delivers an inbound event.
func (c *Conn) Push(ev core.Event) { c.inbound <- ev }

func (c *Conn) Sent() int64  { return c.sent.Load() }
func (c *Conn) Closed() bool { return c.closed.Load() }

// Dialer opens a Conn per call, or fails with Err.
type Dialer struct {
	Err     error
	SendErr error

	mu    sync.Mutex
	conns []*Conn
	cfgs  []domain.SessionConfig
}

func (d *Dialer) Dial(_ context.Context, cfg domain.SessionConfig) (core.StreamConnection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfgs = append(d.cfgs, cfg)
	if d.Err != nil {
		return nil, d.Err
	}
	c := NewConn()
	c.sendErr = d.SendErr
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *Dialer) Conn(i int) *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func (d *Dialer) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *Dialer) Configs() []domain.SessionConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.SessionConfig(nil), d.cfgs...)
}

// Synth returns PCM for any non-empty text.
type Synth struct {
	PCM []byte
}

func (s Synth) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	if text == "" || s.PCM == nil {
		return nil, nil
	}
	return s.PCM, nil
}
