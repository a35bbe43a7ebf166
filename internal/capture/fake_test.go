package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/domain"
)

// toneTrack yields a constant value forever at rate.
type toneTrack struct {
	core.TrackFlag
	rate  int
	value float32
	limit int // total samples before EOF; 0 means endless

	mu   sync.Mutex
	read int
}

func (t *toneTrack) SampleRate() int { return t.rate }

func (t *toneTrack) ReadSamples(ctx context.Context, dst []float32) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if t.State() == core.TrackStateEnded {
		return 0, io.EOF
	}
	if t.limit == 0 {
		// Endless tracks stand in for a live microphone; keep them slow.
		time.Sleep(time.Millisecond)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(dst)
	if t.limit > 0 {
		if t.read >= t.limit {
			return 0, io.EOF
		}
		n = min(n, t.limit-t.read)
	}
	for i := range n {
		dst[i] = t.value
	}
	t.read += n
	return n, nil
}

func (t *toneTrack) Stop() { t.MarkEnded() }

type stillTrack struct {
	core.TrackFlag
	img   image.Image
	snaps atomic.Int32
}

func (t *stillTrack) Snapshot() (image.Image, bool) {
	t.snaps.Add(1)
	return t.img, t.img != nil
}

func (t *stillTrack) Stop() { t.MarkEnded() }

func solidImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	return img
}

// scriptedDevices answers each request kind from a table.
type scriptedDevices struct {
	mu       sync.Mutex
	requests []domain.DeviceRequest
	answers  map[string]func() (*core.MediaStream, error)
}

func (d *scriptedDevices) GetUserMedia(_ context.Context, req domain.DeviceRequest) (*core.MediaStream, error) {
	d.mu.Lock()
	d.requests = append(d.requests, req)
	d.mu.Unlock()
	if fn, ok := d.answers[req.String()]; ok {
		return fn()
	}
	return nil, domain.ErrPermissionDenied
}

func (d *scriptedDevices) Requests() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.requests))
	for i, r := range d.requests {
		out[i] = r.String()
	}
	return out
}

// recordingSender stores every blob it accepts.
type recordingSender struct {
	mu    sync.Mutex
	blobs []domain.MediaBlob
	err   error
}

func (s *recordingSender) Send(b domain.MediaBlob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.blobs = append(s.blobs, b)
	return nil
}

func (s *recordingSender) ByMime(prefix string) []domain.MediaBlob {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MediaBlob
	for _, b := range s.blobs {
		if len(b.MimeType) >= len(prefix) && b.MimeType[:len(prefix)] == prefix {
			out = append(out, b)
		}
	}
	return out
}

var errNoCamera = errors.New("no camera")
