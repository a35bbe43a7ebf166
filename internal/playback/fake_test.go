package playback

import (
	"sync"
	"time"

	"github.com/dkeye/LiveVoice/internal/core"
)

// manualOutput is an OutputContext whose clock only moves when told to.
type manualOutput struct {
	mu      sync.Mutex
	now     time.Duration
	started []startCall
	closed  bool
}

type startCall struct {
	at      time.Duration
	dur     time.Duration
	src     *fakeSource
	onEnded func()
}

type fakeSource struct {
	mu      sync.Mutex
	stopped bool
}

func (s *fakeSource) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

func (s *fakeSource) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (o *manualOutput) Now() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

func (o *manualOutput) SampleRate() int { return 24000 }

func (o *manualOutput) Start(buf *core.Buffer, at time.Duration, onEnded func()) (core.Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	src := &fakeSource{}
	o.started = append(o.started, startCall{at: at, dur: buf.Duration(), src: src, onEnded: onEnded})
	return src, nil
}

func (o *manualOutput) Close() error {
	o.closed = true
	return nil
}

func (o *manualOutput) Advance(d time.Duration) {
	o.mu.Lock()
	o.now += d
	o.mu.Unlock()
}

func (o *manualOutput) Calls() []startCall {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]startCall(nil), o.started...)
}

// End fires the natural-end callback of the i-th started buffer.
func (o *manualOutput) End(i int) {
	o.Calls()[i].onEnded()
}
