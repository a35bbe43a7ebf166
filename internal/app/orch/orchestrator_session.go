package orch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/LiveVoice/internal/app"
	"github.com/dkeye/LiveVoice/internal/capture"
	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/domain"
	"github.com/dkeye/LiveVoice/internal/metrics"
)

// liveSession is the device and stream started together by one Start.
type liveSession struct {
	gen    uint64
	dev    *capture.Device
	conn   core.StreamConnection
	cancel context.CancelFunc
	done   chan struct{}

	// mu orders inbound dispatch against teardown; nothing reaches the
	// scheduler once closed is set.
	mu     sync.Mutex
	closed bool
}

// Start acquires the device and opens the session concurrently, then wires
// capture to the session and the session to playback. A Start while live
// is a no-op.
func (o *Orchestrator) Start(ctx context.Context, facing domain.FacingMode) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()
	return o.start(ctx, facing)
}

func (o *Orchestrator) start(ctx context.Context, facing domain.FacingMode) error {
	o.mu.Lock()
	if o.live != nil {
		o.mu.Unlock()
		return nil
	}
	if facing == "" {
		facing = o.facing
	}
	o.facing = facing
	o.state = domain.StateConnecting
	o.lastErr = nil
	o.slow = false
	o.mu.Unlock()
	o.notify()

	logger := log.With().Str("module", "orch").Str("facing", string(facing)).Logger()

	var (
		dev  *capture.Device
		conn core.StreamConnection
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := capture.Acquire(gctx, o.Devices, o.Options.Kind, facing)
		dev = d
		return err
	})
	g.Go(func() error {
		c, err := o.Dialer.Dial(gctx, o.Options.Session)
		conn = c
		return err
	})
	if err := g.Wait(); err != nil {
		dev.Stop()
		if conn != nil {
			conn.Close()
		}
		metrics.Sessions.WithLabelValues("error").Inc()
		logger.Error().Err(err).Msg("start failed")
		o.mu.Lock()
		o.state = domain.StateError
		o.lastErr = err
		o.mu.Unlock()
		o.notify()
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.gen++
	l := &liveSession{gen: o.gen, dev: dev, conn: conn, cancel: cancel, done: make(chan struct{})}
	dev.Audio.SetEnabled(!o.micMuted)
	if dev.Video != nil {
		dev.Video.SetEnabled(!o.videoOff)
	}
	o.live = l
	o.state = domain.StateOpen
	o.mu.Unlock()

	pipe := capture.NewPipeline(dev, o.policed(conn), o.Options.Capture, func(kind string, err error) {
		logger.Debug().Err(err).Str("kind", kind).Msg("frame dropped")
	})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := pipe.Run(runCtx); err != nil {
			go o.endSession(l.gen, err)
		}
	}()
	go func() {
		defer wg.Done()
		o.dispatch(runCtx, l)
	}()
	go func() {
		wg.Wait()
		close(l.done)
	}()

	metrics.Sessions.WithLabelValues("open").Inc()
	metrics.SessionOpen.Set(1)
	logger.Info().Str("session", string(conn.ID())).Bool("video", dev.HasVideo()).Msg("session started")
	o.notify()
	return nil
}

// dispatch feeds inbound events to the scheduler in arrival order.
func (o *Orchestrator) dispatch(ctx context.Context, l *liveSession) {
	events := l.conn.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !o.handleEvent(l, ev) {
				return
			}
		}
	}
}

func (o *Orchestrator) handleEvent(l *liveSession, ev core.Event) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		metrics.ChunksDropped.WithLabelValues("closed").Inc()
		return false
	}
	switch ev.Kind {
	case core.EventAudioChunk:
		// decode failures are logged by the scheduler and skipped
		_, _ = o.Scheduler.Schedule(ev.Chunk)
	case core.EventInterrupted:
		o.Scheduler.Interrupt()
	case core.EventClosed:
		go o.endSession(l.gen, nil)
		return false
	case core.EventError:
		go o.endSession(l.gen, ev.Err)
		return false
	}
	return true
}

// endSession tears down generation gen after the remote side or the
// microphone ended it. err is nil for a clean close.
func (o *Orchestrator) endSession(gen uint64, err error) {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	o.mu.Lock()
	current := o.live != nil && o.live.gen == gen
	o.mu.Unlock()
	if !current {
		return
	}
	o.teardown()

	o.mu.Lock()
	if err != nil {
		o.state = domain.StateError
		o.lastErr = err
	} else {
		o.state = domain.StateClosed
	}
	o.mu.Unlock()

	if err != nil {
		metrics.Sessions.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("module", "orch").Msg("session ended")
	} else {
		metrics.Sessions.WithLabelValues("closed").Inc()
		log.Info().Str("module", "orch").Msg("session closed by remote")
	}
	o.notify()
}

// Stop tears the session down without restarting. Safe to call at any time.
func (o *Orchestrator) Stop() {
	o.opMu.Lock()
	defer o.opMu.Unlock()
	if !o.teardown() {
		return
	}
	o.mu.Lock()
	o.state = domain.StateClosed
	o.lastErr = nil
	o.mu.Unlock()
	metrics.Sessions.WithLabelValues("closed").Inc()
	o.notify()
}

// SwitchDevice tears down, waits for the OS to release the camera, and
// starts again. An empty facing flips the current one.
func (o *Orchestrator) SwitchDevice(ctx context.Context, facing domain.FacingMode) error {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	o.mu.Lock()
	if facing == "" {
		facing = o.facing.Opposite()
	}
	o.mu.Unlock()

	log.Info().Str("module", "orch").Str("facing", string(facing)).Msg("switching device")
	o.teardown()
	if err := o.settle(ctx, o.Options.SettleDelay); err != nil {
		o.mu.Lock()
		o.state = domain.StateClosed
		o.mu.Unlock()
		o.notify()
		return err
	}
	return o.start(ctx, facing)
}

// teardown releases the live session in order: capture and dispatch,
// playback, device tracks, stream. It reports whether anything was live.
func (o *Orchestrator) teardown() bool {
	o.mu.Lock()
	l := o.live
	o.live = nil
	o.slow = false
	o.mu.Unlock()
	if l == nil {
		return false
	}

	l.cancel()
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	stopped := o.Scheduler.Interrupt()
	l.dev.Stop()
	l.conn.Close()
	<-l.done

	metrics.SessionOpen.Set(0)
	log.Info().Str("module", "orch").Str("session", string(l.conn.ID())).Int("stopped_sources", stopped).Msg("session torn down")
	return true
}

// policed counts consecutive refusals per kind and asks the policy what
// they mean.
func (o *Orchestrator) policed(next core.MediaSender) core.MediaSender {
	return &policedSender{o: o, next: next}
}

type policedSender struct {
	o     *Orchestrator
	next  core.MediaSender
	audio atomic.Int64
	video atomic.Int64
}

func (s *policedSender) Send(blob domain.MediaBlob) error {
	kind, counter := capture.KindAudioLabel, &s.audio
	if strings.HasPrefix(blob.MimeType, "image/") {
		kind, counter = capture.KindVideoLabel, &s.video
	}
	err := s.next.Send(blob)
	if err == nil {
		if counter.Swap(0) > 0 {
			s.o.setSlow(false)
		}
		return nil
	}
	if !errors.Is(err, domain.ErrBackpressure) || s.o.Policy == nil {
		return err
	}
	n := counter.Add(1)
	if s.o.Policy.OnBackPressure(kind, int(n)) == app.MarkSlow {
		s.o.setSlow(true)
	}
	return err
}

func (o *Orchestrator) setSlow(slow bool) {
	o.mu.Lock()
	changed := o.slow != slow
	o.slow = slow
	o.mu.Unlock()
	if !changed {
		return
	}
	if slow {
		log.Warn().Str("module", "orch").Msg("uplink slow, dropping frames")
	}
	o.notify()
}
