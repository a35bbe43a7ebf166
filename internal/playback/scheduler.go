// Package playback schedules decoded speech on the output audio clock.
package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/domain"
	"github.com/dkeye/LiveVoice/internal/metrics"
)

// ChunkDecoder turns one inbound chunk into a playable buffer.
type ChunkDecoder interface {
	Decode(domain.InboundAudioChunk) (*core.Buffer, error)
}

// Slot is where a chunk landed on the output clock.
type Slot struct {
	Seq   uint64
	Start time.Duration
	End   time.Duration
}

// Scheduler plays chunks back to back in arrival order. It owns the
// cursor and the active source set; both are guarded by mu.
type Scheduler struct {
	out     core.OutputContext
	decoder ChunkDecoder
	logger  zerolog.Logger

	mu     sync.Mutex
	cursor time.Duration
	active map[uint64]core.Source
	nextID uint64
}

func NewScheduler(out core.OutputContext, decoder ChunkDecoder) *Scheduler {
	return &Scheduler{
		out:     out,
		decoder: decoder,
		logger:  log.With().Str("module", "playback").Logger(),
		active:  make(map[uint64]core.Source),
	}
}

// Schedule decodes a chunk and queues it right after the previous one.
// A chunk that fails to decode is dropped and leaves the cursor untouched.
func (s *Scheduler) Schedule(chunk domain.InboundAudioChunk) (Slot, error) {
	buf, err := s.decoder.Decode(chunk)
	if err != nil {
		metrics.ChunksDropped.WithLabelValues("decode").Inc()
		s.logger.Warn().Err(err).Uint64("seq", chunk.Seq).Int("bytes", len(chunk.Data)).Msg("dropping undecodable chunk")
		return Slot{}, err
	}
	slot, err := s.ScheduleBuffer(buf)
	slot.Seq = chunk.Seq
	return slot, err
}

// ScheduleBuffer queues an already decoded buffer.
func (s *Scheduler) ScheduleBuffer(buf *core.Buffer) (Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	startAt := max(s.cursor, s.out.Now(), 0)
	id := s.nextID
	s.nextID++

	src, err := s.out.Start(buf, startAt, func() { s.ended(id) })
	if err != nil {
		metrics.ChunksDropped.WithLabelValues("output").Inc()
		return Slot{}, fmt.Errorf("start buffer: %w", err)
	}
	s.active[id] = src
	s.cursor = startAt + buf.Duration()
	metrics.ChunksScheduled.Inc()

	return Slot{Start: startAt, End: s.cursor}, nil
}

func (s *Scheduler) ended(id uint64) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

// Interrupt silences everything in flight and forgets the cursor.
// It returns how many sources were stopped; zero means it was a no-op.
func (s *Scheduler) Interrupt() int {
	s.mu.Lock()
	stopped := s.active
	s.active = make(map[uint64]core.Source)
	s.cursor = 0
	s.mu.Unlock()

	for _, src := range stopped {
		src.Stop()
	}
	if len(stopped) > 0 {
		metrics.Interruptions.Inc()
		s.logger.Info().Int("stopped", len(stopped)).Msg("playback interrupted")
	}
	return len(stopped)
}

// Active is the number of scheduled sources that have not ended.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *Scheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
