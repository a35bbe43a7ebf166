package rtc

import (
	"context"
	"maps"
	"sync"

	"github.com/pion/rtp"
	"github.com/rs/zerolog"

	"github.com/dkeye/LiveVoice/internal/codec"
	"github.com/dkeye/LiveVoice/internal/core"
)

type packetReader interface {
	ReadRTP() (*rtp.Packet, error)
}

type frameDecoder interface {
	Decode(packet []byte) ([]float32, int, error)
}

// Relay decodes one remote Opus track once and fans the samples out to
// every subscribed track at a fixed rate.
type Relay struct {
	src  packetReader
	dec  frameDecoder
	rate int

	mu     sync.RWMutex
	tracks map[uint64]*remoteTrack
	nextID uint64

	lastSeq uint16
	seen    bool

	cancel context.CancelFunc
}

func NewRelay(src packetReader, dec frameDecoder, rate int, cancel context.CancelFunc) *Relay {
	return &Relay{
		src:    src,
		dec:    dec,
		rate:   rate,
		tracks: make(map[uint64]*remoteTrack),
		cancel: cancel,
	}
}

// loop reads RTP packets from the source track and forwards them to all subscribers.
func (r *Relay) loop(ctx context.Context, logger *zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done, ending all tracks")
			r.endAll()
			return
		default:
		}
		pkt, err := r.src.ReadRTP()
		if err != nil {
			logger.Info().Err(err).Msg("relay read RTP stopped")
			r.endAll()
			return
		}
		r.forward(pkt, logger)
	}
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	if r.seen && pkt.SequenceNumber != r.lastSeq+1 {
		logger.Debug().Uint16("expected", r.lastSeq+1).Uint16("got", pkt.SequenceNumber).Msg("rtp sequence gap")
	}
	r.seen = true
	r.lastSeq = pkt.SequenceNumber

	if len(pkt.Payload) == 0 {
		return
	}
	samples, rate, err := r.dec.Decode(pkt.Payload)
	if err != nil {
		logger.Warn().Err(err).Msg("relay decode")
		return
	}
	samples = codec.Resample(samples, rate, r.rate)

	snapshot := make(map[uint64]*remoteTrack, len(r.tracks))
	r.mu.RLock()
	maps.Copy(snapshot, r.tracks)
	r.mu.RUnlock()

	dirty := make([]uint64, 0, len(snapshot))
	for id, t := range snapshot {
		switch t.State() {
		case core.TrackStateEnded:
			dirty = append(dirty, id)
		case core.TrackStateMuted:
		case core.TrackStateLive:
			t.push(samples)
		}
	}

	// Cleanup is done outside the RLock.
	if len(dirty) > 0 {
		r.cleanupEnded(dirty)
	}
}

func (r *Relay) cleanupEnded(dirty []uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range dirty {
		delete(r.tracks, id)
	}
}

func (r *Relay) endAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.tracks {
		t.Stop()
		delete(r.tracks, id)
	}
}

// Subscribe returns a new live track fed by this relay.
func (r *Relay) Subscribe(depth int) core.AudioTrack {
	t := newRemoteTrack(r.rate, depth)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.tracks[r.nextID] = t
	return t
}

func (r *Relay) subscribers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tracks)
}
