package rtc

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveVoice/internal/codec"
	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/domain"
)

const (
	// DefaultRate is the rate remote tracks are delivered at.
	DefaultRate  = 48000
	defaultDepth = 50 // one second of 20 ms frames
)

// remoteReader drops the interceptor attributes of TrackRemote.ReadRTP.
type remoteReader struct {
	track *webrtc.TrackRemote
}

func (r remoteReader) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := r.track.ReadRTP()
	return pkt, err
}

// RelayManager keeps one relay per publishing client and serves the most
// recent publisher as a microphone.
type RelayManager struct {
	Rate  int
	Depth int

	mu     sync.RWMutex
	relays map[domain.ClientID]*Relay
	order  []domain.ClientID
}

func NewRelayManager() *RelayManager {
	return &RelayManager{
		Rate:   DefaultRate,
		Depth:  defaultDepth,
		relays: make(map[domain.ClientID]*Relay),
	}
}

// StartRelay starts relaying an Opus audio track of client id. Other
// tracks are ignored.
func (m *RelayManager) StartRelay(ctx context.Context, id domain.ClientID, track *webrtc.TrackRemote) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		log.Info().Str("module", "relay").Str("peer", string(id)).Str("kind", track.Kind().String()).Msg("ignoring non-audio track")
		return
	}
	if mime := track.Codec().MimeType; mime != webrtc.MimeTypeOpus {
		log.Warn().Str("module", "relay").Str("peer", string(id)).Str("codec", mime).Msg("ignoring non-opus track")
		return
	}
	m.start(ctx, id, remoteReader{track: track}, codec.NewOpusDecoder())
}

func (m *RelayManager) start(ctx context.Context, id domain.ClientID, src packetReader, dec frameDecoder) *Relay {
	logger := log.With().
		Str("module", "relay").
		Str("peer", string(id)).
		Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(src, dec, m.Rate, cancel)

	m.mu.Lock()
	if old, ok := m.relays[id]; ok {
		logger.Info().Msg("replacing existing relay for peer")
		old.endAll()
		if old.cancel != nil {
			old.cancel()
		}
	}
	m.relays[id] = relay
	m.order = append(slices.DeleteFunc(m.order, func(c domain.ClientID) bool { return c == id }), id)
	m.mu.Unlock()

	logger.Info().Msg("starting relay loop")

	go relay.loop(relayCtx, &logger)
	return relay
}

// StopRelay stops a relay and removes it from the manager.
func (m *RelayManager) StopRelay(id domain.ClientID) {
	m.mu.Lock()
	relay, ok := m.relays[id]
	if ok {
		delete(m.relays, id)
		m.order = slices.DeleteFunc(m.order, func(c domain.ClientID) bool { return c == id })
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	relay.endAll()
	if relay.cancel != nil {
		relay.cancel()
	}
}

// HasRelay reports whether client id is publishing.
func (m *RelayManager) HasRelay(id domain.ClientID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.relays[id]
	return ok
}

// GetUserMedia subscribes to the latest publisher. Remote video is not
// relayed.
func (m *RelayManager) GetUserMedia(_ context.Context, req domain.DeviceRequest) (*core.MediaStream, error) {
	if req.Video != nil {
		return nil, fmt.Errorf("%w: remote peers publish audio only", domain.ErrNoVideoDevice)
	}
	m.mu.RLock()
	var relay *Relay
	if n := len(m.order); n > 0 {
		relay = m.relays[m.order[n-1]]
	}
	m.mu.RUnlock()
	if relay == nil {
		return nil, fmt.Errorf("%w: no remote microphone connected", domain.ErrNoInputDevice)
	}
	return &core.MediaStream{Audio: relay.Subscribe(m.Depth)}, nil
}
