package orch

import (
	"context"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/domain"
)

// BindMediaHandlers routes the tracks of a publishing client into the
// relays and releases them when its peer connection closes.
func (o *Orchestrator) BindMediaHandlers(mc core.MediaConnection, id domain.ClientID) {
	mc.OnTrack(func(trackCtx context.Context, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		o.OnTrack(trackCtx, id, track)
	})
	mc.OnClosed(func() { o.OnMediaDisconnect(id, mc) })
}

// AttachMedia binds mc to the client, closing the connection it replaces.
func (o *Orchestrator) AttachMedia(id domain.ClientID, mc core.MediaConnection) {
	if old := o.Registry.BindMedia(id, mc); old != nil && old != mc {
		log.Info().Str("module", "orch").Str("peer", string(id)).Msg("replacing media connection")
		old.Close()
	}
}

// OnMediaDisconnect stops the relay of mc if it is still the client's
// current connection.
func (o *Orchestrator) OnMediaDisconnect(id domain.ClientID, mc core.MediaConnection) {
	if !o.Registry.ReleaseMedia(id, mc) {
		return
	}
	if o.Relays != nil {
		o.Relays.StopRelay(id)
	}
	log.Info().Str("module", "orch").Str("peer", string(id)).Msg("remote media disconnected")
}

// DisconnectClient drops a client whose signal connection sig went away,
// along with its peer connection and relay. A client that already
// reconnected on a newer connection is left alone.
func (o *Orchestrator) DisconnectClient(id domain.ClientID, sig core.SignalConnection) {
	mc, _ := o.Registry.Media(id)
	if !o.Registry.Unbind(id, sig) {
		return
	}
	if mc != nil {
		mc.Close()
	}
	if o.Relays != nil {
		o.Relays.StopRelay(id)
	}
}

// OnTrack is called when a new remote media track appears for a given client.
func (o *Orchestrator) OnTrack(ctx context.Context, id domain.ClientID, track *webrtc.TrackRemote) {
	if o.Relays == nil {
		return
	}
	o.Relays.StartRelay(ctx, id, track)
}
