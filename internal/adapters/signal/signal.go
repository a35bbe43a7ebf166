// Package signal serves the websocket control channel: WebRTC signaling
// for remote microphones, session commands and status pushes.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveVoice/internal/adapters/rtc"
	"github.com/dkeye/LiveVoice/internal/app/orch"
	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/domain"
)

var ErrConnClosed = errors.New("connection closed")

const (
	defaultReadLimit  = 32 << 10
	defaultPingPeriod = 54 * time.Second
	sendQueue         = 32
)

type SignalWSController struct {
	Orch       *orch.Orchestrator
	Limiter    *CommandRateLimiter
	ReadLimit  int64
	PingPeriod time.Duration
	// NewPeer creates the peer connection answering an offer.
	NewPeer func(id domain.ClientID) (core.MediaConnection, error)
}

// NewSignalWSController subscribes the controller to status changes so
// every connected client sees them.
func NewSignalWSController(o *orch.Orchestrator, limiter *CommandRateLimiter) *SignalWSController {
	ctl := &SignalWSController{
		Orch:       o,
		Limiter:    limiter,
		ReadLimit:  defaultReadLimit,
		PingPeriod: defaultPingPeriod,
		NewPeer: func(id domain.ClientID) (core.MediaConnection, error) {
			peer, err := rtc.NewPeer(rtc.DefaultWebRTCConfig(), id)
			if err != nil {
				return nil, err
			}
			return peer, nil
		},
	}
	o.Subscribe(ctl.BroadcastStatus)
	return ctl
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return domain.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

type statusMessage struct {
	Type   string      `json:"type"`
	Status orch.Status `json:"status"`
}

// BroadcastStatus pushes st to every connected client.
func (ctl *SignalWSController) BroadcastStatus(st orch.Status) {
	b, err := json.Marshal(statusMessage{Type: "status", Status: st})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("marshal status")
		return
	}
	for _, snap := range ctl.Orch.Registry.Signals() {
		if err := snap.Signal.TrySend(b); err != nil {
			log.Debug().Err(err).Str("module", "signal").Str("client", string(snap.ID)).Msg("status push dropped")
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	id := domain.ClientID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("client", string(id)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, sendQueue),
	}

	ctl.Orch.Registry.GetOrCreateClient(id)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.BindSignal(id, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, id, conn)
}
