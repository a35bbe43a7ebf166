// Package live speaks the Live streaming protocol over a websocket.
package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveVoice/internal/core"
	"github.com/dkeye/LiveVoice/internal/domain"
)

const (
	defaultSendBuffer   = 64
	defaultEventBuffer  = 256
	defaultWriteTimeout = 5 * time.Second
	defaultSetupTimeout = 10 * time.Second
	readLimit           = 16 << 20
)

// Dialer opens Live sessions against one endpoint.
type Dialer struct {
	URL    string
	APIKey string
	Header http.Header
	WS     *websocket.Dialer
}

func (d *Dialer) Dial(ctx context.Context, cfg domain.SessionConfig) (core.StreamConnection, error) {
	s := newSession(cfg)
	if err := s.open(ctx, d); err != nil {
		return nil, err
	}
	return s, nil
}

// Session is one Live connection. Sends never block: a full queue
// returns domain.ErrBackpressure and the frame is dropped.
type Session struct {
	id     domain.SessionID
	cfg    domain.SessionConfig
	conn   *websocket.Conn
	logger zerolog.Logger

	send   chan []byte
	events chan core.Event
	done   chan struct{}

	mu      sync.RWMutex
	state   domain.SessionState
	failErr error

	closeOnce sync.Once
	seq       uint64

	// emitMu orders emit against the drain in Close.
	emitMu  sync.Mutex
	drained bool
}

func newSession(cfg domain.SessionConfig) *Session {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.SetupTimeout <= 0 {
		cfg.SetupTimeout = defaultSetupTimeout
	}
	id := domain.NewSessionID()
	return &Session{
		id:     id,
		cfg:    cfg,
		logger: log.With().Str("module", "live").Str("session", string(id)).Logger(),
		send:   make(chan []byte, cfg.SendBuffer),
		events: make(chan core.Event, defaultEventBuffer),
		done:   make(chan struct{}),
		state:  domain.StateIdle,
	}
}

func (s *Session) ID() domain.SessionID { return s.id }

func (s *Session) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Events() <-chan core.Event { return s.events }

func (s *Session) transition(to domain.SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.CanTransition(to) {
		return false
	}
	s.logger.Debug().Str("from", s.state.String()).Str("to", to.String()).Msg("state")
	s.state = to
	return true
}

func (s *Session) open(ctx context.Context, d *Dialer) error {
	if !s.transition(domain.StateConnecting) {
		return domain.ErrInvalidTransition
	}

	target, err := endpoint(d.URL, d.APIKey)
	if err != nil {
		return s.abort("dial", err)
	}
	ws := d.WS
	if ws == nil {
		ws = websocket.DefaultDialer
	}
	conn, resp, err := ws.DialContext(ctx, target, d.Header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (http %d)", err, resp.StatusCode)
		}
		return s.abort("dial", err)
	}
	s.conn = conn
	conn.SetReadLimit(readLimit)

	if err := s.handshake(ctx); err != nil {
		_ = conn.Close()
		return s.abort("setup", err)
	}
	if !s.transition(domain.StateOpen) {
		_ = conn.Close()
		return domain.ErrSessionClosed
	}
	s.logger.Info().Str("model", s.cfg.Model).Str("voice", s.cfg.Voice).Msg("session open")

	go s.writePump()
	go s.readPump()
	return nil
}

// handshake sends setup and waits for setupComplete.
func (s *Session) handshake(ctx context.Context) error {
	msg, err := json.Marshal(newSetup(s.cfg))
	if err != nil {
		return err
	}
	deadline := time.Now().Add(s.cfg.SetupTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	stop := context.AfterFunc(ctx, func() { _ = s.conn.SetReadDeadline(time.Now()) })
	defer stop()

	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return err
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		var m serverMessage
		if err := json.Unmarshal(data, &m); err != nil {
			s.logger.Warn().Err(err).Msg("bad message during setup")
			continue
		}
		if m.Error != nil {
			return fmt.Errorf("setup rejected: %s", m.Error.Message)
		}
		if m.SetupComplete != nil {
			return s.conn.SetReadDeadline(time.Time{})
		}
	}
}

func (s *Session) abort(op string, err error) error {
	s.transition(domain.StateError)
	s.logger.Error().Err(err).Str("op", op).Msg("session failed to open")
	close(s.events)
	return &domain.TransportError{Op: op, Err: err}
}

// Send queues a media blob for the writer.
func (s *Session) Send(blob domain.MediaBlob) error {
	msg, err := json.Marshal(clientMessage{RealtimeInput: &realtimeInput{MediaChunks: []domain.MediaBlob{blob}}})
	if err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != domain.StateOpen {
		return domain.ErrSessionClosed
	}
	select {
	case s.send <- msg:
		return nil
	default:
		return domain.ErrBackpressure
	}
}

// Close is the explicit Open->Closed transition. Pending sends and
// events still buffered are discarded; the events channel is closed once
// the reader exits.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.transition(domain.StateClosed)
		close(s.done)
		s.drainEvents()
		if s.conn == nil {
			return
		}
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = s.conn.Close()
		s.logger.Info().Msg("session closed")
	})
}

// fail moves the session to Error and drops the connection; readPump
// reports the error.
func (s *Session) fail(op string, err error) {
	s.mu.Lock()
	if s.state.CanTransition(domain.StateError) {
		s.state = domain.StateError
		s.failErr = &domain.TransportError{Op: op, Err: err}
	}
	s.mu.Unlock()
	_ = s.conn.Close()
}

func (s *Session) writePump() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				s.fail("send", err)
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Error().Err(err).Msg("writePump write error")
				s.fail("send", err)
				return
			}
		}
	}
}

// readPump is the only producer of events and closes the channel on exit.
func (s *Session) readPump() {
	defer close(s.events)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.finish(err)
			return
		}
		s.dispatch(data)
	}
}

func (s *Session) finish(readErr error) {
	switch s.State() {
	case domain.StateClosed:
		// Closed locally, nothing to report.
		return
	case domain.StateOpen:
		if websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			if s.transition(domain.StateClosed) {
				s.logger.Info().Msg("remote closed session")
				s.emit(core.Event{Kind: core.EventClosed})
				return
			}
		}
		s.fail("receive", readErr)
	}
	s.mu.RLock()
	err := s.failErr
	s.mu.RUnlock()
	if err == nil {
		err = &domain.TransportError{Op: "receive", Err: readErr}
	}
	s.logger.Error().Err(err).Msg("session error")
	s.emit(core.Event{Kind: core.EventError, Err: err})
}

func (s *Session) dispatch(data []byte) {
	var m serverMessage
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.Warn().Err(err).Msg("bad server message")
		return
	}
	if m.GoAway != nil {
		s.logger.Warn().Str("time_left", m.GoAway.TimeLeft).Msg("server going away")
	}
	if m.Error != nil {
		s.logger.Warn().Int("code", m.Error.Code).Str("status", m.Error.Status).Msg(m.Error.Message)
	}
	sc := m.ServerContent
	if sc == nil {
		return
	}
	if sc.Interrupted {
		s.emit(core.Event{Kind: core.EventInterrupted})
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				s.logger.Warn().Err(err).Msg("bad inline data")
				continue
			}
			s.seq++
			s.emit(core.Event{Kind: core.EventAudioChunk, Chunk: domain.InboundAudioChunk{
				Seq:      s.seq,
				MimeType: p.InlineData.MimeType,
				Data:     raw,
			}})
		}
	}
	if sc.TurnComplete {
		s.logger.Debug().Uint64("seq", s.seq).Msg("turn complete")
	}
}

// emit delivers in order; events for a locally closed session are dropped.
func (s *Session) emit(ev core.Event) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.drained || (s.State() == domain.StateClosed && ev.Kind != core.EventClosed) {
		return
	}
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// drainEvents drops whatever is buffered. done is already closed, so a
// blocked emit returns and releases emitMu.
func (s *Session) drainEvents() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.drained = true
	for {
		select {
		case _, ok := <-s.events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func endpoint(raw, apiKey string) (string, error) {
	if raw == "" {
		return "", errors.New("empty live url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if apiKey != "" {
		q := u.Query()
		q.Set("key", apiKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
