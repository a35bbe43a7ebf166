package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveVoice/internal/domain"
	"github.com/dkeye/LiveVoice/internal/playback"
)

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(conn, resp)
}

type commandPayload struct {
	Type       string `json:"type"`
	FacingMode string `json:"facing_mode,omitempty"`
	On         *bool  `json:"on,omitempty"`
	ID         string `json:"id,omitempty"`
	Text       string `json:"text,omitempty"`
	Voice      string `json:"voice,omitempty"`
}

func (ctl *SignalWSController) parseCommand(conn *WsSignalConn, data []byte) (commandPayload, bool) {
	var p commandPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad command payload")
		ctl.sendError(conn, "bad_payload")
		return p, false
	}
	return p, true
}

func (ctl *SignalWSController) handleCommand(ctx context.Context, typ string, conn *WsSignalConn, data []byte) {
	p, ok := ctl.parseCommand(conn, data)
	if !ok {
		return
	}
	switch typ {
	case "start", "switch":
		// empty keeps the current facing on start and flips it on switch
		facing, err := domain.ParseFacingMode(p.FacingMode)
		if err != nil {
			ctl.sendError(conn, "bad_facing_mode")
			return
		}
		if p.FacingMode == "" {
			facing = ""
		}
		if typ == "start" {
			err = ctl.Orch.Start(ctx, facing)
		} else {
			err = ctl.Orch.SwitchDevice(ctx, facing)
		}
		if err != nil {
			ctl.sendError(conn, domain.UserMessage(err))
		}
	case "speak":
		res := ctl.Orch.Speak(ctx, playback.Request{ID: p.ID, Text: p.Text, Voice: p.Voice})
		ctl.sendJSON(conn, map[string]any{
			"type":   "speak",
			"id":     p.ID,
			"result": res.String(),
		})
	}
}

func (ctl *SignalWSController) handleMic(conn *WsSignalConn, data []byte) {
	p, ok := ctl.parseCommand(conn, data)
	if !ok {
		return
	}
	if p.On == nil {
		ctl.sendError(conn, "bad_payload")
		return
	}
	ctl.Orch.SetMicMuted(!*p.On)
}

func (ctl *SignalWSController) handleVideo(conn *WsSignalConn, data []byte) {
	p, ok := ctl.parseCommand(conn, data)
	if !ok {
		return
	}
	if p.On == nil {
		ctl.sendError(conn, "bad_payload")
		return
	}
	if err := ctl.Orch.SetVideoEnabled(*p.On); err != nil {
		ctl.sendError(conn, domain.UserMessage(err))
	}
}
