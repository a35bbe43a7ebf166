package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/LiveVoice/internal/domain"
)

func (ctl *SignalWSController) handleRename(
	id domain.ClientID,
	conn *WsSignalConn,
	data []byte,
) {
	type renamePayload struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	var p renamePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad rename payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	if err := ctl.Orch.Registry.UpdateName(id, p.Name); err != nil {
		ctl.sendError(conn, "invalid_name")
		return
	}
	log.Info().Str("module", "signal").Str("client", string(id)).Str("name", p.Name).Msg("rename")
	ctl.handleWhoAmI(id, conn)
}

func (ctl *SignalWSController) handleWhoAmI(
	id domain.ClientID,
	conn *WsSignalConn,
) {
	client := ctl.Orch.Registry.GetOrCreateClient(id)
	_, publishing := ctl.Orch.Registry.Media(id)

	resp := struct {
		Type       string          `json:"type"`
		ID         domain.ClientID `json:"id"`
		Name       string          `json:"name"`
		Publishing bool            `json:"publishing"`
	}{
		Type:       "whoami",
		ID:         client.ID,
		Name:       client.Name,
		Publishing: publishing,
	}
	ctl.sendJSON(conn, resp)
}
