package orch

import (
	"github.com/dkeye/WatchParty/internal/core"
	"github.com/rs/zerolog/log"
)

// Relay forwards an offer, answer or ICE candidate verbatim to req.To, tagged
// with the sender. The room id is informational only. Unknown targets are
// dropped without telling the sender; a late handshake message is useless anyway.
func (o *Orchestrator) Relay(kind core.EventType, from core.SessionID, req core.SignalRequest) bool {
	if !kind.IsSignaling() || req.To == "" || len(req.Payload) == 0 {
		return false
	}
	ok := o.sendTo(req.To, core.SignalEvent{
		Type:    kind,
		Payload: req.Payload,
		From:    from,
	})
	if !ok {
		o.Metrics.Drop("unreachable_target", 1)
	}
	log.Debug().Str("module", "orch.signal").Str("type", string(kind)).Str("from", string(from)).
		Str("to", string(req.To)).Str("room", string(req.RoomID)).Bool("delivered", ok).Msg("relay")
	return ok
}
