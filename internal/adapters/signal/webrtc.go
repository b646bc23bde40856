package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/WatchParty/internal/adapters/rtc"
	"github.com/dkeye/WatchParty/internal/core"
)

func (ctl *SignalWSController) handleOffer(sid core.SessionID, _ *wsSignalConn, data []byte) {
	ctl.relay(core.EventOffer, sid, data)
}

func (ctl *SignalWSController) handleAnswer(sid core.SessionID, _ *wsSignalConn, data []byte) {
	ctl.relay(core.EventAnswer, sid, data)
}

func (ctl *SignalWSController) handleICECandidate(sid core.SessionID, _ *wsSignalConn, data []byte) {
	ctl.relay(core.EventICECandidate, sid, data)
}

// relay forwards the payload untouched; it is only inspected for logging.
func (ctl *SignalWSController) relay(kind core.EventType, sid core.SessionID, data []byte) {
	req, ok := decode[core.SignalRequest](sid, data)
	if !ok {
		return
	}
	delivered := ctl.Orch.Relay(kind, sid, req)
	log.Debug().Str("module", "signal.webrtc").Str("sid", string(sid)).Str("to", string(req.To)).
		Str("type", string(kind)).Str("payload", rtc.Describe(req.Payload)).Bool("delivered", delivered).Msg("relay")
}
