package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/WatchParty/internal/core"
)

type handlerFunc func(ctl *SignalWSController, sid core.SessionID, c *wsSignalConn, data []byte)

var handlers = map[core.EventType]handlerFunc{
	core.EventJoinRoom:          (*SignalWSController).handleJoinRoom,
	core.EventLeaveRoom:         (*SignalWSController).handleLeaveRoom,
	core.EventSendMessageToRoom: (*SignalWSController).handleSendMessage,
	core.EventVideoTriggered:    (*SignalWSController).handleVideoTriggered,
	core.EventJoinVideoRoom:     (*SignalWSController).handleJoinVideoRoom,
	core.EventLeaveVideoRoom:    (*SignalWSController).handleLeaveVideoRoom,
	core.EventOffer:             (*SignalWSController).handleOffer,
	core.EventAnswer:            (*SignalWSController).handleAnswer,
	core.EventICECandidate:      (*SignalWSController).handleICECandidate,
	core.EventPing:              (*SignalWSController).handlePing,
	core.EventWhoAmI:            (*SignalWSController).handleWhoAmI,
}

func (ctl *SignalWSController) writePump(ctx context.Context, c *wsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			c.Close()
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping failed")
				c.Close()
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *wsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Orch.OnDisconnect(sid)
		cancel()
		c.Close()
	}()

	if ctl.opts.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.opts.ReadLimit)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
			ctl.handleSignal(sid, c, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(sid core.SessionID, c *wsSignalConn, data []byte) {
	var env core.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		return
	}

	h, ok := handlers[env.Type]
	if !ok {
		log.Warn().Str("module", "signal").Str("type", string(env.Type)).Msg("unknown signal")
		ctl.sendJSON(c, core.ErrorEvent{Type: core.EventError, Error: "unknown_event"})
		return
	}
	ctl.Orch.Metrics.Event(string(env.Type))
	if !allow(c, env.Type) {
		ctl.Orch.Metrics.Drop("rate_limited", 1)
		log.Debug().Str("module", "signal").Str("sid", string(sid)).Str("type", string(env.Type)).Msg("rate limited")
		return
	}
	h(ctl, sid, c, data)
}

// decode parses an event payload; malformed payloads are logged and the event is skipped.
func decode[T any](sid core.SessionID, data []byte) (T, bool) {
	var p T
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad payload")
		return p, false
	}
	return p, true
}

func (ctl *SignalWSController) sendJSON(c *wsSignalConn, v any) {
	b, err := core.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
