// Package orch routes signal-channel events between connections: room
// presence and chat, point-to-point WebRTC signaling, and playback sync.
package orch

import (
	"github.com/dkeye/WatchParty/internal/app"
	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/metrics"
	"github.com/rs/zerolog/log"
)

type Orchestrator struct {
	Registry   *app.Registry
	Rooms      core.RoomManager
	VideoRooms core.RoomManager
	Policy     app.Policy
	Metrics    *metrics.Metrics
}

// Connect registers a freshly accepted connection.
func (o *Orchestrator) Connect(sid core.SessionID, conn core.SignalConnection, cancel func()) core.MemberSession {
	sess := core.NewMemberSession(sid, conn)
	o.Registry.BindSignal(sid, sess, cancel)
	o.Metrics.ConnectionOpened()
	return sess
}

// OnDisconnect leaves every room and video room recorded for sid, then drops the record.
// Calling it for an unknown or already cleaned up sid is a no-op.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	snap, ok := o.Registry.Snapshot(sid)
	if !ok {
		return
	}
	for _, id := range snap.Rooms {
		o.LeaveRoom(sid, id)
	}
	for _, id := range snap.VideoRooms {
		o.LeaveVideoRoom(sid, id)
	}
	if _, ok := o.Registry.Unbind(sid); ok {
		o.Metrics.ConnectionClosed()
		log.Info().Str("module", "orch").Str("sid", string(sid)).
			Int("rooms", len(snap.Rooms)).Int("video_rooms", len(snap.VideoRooms)).Msg("disconnected")
	}
}

// Shutdown stops every room without notices, then cancels every connection.
// The disconnect cleanup that follows finds no rooms and stays silent.
func (o *Orchestrator) Shutdown() {
	rooms, calls := o.Rooms.List(), o.VideoRooms.List()
	for _, r := range rooms {
		o.Rooms.StopRoom(r.ID)
	}
	for _, r := range calls {
		o.VideoRooms.StopRoom(r.ID)
	}
	conns := o.Registry.All(nil)
	for _, c := range conns {
		o.Registry.Cancel(c.SID)
	}
	log.Info().Str("module", "orch").Int("rooms", len(rooms)).Int("video_rooms", len(calls)).
		Int("connections", len(conns)).Msg("shutdown")
}

// sendTo delivers v to a single connection; unknown targets are ignored.
func (o *Orchestrator) sendTo(sid core.SessionID, v any) bool {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return false
	}
	frame, ok := encode(v)
	if !ok {
		return false
	}
	res := deliver(sid, sess, frame)
	o.settle(res)
	return res.SendTo == 1
}

func deliver(sid core.SessionID, sess core.MemberSession, frame core.Frame) core.PublishResult {
	if err := sess.Signal().TrySend(frame); err != nil {
		return core.PublishResult{Dropped: []core.SessionID{sid}}
	}
	return core.PublishResult{SendTo: 1}
}

// settle applies the back-pressure policy to undelivered frames.
func (o *Orchestrator) settle(res core.PublishResult) {
	if len(res.Dropped) == 0 {
		return
	}
	o.Metrics.Drop("backpressure", len(res.Dropped))
	if o.Policy == nil {
		return
	}
	for _, sid := range res.Dropped {
		switch o.Policy.OnBackPressure(sid) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("kicking slow connection")
			o.Registry.Cancel(sid)
		case app.DropFrame, app.NoAction:
		}
	}
}

func encode(v any) (core.Frame, bool) {
	frame, err := core.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode event")
		return nil, false
	}
	return frame, true
}
