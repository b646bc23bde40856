package orch

import (
	"encoding/json"

	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/rs/zerolog/log"
)

// VideoTriggered relays a playback action. newVideo goes to every member,
// sender included; play/pause/seek skip the sender, who already applied it.
func (o *Orchestrator) VideoTriggered(sid core.SessionID, req core.VideoTriggeredRequest) {
	if req.RoomID.Empty() || req.Action == "" {
		return
	}
	room, ok := o.Rooms.Get(req.RoomID)
	if !ok {
		return
	}
	frame, ok := encode(core.VideoActionEvent{
		Type:   core.EventVideoAction,
		Action: req.Action,
		RoomID: req.RoomID,
		Time:   req.Time,
		URL:    req.URL,
	})
	if !ok {
		return
	}
	if req.Action == core.ActionNewVideo {
		o.settle(room.BroadcastAll(frame))
		return
	}
	o.settle(room.Broadcast(sid, frame))
}

// PublishSegments pushes the complete current segment list to the room.
// Clients replace their list with each one they receive.
func (o *Orchestrator) PublishSegments(roomID domain.RoomID, urls []string) int {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return 0
	}
	if urls == nil {
		urls = []string{}
	}
	raw, err := json.Marshal(urls)
	if err != nil {
		log.Error().Err(err).Str("module", "orch.playback").Msg("marshal segments")
		return 0
	}
	frame, ok := encode(core.VideoActionEvent{
		Type:   core.EventVideoAction,
		Action: core.ActionNewVideo,
		RoomID: roomID,
		URL:    raw,
	})
	if !ok {
		return 0
	}
	res := room.BroadcastAll(frame)
	o.settle(res)
	return res.SendTo
}

// JoinVideoRoom adds sid to the call room and announces it to existing participants.
func (o *Orchestrator) JoinVideoRoom(sid core.SessionID, req core.JoinRoomRequest) {
	if req.RoomID.Empty() {
		return
	}
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return
	}
	user := o.username(sid, req.Username)

	room, added := o.VideoRooms.Join(req.RoomID, sess, domain.NewMember(user.ID, user.Username))
	o.Registry.AddVideoRoom(sid, req.RoomID)
	log.Info().Str("module", "orch.playback").Str("sid", string(sid)).Str("room", string(room.Room().ID)).Bool("added", added).Msg("join video room")
	if !added {
		return
	}
	frame, ok := encode(core.CallJoinedEvent{
		Type:     core.EventUserJoinedCall,
		UserID:   user.ID,
		Username: user.Username,
	})
	if !ok {
		return
	}
	o.settle(room.Broadcast(sid, frame))
}

// LeaveVideoRoom removes sid from the call room. Remaining participants are
// told first, then every other connection gets the same notice so clients that
// do not track call rooms still clear stale tiles. Nobody receives it twice.
func (o *Orchestrator) LeaveVideoRoom(sid core.SessionID, roomID domain.RoomID) {
	if roomID.Empty() {
		return
	}
	o.Registry.RemoveVideoRoom(sid, roomID)
	room, _, removed := o.VideoRooms.Leave(roomID, sid)
	if !removed {
		return
	}
	log.Info().Str("module", "orch.playback").Str("sid", string(sid)).Str("room", string(room.Room().ID)).Msg("leave video room")

	frame, ok := encode(core.CallLeftEvent{
		Type:   core.EventUserLeftCall,
		UserID: domain.UserID(sid),
	})
	if !ok {
		return
	}

	notified := map[core.SessionID]struct{}{sid: {}}
	res := core.PublishResult{}
	for _, id := range room.IDs() {
		notified[id] = struct{}{}
		if sess, ok := o.Registry.GetSession(id); ok {
			res.Merge(deliver(id, sess, frame))
		}
	}
	for _, snap := range o.Registry.All(notified) {
		res.Merge(deliver(snap.SID, snap.Session, frame))
	}
	o.settle(res)
}
