package orch

import (
	"fmt"

	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/rs/zerolog/log"
)

// JoinRoom adds sid to the chat room and tells the other members.
// The count in the notice is the process-wide connection count.
func (o *Orchestrator) JoinRoom(sid core.SessionID, req core.JoinRoomRequest) {
	if req.RoomID.Empty() {
		return
	}
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return
	}
	user := o.username(sid, req.Username)

	room, added := o.Rooms.Join(req.RoomID, sess, domain.NewMember(user.ID, user.Username))
	o.Registry.AddRoom(sid, req.RoomID)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(req.RoomID)).Bool("added", added).Msg("join room")
	if !added {
		return
	}

	frame, ok := encode(core.RoomJoinedEvent{
		Type:    core.EventRoomJoined,
		Message: fmt.Sprintf("%s has joined the room", user.Username),
		Count:   o.Registry.Count(),
	})
	if !ok {
		return
	}
	o.settle(room.Broadcast(sid, frame))
}

// SendMessageToRoom fans a chat message out to everyone in the room but the sender.
func (o *Orchestrator) SendMessageToRoom(sid core.SessionID, req core.RoomMessageRequest) {
	if req.RoomID.Empty() {
		return
	}
	room, ok := o.Rooms.Get(req.RoomID)
	if !ok {
		return
	}
	username := req.Username
	if username == "" {
		if snap, ok := o.Registry.Snapshot(sid); ok {
			username = snap.User.Username
		}
	}
	frame, ok := encode(core.RoomMessageEvent{
		Type:     core.EventRoomMessage,
		Message:  req.Message,
		RoomID:   req.RoomID,
		Username: username,
	})
	if !ok {
		return
	}
	o.settle(room.Broadcast(sid, frame))
}

// LeaveRoom removes sid from the chat room. Remaining members get one roomLeft notice.
func (o *Orchestrator) LeaveRoom(sid core.SessionID, roomID domain.RoomID) {
	if roomID.Empty() {
		return
	}
	o.Registry.RemoveRoom(sid, roomID)
	room, meta, removed := o.Rooms.Leave(roomID, sid)
	if !removed {
		return
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("leave room")

	frame, ok := encode(core.RoomLeftEvent{
		Type:     core.EventRoomLeft,
		UserID:   meta.User.ID,
		Username: meta.User.Username,
		Count:    room.MemberCount(),
	})
	if !ok {
		return
	}
	o.settle(room.BroadcastAll(frame))
}

// RoomView is the public state of a chat room.
type RoomView struct {
	ID      domain.RoomID    `json:"id"`
	Count   int              `json:"count"`
	Members []core.MemberDTO `json:"members"`
}

// RoomMembers returns the current members of a chat room.
func (o *Orchestrator) RoomMembers(roomID domain.RoomID) (RoomView, bool) {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return RoomView{}, false
	}
	members := room.MembersSnapshot()
	return RoomView{ID: roomID, Count: len(members), Members: members}, true
}

// username records a non-empty announced name and returns the resulting user.
func (o *Orchestrator) username(sid core.SessionID, name string) domain.User {
	if name != "" {
		u, err := o.Registry.UpdateUsername(sid, name)
		if err != nil {
			log.Debug().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("username rejected")
		}
		return u
	}
	snap, _ := o.Registry.Snapshot(sid)
	return snap.User
}
