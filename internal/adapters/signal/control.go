package signal

import (
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/domain"
)

type pongEvent struct {
	Type core.EventType `json:"type"`
}

type whoAmIEvent struct {
	Type       core.EventType     `json:"type"`
	ID         core.SessionID     `json:"id"`
	Username   string             `json:"username"`
	Rooms      []domain.RoomID    `json:"rooms"`
	VideoRooms []domain.RoomID    `json:"videoRooms"`
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

func (ctl *SignalWSController) handlePing(_ core.SessionID, c *wsSignalConn, _ []byte) {
	ctl.sendJSON(c, pongEvent{Type: core.EventPong})
}

func (ctl *SignalWSController) handleWhoAmI(sid core.SessionID, c *wsSignalConn, _ []byte) {
	snap, ok := ctl.Orch.Registry.Snapshot(sid)
	if !ok {
		return
	}
	rooms, videoRooms := snap.Rooms, snap.VideoRooms
	if rooms == nil {
		rooms = []domain.RoomID{}
	}
	if videoRooms == nil {
		videoRooms = []domain.RoomID{}
	}
	ctl.sendJSON(c, whoAmIEvent{
		Type:       core.EventWhoAmI,
		ID:         sid,
		Username:   snap.User.Username,
		Rooms:      rooms,
		VideoRooms: videoRooms,
		ICEServers: ctl.opts.ICEServers,
	})
}
