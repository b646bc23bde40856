package signal

import (
	"github.com/dkeye/WatchParty/internal/core"
)

func (ctl *SignalWSController) handleJoinRoom(sid core.SessionID, _ *wsSignalConn, data []byte) {
	req, ok := decode[core.JoinRoomRequest](sid, data)
	if !ok {
		return
	}
	ctl.Orch.JoinRoom(sid, req)
}

func (ctl *SignalWSController) handleLeaveRoom(sid core.SessionID, _ *wsSignalConn, data []byte) {
	req, ok := decode[core.LeaveRoomRequest](sid, data)
	if !ok {
		return
	}
	ctl.Orch.LeaveRoom(sid, req.RoomID)
}

func (ctl *SignalWSController) handleSendMessage(sid core.SessionID, _ *wsSignalConn, data []byte) {
	req, ok := decode[core.RoomMessageRequest](sid, data)
	if !ok {
		return
	}
	ctl.Orch.SendMessageToRoom(sid, req)
}
