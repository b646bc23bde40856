package signal

import (
	"github.com/dkeye/WatchParty/internal/core"
)

func (ctl *SignalWSController) handleVideoTriggered(sid core.SessionID, _ *wsSignalConn, data []byte) {
	req, ok := decode[core.VideoTriggeredRequest](sid, data)
	if !ok {
		return
	}
	ctl.Orch.VideoTriggered(sid, req)
}

func (ctl *SignalWSController) handleJoinVideoRoom(sid core.SessionID, _ *wsSignalConn, data []byte) {
	req, ok := decode[core.JoinRoomRequest](sid, data)
	if !ok {
		return
	}
	ctl.Orch.JoinVideoRoom(sid, req)
}

func (ctl *SignalWSController) handleLeaveVideoRoom(sid core.SessionID, _ *wsSignalConn, data []byte) {
	req, ok := decode[core.LeaveRoomRequest](sid, data)
	if !ok {
		return
	}
	ctl.Orch.LeaveVideoRoom(sid, req.RoomID)
}
