package core

import (
	"github.com/dkeye/WatchParty/internal/domain"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []SessionID
}

// Merge folds another result into r.
func (r *PublishResult) Merge(o PublishResult) {
	r.SendTo += o.SendTo
	r.Dropped = append(r.Dropped, o.Dropped...)
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO
	Has(sid SessionID) bool
	IDs() []SessionID

	AddMember(ms MemberSession, meta domain.Member) bool
	RemoveMember(sid SessionID) (domain.Member, bool)

	// Broadcast sends to every member except from.
	Broadcast(from SessionID, data Frame) PublishResult
	// BroadcastAll sends to every member.
	BroadcastAll(data Frame) PublishResult
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"client_count"`
}

// RoomManager owns one room namespace. Rooms are created on first join and
// dropped when the last member leaves.
type RoomManager interface {
	Get(id domain.RoomID) (RoomService, bool)
	Join(id domain.RoomID, ms MemberSession, meta domain.Member) (RoomService, bool)
	Leave(id domain.RoomID, sid SessionID) (RoomService, domain.Member, bool)
	List() []RoomInfo
	StopRoom(id domain.RoomID)
}
