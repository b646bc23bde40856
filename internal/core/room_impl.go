package core

import (
	"sort"
	"sync"

	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/rs/zerolog/log"
)

type roomMember struct {
	session MemberSession
	meta    domain.Member
}

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room  *domain.Room
	mu    sync.RWMutex
	bySID map[SessionID]roomMember
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room:  room,
		bySID: make(map[SessionID]roomMember),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) Has(sid SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bySID[sid]
	return ok
}

func (r *roomImpl) IDs() []SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionID, 0, len(r.bySID))
	for sid := range r.bySID {
		out = append(out, sid)
	}
	return out
}

// AddMember reports false when sid was already a member; the stored meta is refreshed either way.
func (r *roomImpl) AddMember(ms MemberSession, meta domain.Member) bool {
	sid := ms.ID()
	r.mu.Lock()
	defer r.mu.Unlock()
	_, existed := r.bySID[sid]
	r.bySID[sid] = roomMember{session: ms, meta: meta}
	if !existed {
		log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Msg("member added")
	}
	return !existed
}

func (r *roomImpl) RemoveMember(sid SessionID) (domain.Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.bySID[sid]
	if !ok {
		return domain.Member{}, false
	}
	delete(r.bySID, sid)
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Msg("member removed")
	return m.meta, true
}

func (r *roomImpl) Broadcast(from SessionID, data Frame) PublishResult {
	return r.publish(from, true, data)
}

func (r *roomImpl) BroadcastAll(data Frame) PublishResult {
	return r.publish("", false, data)
}

func (r *roomImpl) publish(from SessionID, skipFrom bool, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for sid, m := range r.bySID {
		if skipFrom && sid == from {
			continue
		}
		if err := m.session.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.room.ID)).Str("from", string(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.bySID))
	for _, m := range r.bySID {
		out = append(out, MemberDTO{ID: m.meta.User.ID, Username: m.meta.User.Username})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
