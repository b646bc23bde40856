package app

import (
	"sort"
	"sync"

	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomManagerImpl is one room namespace, keyed by the client room id. keyFn
// derives the id stored on the room itself, e.g. domain.VideoRoomID for calls.
type RoomManagerImpl struct {
	name  string
	keyFn func(domain.RoomID) domain.RoomID
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
}

func NewRoomManager() core.RoomManager {
	return newRoomManager("rooms", func(id domain.RoomID) domain.RoomID { return id })
}

func NewVideoRoomManager() core.RoomManager {
	return newRoomManager("video_rooms", domain.VideoRoomID)
}

func newRoomManager(name string, keyFn func(domain.RoomID) domain.RoomID) *RoomManagerImpl {
	return &RoomManagerImpl{name: name, keyFn: keyFn, rooms: make(map[domain.RoomID]core.RoomService)}
}

func (f *RoomManagerImpl) Get(id domain.RoomID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

// Join creates the room on first use. The bool reports whether ms was newly added.
func (f *RoomManagerImpl) Join(id domain.RoomID, ms core.MemberSession, meta domain.Member) (core.RoomService, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		room = core.NewRoomService(&domain.Room{ID: f.keyFn(id)})
		f.rooms[id] = room
		log.Debug().Str("module", "app.rooms").Str("namespace", f.name).Str("room", string(id)).Msg("room created")
	}
	return room, room.AddMember(ms, meta)
}

// Leave drops the room once its last member is gone.
func (f *RoomManagerImpl) Leave(id domain.RoomID, sid core.SessionID) (core.RoomService, domain.Member, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return nil, domain.Member{}, false
	}
	meta, removed := room.RemoveMember(sid)
	if room.MemberCount() == 0 {
		delete(f.rooms, id)
		log.Debug().Str("module", "app.rooms").Str("namespace", f.name).Str("room", string(id)).Msg("room dropped")
	}
	return room, meta, removed
}

// List reports rooms by client room id, sorted.
func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for id, r := range f.rooms {
		out = append(out, core.RoomInfo{ID: id, MemberCount: r.MemberCount()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StopRoom forgets the room without notifying its members.
func (f *RoomManagerImpl) StopRoom(id domain.RoomID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[id]; ok {
		delete(f.rooms, id)
		log.Debug().Str("module", "app.rooms").Str("namespace", f.name).Str("room", string(id)).Msg("room stopped")
	}
}
