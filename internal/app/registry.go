package app

import (
	"context"
	"sync"

	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/rs/zerolog/log"
)

// connEntry is the server-side record of one live connection.
// Memberships live here so disconnect cleanup never depends on what the client sent.
type connEntry struct {
	User       domain.User
	Session    core.MemberSession
	Cancel     context.CancelFunc
	rooms      map[domain.RoomID]struct{}
	videoRooms map[domain.RoomID]struct{}
}

// ConnSnapshot is a copy of a connection record safe to use without the registry lock.
type ConnSnapshot struct {
	SID        core.SessionID
	User       domain.User
	Session    core.MemberSession
	Rooms      []domain.RoomID
	VideoRooms []domain.RoomID
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*connEntry),
	}
}

func (r *Registry) BindSignal(sid core.SessionID, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &connEntry{
		User:       *domain.NewUser(domain.UserID(sid)),
		Session:    sess,
		Cancel:     cancel,
		rooms:      make(map[domain.RoomID]struct{}),
		videoRooms: make(map[domain.RoomID]struct{}),
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound signal")
}

// Unbind discards the record and returns its final state.
func (r *Registry) Unbind(sid core.SessionID) (ConnSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return ConnSnapshot{}, false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	return snapshot(sid, e), true
}

func (r *Registry) GetSession(sid core.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

func (r *Registry) Snapshot(sid core.SessionID) (ConnSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return ConnSnapshot{}, false
	}
	return snapshot(sid, e), true
}

// Count is the number of live connections process-wide.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// UpdateUsername keeps the previous name when the new one is invalid.
func (r *Registry) UpdateUsername(sid core.SessionID, name string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return domain.User{}, ErrUnknownSession
	}
	if err := e.User.SetUsername(name); err != nil {
		return e.User, err
	}
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("username", e.User.Username).Msg("updated username")
	return e.User, nil
}

func (r *Registry) AddRoom(sid core.SessionID, room domain.RoomID) bool {
	return r.mark(sid, room, false, true)
}

func (r *Registry) RemoveRoom(sid core.SessionID, room domain.RoomID) bool {
	return r.mark(sid, room, false, false)
}

func (r *Registry) AddVideoRoom(sid core.SessionID, room domain.RoomID) bool {
	return r.mark(sid, room, true, true)
}

func (r *Registry) RemoveVideoRoom(sid core.SessionID, room domain.RoomID) bool {
	return r.mark(sid, room, true, false)
}

func (r *Registry) mark(sid core.SessionID, room domain.RoomID, video, add bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	set := e.rooms
	if video {
		set = e.videoRooms
	}
	if add {
		set[room] = struct{}{}
	} else {
		delete(set, room)
	}
	return true
}

// All returns every live connection except the given ones.
func (r *Registry) All(except map[core.SessionID]struct{}) []ConnSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConnSnapshot, 0, len(r.sessions))
	for sid, e := range r.sessions {
		if _, skip := except[sid]; skip {
			continue
		}
		out = append(out, snapshot(sid, e))
	}
	return out
}

func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}

func snapshot(sid core.SessionID, e *connEntry) ConnSnapshot {
	s := ConnSnapshot{
		SID:        sid,
		User:       e.User,
		Session:    e.Session,
		Rooms:      make([]domain.RoomID, 0, len(e.rooms)),
		VideoRooms: make([]domain.RoomID, 0, len(e.videoRooms)),
	}
	for id := range e.rooms {
		s.Rooms = append(s.Rooms, id)
	}
	for id := range e.videoRooms {
		s.VideoRooms = append(s.VideoRooms, id)
	}
	return s
}
