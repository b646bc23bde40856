package core

type SessionID string

// MemberSession binds a connection identity and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	ID() SessionID
	Signal() SignalConnection
}
