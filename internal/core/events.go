package core

import (
	"encoding/json"

	"github.com/dkeye/WatchParty/internal/domain"
)

// EventType names one message kind on the signal channel.
type EventType string

// Client to server.
const (
	EventJoinRoom          EventType = "joinRoom"
	EventLeaveRoom         EventType = "leaveRoom"
	EventSendMessageToRoom EventType = "sendMessageToRoom"
	EventVideoTriggered    EventType = "videoTriggered"
	EventJoinVideoRoom     EventType = "joinVideoRoom"
	EventLeaveVideoRoom    EventType = "leaveVideoRoom"
	EventPing              EventType = "ping"
	EventWhoAmI            EventType = "whoami"
)

// Relayed point-to-point in both directions.
const (
	EventOffer        EventType = "offer"
	EventAnswer       EventType = "answer"
	EventICECandidate EventType = "iceCandidate"
)

// Server to client.
const (
	EventRoomJoined     EventType = "roomJoined"
	EventRoomLeft       EventType = "roomLeft"
	EventRoomMessage    EventType = "roomMessage"
	EventVideoAction    EventType = "videoAction"
	EventUserJoinedCall EventType = "userJoinedCall"
	EventUserLeftCall   EventType = "userLeftCall"
	EventPong           EventType = "pong"
	EventError          EventType = "error"
)

// ActionNewVideo announces a new segment list; it is delivered to the sender too.
const ActionNewVideo = "newVideo"

// IsSignaling reports whether t is one of the WebRTC handshake relays.
func (t EventType) IsSignaling() bool {
	return t == EventOffer || t == EventAnswer || t == EventICECandidate
}

// Envelope is decoded first to pick a handler.
type Envelope struct {
	Type EventType `json:"type"`
}

type JoinRoomRequest struct {
	RoomID   domain.RoomID `json:"roomId"`
	Username string        `json:"username"`
}

type LeaveRoomRequest struct {
	RoomID domain.RoomID `json:"roomId"`
}

type RoomMessageRequest struct {
	RoomID   domain.RoomID `json:"roomId"`
	Message  string        `json:"message"`
	Username string        `json:"username"`
}

type VideoTriggeredRequest struct {
	RoomID domain.RoomID   `json:"roomId"`
	Action string          `json:"action"`
	Time   *float64        `json:"time,omitempty"`
	URL    json.RawMessage `json:"url,omitempty"`
}

type SignalRequest struct {
	Payload json.RawMessage `json:"payload"`
	To      SessionID       `json:"to"`
	RoomID  domain.RoomID   `json:"roomId"`
}

type RoomJoinedEvent struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
	Count   int       `json:"count"`
}

type RoomLeftEvent struct {
	Type     EventType     `json:"type"`
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
	Count    int           `json:"count"`
}

type RoomMessageEvent struct {
	Type     EventType     `json:"type"`
	Message  string        `json:"message"`
	RoomID   domain.RoomID `json:"roomId"`
	Username string        `json:"username"`
}

type VideoActionEvent struct {
	Type   EventType       `json:"type"`
	Action string          `json:"action"`
	RoomID domain.RoomID   `json:"roomId"`
	Time   *float64        `json:"time,omitempty"`
	URL    json.RawMessage `json:"url,omitempty"`
}

type CallJoinedEvent struct {
	Type     EventType     `json:"type"`
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
}

type CallLeftEvent struct {
	Type   EventType     `json:"type"`
	UserID domain.UserID `json:"userId"`
}

type SignalEvent struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
	From    SessionID       `json:"from"`
}

type ErrorEvent struct {
	Type  EventType `json:"type"`
	Error string    `json:"error"`
}

// Encode marshals an outbound event into a Frame.
func Encode(v any) (Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}
