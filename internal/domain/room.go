package domain

import "strings"

// RoomID is supplied by clients and never validated beyond being non-empty.
type RoomID string

// VideoRoomPrefix separates call rooms from chat rooms with the same id.
const VideoRoomPrefix = "video-"

type Room struct {
	ID RoomID
}

func (id RoomID) Empty() bool { return strings.TrimSpace(string(id)) == "" }

// VideoRoomID derives the call room namespace for a chat room id.
func VideoRoomID(id RoomID) RoomID {
	return RoomID(VideoRoomPrefix + string(id))
}
