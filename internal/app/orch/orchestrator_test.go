package orch

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/dkeye/WatchParty/internal/app"
	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []map[string]any
	full   bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return core.ErrBackpressure
	}
	var m map[string]any
	if err := json.Unmarshal(f, &m); err != nil {
		return err
	}
	c.frames = append(c.frames, m)
	return nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) ofType(t core.EventType) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, f := range c.frames {
		if f["type"] == string(t) {
			out = append(out, f)
		}
	}
	return out
}

type harness struct {
	orch    *Orchestrator
	conns   map[core.SessionID]*fakeConn
	cancels map[core.SessionID]int
}

func newHarness(t *testing.T, ids ...core.SessionID) *harness {
	t.Helper()
	h := &harness{
		orch: &Orchestrator{
			Registry:   app.NewRegistry(),
			Rooms:      app.NewRoomManager(),
			VideoRooms: app.NewVideoRoomManager(),
			Policy:     app.SimplePolicy{Action: app.DropFrame},
		},
		conns:   make(map[core.SessionID]*fakeConn),
		cancels: make(map[core.SessionID]int),
	}
	for _, id := range ids {
		h.connect(id)
	}
	return h
}

func (h *harness) connect(id core.SessionID) *fakeConn {
	c := &fakeConn{}
	h.conns[id] = c
	h.orch.Connect(id, c, func() { h.cancels[id]++ })
	return c
}

func TestJoinAndMessageScenario(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")

	h.orch.JoinRoom("A", core.JoinRoomRequest{RoomID: "movie1", Username: "A"})
	room, ok := h.orch.Rooms.Get("movie1")
	require.True(t, ok)
	assert.Equal(t, 1, room.MemberCount())

	b := h.connect("B")
	h.orch.JoinRoom("B", core.JoinRoomRequest{RoomID: "movie1", Username: "B"})

	joined := a.ofType(core.EventRoomJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, "B has joined the room", joined[0]["message"])
	assert.Equal(t, float64(2), joined[0]["count"])
	assert.Empty(t, b.ofType(core.EventRoomJoined))

	h.orch.SendMessageToRoom("B", core.RoomMessageRequest{RoomID: "movie1", Message: "hi", Username: "B"})
	msgs := a.ofType(core.EventRoomMessage)
	require.Len(t, msgs, 1)
	assert.Equal(t, map[string]any{"type": "roomMessage", "message": "hi", "roomId": "movie1", "username": "B"}, msgs[0])
	assert.Empty(t, b.ofType(core.EventRoomMessage))
}

func TestJoinCountIsGlobal(t *testing.T) {
	h := newHarness(t, "A", "B", "C")
	h.orch.JoinRoom("A", core.JoinRoomRequest{RoomID: "r1"})
	h.orch.JoinRoom("B", core.JoinRoomRequest{RoomID: "r1"})

	joined := h.conns["A"].ofType(core.EventRoomJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, float64(3), joined[0]["count"])
	assert.Equal(t, "guest has joined the room", joined[0]["message"])
}

func TestRejoinIsIdempotent(t *testing.T) {
	h := newHarness(t, "A", "B")
	h.orch.JoinRoom("A", core.JoinRoomRequest{RoomID: "r1"})
	h.orch.JoinRoom("B", core.JoinRoomRequest{RoomID: "r1"})
	h.orch.JoinRoom("B", core.JoinRoomRequest{RoomID: "r1"})

	room, _ := h.orch.Rooms.Get("r1")
	assert.Equal(t, 2, room.MemberCount())
	assert.Len(t, h.conns["A"].ofType(core.EventRoomJoined), 1)
}

func TestMissingRoomIDIsNoop(t *testing.T) {
	h := newHarness(t, "A")
	h.orch.JoinRoom("A", core.JoinRoomRequest{})
	h.orch.SendMessageToRoom("A", core.RoomMessageRequest{Message: "hi"})
	h.orch.VideoTriggered("A", core.VideoTriggeredRequest{Action: "play"})
	h.orch.JoinVideoRoom("A", core.JoinRoomRequest{})
	h.orch.LeaveRoom("A", "")
	h.orch.LeaveVideoRoom("A", "")

	assert.Empty(t, h.orch.Rooms.List())
	assert.Empty(t, h.orch.VideoRooms.List())
	assert.Empty(t, h.conns["A"].frames)
}

func TestMembershipMatchesJoinsMinusLeaves(t *testing.T) {
	ids := []core.SessionID{"a", "b", "c", "d", "e"}
	h := newHarness(t, ids...)
	want := map[core.SessionID]bool{}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		id := ids[rng.Intn(len(ids))]
		switch rng.Intn(3) {
		case 0, 1:
			h.orch.JoinRoom(id, core.JoinRoomRequest{RoomID: "r"})
			want[id] = true
		default:
			h.orch.LeaveRoom(id, "r")
			delete(want, id)
		}

		var got []string
		if room, ok := h.orch.Rooms.Get("r"); ok {
			for _, sid := range room.IDs() {
				got = append(got, string(sid))
			}
		}
		var exp []string
		for sid := range want {
			exp = append(exp, string(sid))
		}
		sort.Strings(got)
		sort.Strings(exp)
		require.Equal(t, exp, got, "step %d", i)
	}
}

func TestDisconnectCleansUpEveryMembership(t *testing.T) {
	h := newHarness(t, "A", "B", "C")
	for _, room := range []domain.RoomID{"r1", "r2"} {
		h.orch.JoinRoom("A", core.JoinRoomRequest{RoomID: room, Username: "ann"})
		h.orch.JoinRoom("B", core.JoinRoomRequest{RoomID: room})
	}
	h.orch.JoinVideoRoom("A", core.JoinRoomRequest{RoomID: "r1"})
	h.orch.JoinVideoRoom("B", core.JoinRoomRequest{RoomID: "r1"})

	h.orch.OnDisconnect("A")
	h.orch.OnDisconnect("A")

	for _, room := range []domain.RoomID{"r1", "r2"} {
		r, ok := h.orch.Rooms.Get(room)
		require.True(t, ok)
		assert.False(t, r.Has("A"))
	}
	call, ok := h.orch.VideoRooms.Get("r1")
	require.True(t, ok)
	assert.False(t, call.Has("A"))

	left := h.conns["B"].ofType(core.EventRoomLeft)
	require.Len(t, left, 2, "one roomLeft per room")
	assert.Equal(t, "ann", left[0]["username"])
	assert.Len(t, h.conns["B"].ofType(core.EventUserLeftCall), 1)
	assert.Len(t, h.conns["C"].ofType(core.EventUserLeftCall), 1, "process-wide copy")
	assert.Empty(t, h.conns["C"].ofType(core.EventRoomLeft))
	assert.Equal(t, 2, h.orch.Registry.Count())
}

func TestDisconnectWithoutMemberships(t *testing.T) {
	h := newHarness(t, "A", "B")
	h.orch.OnDisconnect("A")
	h.orch.OnDisconnect("ghost")
	assert.Equal(t, 1, h.orch.Registry.Count())
	assert.Empty(t, h.conns["B"].frames)
}

func TestRelayIsPointToPoint(t *testing.T) {
	h := newHarness(t, "A", "B", "C")
	h.orch.JoinRoom("A", core.JoinRoomRequest{RoomID: "r1"})
	h.orch.JoinRoom("B", core.JoinRoomRequest{RoomID: "r1"})
	h.orch.JoinRoom("C", core.JoinRoomRequest{RoomID: "r1"})

	payload := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	for _, kind := range []core.EventType{core.EventOffer, core.EventAnswer, core.EventICECandidate} {
		ok := h.orch.Relay(kind, "A", core.SignalRequest{Payload: payload, To: "B", RoomID: "r1"})
		assert.True(t, ok)

		got := h.conns["B"].ofType(kind)
		require.Len(t, got, 1)
		assert.Equal(t, "A", got[0]["from"])
		assert.Equal(t, map[string]any{"type": "offer", "sdp": "v=0"}, got[0]["payload"])
		assert.Empty(t, h.conns["C"].ofType(kind))
		assert.Empty(t, h.conns["A"].ofType(kind))
	}
}

func TestRelayToUnknownTargetIsDropped(t *testing.T) {
	h := newHarness(t, "A")
	ok := h.orch.Relay(core.EventOffer, "A", core.SignalRequest{Payload: json.RawMessage(`{}`), To: "ghost"})
	assert.False(t, ok)
	assert.False(t, h.orch.Relay(core.EventOffer, "A", core.SignalRequest{Payload: json.RawMessage(`{}`)}))
	assert.False(t, h.orch.Relay(core.EventJoinRoom, "A", core.SignalRequest{Payload: json.RawMessage(`{}`), To: "A"}))
	assert.Empty(t, h.conns["A"].frames)
}

func TestVideoTriggeredScopes(t *testing.T) {
	h := newHarness(t, "A", "B")
	h.orch.JoinRoom("A", core.JoinRoomRequest{RoomID: "r1"})
	h.orch.JoinRoom("B", core.JoinRoomRequest{RoomID: "r1"})

	at := 12.5
	h.orch.VideoTriggered("A", core.VideoTriggeredRequest{RoomID: "r1", Action: "seek", Time: &at})
	assert.Empty(t, h.conns["A"].ofType(core.EventVideoAction))
	got := h.conns["B"].ofType(core.EventVideoAction)
	require.Len(t, got, 1)
	assert.Equal(t, 12.5, got[0]["time"])

	h.orch.VideoTriggered("A", core.VideoTriggeredRequest{RoomID: "r1", Action: core.ActionNewVideo, URL: json.RawMessage(`"http://x/v.m3u8"`)})
	mine := h.conns["A"].ofType(core.EventVideoAction)
	require.Len(t, mine, 1, "newVideo reaches the sender too")
	assert.Equal(t, "http://x/v.m3u8", mine[0]["url"])
	assert.Len(t, h.conns["B"].ofType(core.EventVideoAction), 2)
}

func TestPublishSegmentsReachesEveryMember(t *testing.T) {
	h := newHarness(t, "A", "B", "C")
	h.orch.JoinRoom("A", core.JoinRoomRequest{RoomID: "r1"})
	h.orch.JoinRoom("B", core.JoinRoomRequest{RoomID: "r1"})

	n := h.orch.PublishSegments("r1", []string{"/videos/a-000.ts", "/videos/a-001.ts"})
	assert.Equal(t, 2, n)
	for _, id := range []core.SessionID{"A", "B"} {
		got := h.conns[id].ofType(core.EventVideoAction)
		require.Len(t, got, 1)
		assert.Equal(t, core.ActionNewVideo, got[0]["action"])
		assert.Equal(t, []any{"/videos/a-000.ts", "/videos/a-001.ts"}, got[0]["url"])
	}
	assert.Empty(t, h.conns["C"].frames)
	assert.Zero(t, h.orch.PublishSegments("nobody", nil))
}

func TestVideoRoomJoinLeave(t *testing.T) {
	h := newHarness(t, "A", "B", "C")
	h.orch.JoinVideoRoom("A", core.JoinRoomRequest{RoomID: "r1", Username: "ann"})
	h.orch.JoinVideoRoom("B", core.JoinRoomRequest{RoomID: "r1", Username: "bob"})

	joined := h.conns["A"].ofType(core.EventUserJoinedCall)
	require.Len(t, joined, 1)
	assert.Equal(t, map[string]any{"type": "userJoinedCall", "userId": "B", "username": "bob"}, joined[0])
	assert.Empty(t, h.conns["B"].ofType(core.EventUserJoinedCall))

	h.orch.LeaveVideoRoom("B", "r1")
	h.orch.LeaveVideoRoom("B", "r1")
	for _, id := range []core.SessionID{"A", "C"} {
		left := h.conns[id].ofType(core.EventUserLeftCall)
		require.Len(t, left, 1, fmt.Sprintf("%s gets exactly one notice", id))
		assert.Equal(t, "B", left[0]["userId"])
	}
	assert.Empty(t, h.conns["B"].ofType(core.EventUserLeftCall))
	_, ok := h.orch.Rooms.Get("r1")
	assert.False(t, ok, "call rooms do not create chat rooms")
}

func TestBackpressureKickPolicy(t *testing.T) {
	h := newHarness(t, "A", "B")
	h.orch.Policy = app.SimplePolicy{Action: app.KickMember}
	h.orch.JoinRoom("A", core.JoinRoomRequest{RoomID: "r1"})
	h.orch.JoinRoom("B", core.JoinRoomRequest{RoomID: "r1"})
	h.conns["B"].full = true

	h.orch.SendMessageToRoom("A", core.RoomMessageRequest{RoomID: "r1", Message: "hi"})
	assert.Equal(t, 1, h.cancels["B"])

	h.orch.Policy = app.SimplePolicy{Action: app.DropFrame}
	h.orch.SendMessageToRoom("A", core.RoomMessageRequest{RoomID: "r1", Message: "hi"})
	assert.Equal(t, 1, h.cancels["B"])
}

func TestRoomMembers(t *testing.T) {
	h := newHarness(t, "B", "A")
	_, ok := h.orch.RoomMembers("r1")
	assert.False(t, ok)

	h.orch.JoinRoom("B", core.JoinRoomRequest{RoomID: "r1", Username: "bob"})
	h.orch.JoinRoom("A", core.JoinRoomRequest{RoomID: "r1", Username: "ann"})

	view, ok := h.orch.RoomMembers("r1")
	require.True(t, ok)
	assert.Equal(t, RoomView{
		ID:    "r1",
		Count: 2,
		Members: []core.MemberDTO{
			{ID: "A", Username: "ann"},
			{ID: "B", Username: "bob"},
		},
	}, view)
}

func TestShutdownIsSilent(t *testing.T) {
	h := newHarness(t, "A", "B")
	h.orch.JoinRoom("A", core.JoinRoomRequest{RoomID: "r1"})
	h.orch.JoinRoom("B", core.JoinRoomRequest{RoomID: "r1"})
	h.orch.JoinVideoRoom("A", core.JoinRoomRequest{RoomID: "r1"})
	h.orch.JoinVideoRoom("B", core.JoinRoomRequest{RoomID: "r1"})

	h.orch.Shutdown()
	assert.Empty(t, h.orch.Rooms.List())
	assert.Empty(t, h.orch.VideoRooms.List())
	assert.Equal(t, map[core.SessionID]int{"A": 1, "B": 1}, h.cancels)

	h.orch.OnDisconnect("A")
	h.orch.OnDisconnect("B")
	for _, c := range h.conns {
		assert.Empty(t, c.ofType(core.EventRoomLeft))
		assert.Empty(t, c.ofType(core.EventUserLeftCall))
	}
	assert.Equal(t, 0, h.orch.Registry.Count())
}
