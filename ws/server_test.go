package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/esc4n0rx/streamhive/auth"
	"github.com/esc4n0rx/streamhive/chat"
	"github.com/esc4n0rx/streamhive/config"
	"github.com/esc4n0rx/streamhive/filter"
	"github.com/esc4n0rx/streamhive/persistence"
	"github.com/esc4n0rx/streamhive/playback"
	"github.com/esc4n0rx/streamhive/ratelimit"
	"github.com/esc4n0rx/streamhive/types"
	"github.com/stretchr/testify/require"
)

type fakePersister struct {
	persistence.Persister

	rooms       map[string]types.Room
	memberships map[string]types.Membership // userId + ":" + roomId
	sessions    map[string]*types.PlaybackSession
	messages    map[string]*types.ChatMessage
}

func newFakePersister() *fakePersister {
	return &fakePersister{
		rooms:       make(map[string]types.Room),
		memberships: make(map[string]types.Membership),
		sessions:    make(map[string]*types.PlaybackSession),
		messages:    make(map[string]*types.ChatMessage),
	}
}

func (f *fakePersister) GetRoom(room *types.Room) error {
	r, ok := f.rooms[room.Id]
	if !ok {
		return types.NotFoundError("room not found")
	}
	*room = r
	return nil
}

func (f *fakePersister) GetRoomByCode(code string) (*types.Room, error) {
	for _, r := range f.rooms {
		if r.Code == code {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePersister) FindMembership(userId, roomId string) (*types.Membership, error) {
	m, ok := f.memberships[userId+":"+roomId]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (f *fakePersister) CountActiveMembers(roomId string) (int, error) {
	count := 0
	for _, m := range f.memberships {
		if m.RoomId == roomId && m.IsActive {
			count++
		}
	}
	return count, nil
}

func (f *fakePersister) CreateSession(s *types.PlaybackSession) error {
	cp := *s
	f.sessions[s.Id] = &cp
	return nil
}

func (f *fakePersister) UpdateSession(s *types.PlaybackSession) error {
	cp := *s
	f.sessions[s.Id] = &cp
	return nil
}

func (f *fakePersister) FindActiveSession(roomId string) (*types.PlaybackSession, error) {
	for _, s := range f.sessions {
		if s.RoomId == roomId && s.IsActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePersister) CreateMessage(m *types.ChatMessage) error {
	cp := *m
	f.messages[m.Id] = &cp
	return nil
}

func newTestServer(t *testing.T, fake *fakePersister) *Server {
	t.Helper()
	cfg := &config.Config{
		AuthConfig: config.AuthConfig{JWTSecret: "secret", TokenTTL: time.Hour},
		LimitsConfig: config.LimitsConfig{
			EventMax:       30,
			EventWindow:    time.Minute,
			ChatMax:        10,
			ChatWindow:     time.Minute,
			TypingExpiry:   3 * time.Second,
			MaxMessageSize: 500,
		},
		HistoryConfig: config.HistoryConfig{DefaultLimit: 50, MaxLimit: 200},
	}
	moderator, err := filter.NewModerator(cfg.ModerationConfig)
	require.NoError(t, err)
	gatekeeper, err := auth.NewGatekeeper(cfg, fake)
	require.NoError(t, err)
	return NewServer(cfg, fake, gatekeeper, chat.NewService(cfg, fake, moderator), playback.NewService(fake))
}

func roomFixture(fake *fakePersister) {
	fake.rooms["r1"] = types.Room{Id: "r1", Name: "Movie night", IsActive: true}
	fake.memberships["owner:r1"] = types.Membership{Id: "m1", RoomId: "r1", UserId: "owner", Role: types.RoleOwner, IsActive: true}
	fake.memberships["b:r1"] = types.Membership{Id: "m2", RoomId: "r1", UserId: "b", Role: types.RoleParticipant, IsActive: true}
	fake.memberships["c:r1"] = types.Membership{Id: "m3", RoomId: "r1", UserId: "c", Role: types.RoleParticipant, IsActive: true}
}

func frame(event string, payload map[string]interface{}) types.WebsocketMessage {
	raw, _ := json.Marshal(payload)
	return types.WebsocketMessage{Event: event, Data: raw}
}

// drain empties the client's send buffer and returns the frames by event name
// in arrival order.
func drain(c *Client) []types.WebsocketMessage {
	frames := make([]types.WebsocketMessage, 0)
	for {
		select {
		case msg := <-c.Send:
			frames = append(frames, msg)
		default:
			return frames
		}
	}
}

func events(frames []types.WebsocketMessage) []string {
	names := make([]string, 0, len(frames))
	for _, f := range frames {
		names = append(names, f.Event)
	}
	return names
}

func responseOf(t *testing.T, frames []types.WebsocketMessage, event string) types.Response {
	t.Helper()
	for _, f := range frames {
		if f.Event == event {
			resp := types.Response{}
			require.NoError(t, json.Unmarshal(f.Data, &resp))
			return resp
		}
	}
	t.Fatalf("no %s frame in %v", event, events(frames))
	return types.Response{}
}

func join(t *testing.T, s *Server, c *Client, roomId string) {
	t.Helper()
	s.dispatch(c, frame(types.EventJoinRoom, map[string]interface{}{"roomId": roomId}))
	resp := responseOf(t, drain(c), "join_room_success")
	require.True(t, resp.Success)
}

func TestJoinRequiresActiveMembership(t *testing.T) {
	fake := newFakePersister()
	roomFixture(fake)
	s := newTestServer(t, fake)
	outsider := testClient("outsider", "Outsider")

	s.dispatch(outsider, frame(types.EventJoinRoom, map[string]interface{}{"roomId": "r1"}))

	resp := responseOf(t, drain(outsider), "join_room_error")
	require.False(t, resp.Success)
	require.Equal(t, types.ErrCodeNotAMember, resp.Error.Code)
	require.Empty(t, outsider.Room())
}

func TestJoinUnknownRoom(t *testing.T) {
	fake := newFakePersister()
	roomFixture(fake)
	s := newTestServer(t, fake)
	c := testClient("owner", "Owner")

	s.dispatch(c, frame(types.EventJoinRoom, map[string]interface{}{"roomId": "nope"}))

	resp := responseOf(t, drain(c), "join_room_error")
	require.Equal(t, types.ErrCodeRoomNotFound, resp.Error.Code)
}

func TestJoinByRoomCode(t *testing.T) {
	fake := newFakePersister()
	roomFixture(fake)
	room := fake.rooms["r1"]
	room.Code = "ABCD1234"
	fake.rooms["r1"] = room
	s := newTestServer(t, fake)
	c := testClient("owner", "Owner")

	join(t, s, c, "ABCD1234")
	require.Equal(t, "r1", c.Room())
}

func TestJoinNotifiesRoom(t *testing.T) {
	fake := newFakePersister()
	roomFixture(fake)
	s := newTestServer(t, fake)
	b := testClient("b", "B")
	join(t, s, b, "r1")
	drain(b)

	owner := testClient("owner", "Owner")
	join(t, s, owner, "r1")

	frames := drain(b)
	require.Contains(t, events(frames), types.EventUserJoined)
	require.Contains(t, events(frames), types.EventNewMessage) // system message
}

func TestPlayBroadcastExcludesActor(t *testing.T) {
	fake := newFakePersister()
	roomFixture(fake)
	s := newTestServer(t, fake)
	owner := testClient("owner", "Owner")
	b := testClient("b", "B")
	c := testClient("c", "C")
	join(t, s, owner, "r1")
	join(t, s, b, "r1")
	join(t, s, c, "r1")

	s.dispatch(owner, frame(types.EventStartStream, map[string]interface{}{
		"roomId":   "r1",
		"videoUrl": "https://example.com/v.mp4",
	}))
	drain(b)
	drain(c)
	responseOf(t, drain(owner), "start_stream_success")

	s.dispatch(owner, frame(types.EventPlayVideo, map[string]interface{}{"roomId": "r1"}))

	ownerFrames := drain(owner)
	require.Contains(t, events(ownerFrames), "play_video_success")
	require.NotContains(t, events(ownerFrames), types.EventVideoPlayed)
	require.Contains(t, events(drain(b)), types.EventVideoPlayed)
	require.Contains(t, events(drain(c)), types.EventVideoPlayed)
}

func TestPlayForbiddenForParticipant(t *testing.T) {
	fake := newFakePersister()
	roomFixture(fake)
	s := newTestServer(t, fake)
	owner := testClient("owner", "Owner")
	b := testClient("b", "B")
	join(t, s, owner, "r1")
	join(t, s, b, "r1")

	s.dispatch(owner, frame(types.EventStartStream, map[string]interface{}{
		"roomId":   "r1",
		"videoUrl": "https://example.com/v.mp4",
	}))
	drain(owner)
	drain(b)

	s.dispatch(b, frame(types.EventPlayVideo, map[string]interface{}{"roomId": "r1"}))

	resp := responseOf(t, drain(b), "play_video_error")
	require.Equal(t, types.ErrCodeForbidden, resp.Error.Code)
}

func TestSyncRequest(t *testing.T) {
	fake := newFakePersister()
	roomFixture(fake)
	s := newTestServer(t, fake)
	owner := testClient("owner", "Owner")
	join(t, s, owner, "r1")

	s.dispatch(owner, frame(types.EventSyncRequest, map[string]interface{}{"roomId": "r1"}))
	resp := responseOf(t, drain(owner), "sync_error")
	require.Equal(t, types.ErrCodeNoActiveSession, resp.Error.Code)

	s.dispatch(owner, frame(types.EventStartStream, map[string]interface{}{
		"roomId":   "r1",
		"videoUrl": "https://example.com/v.mp4",
	}))
	drain(owner)

	s.dispatch(owner, frame(types.EventSyncRequest, map[string]interface{}{"roomId": "r1"}))
	resp = responseOf(t, drain(owner), "sync_response")
	require.True(t, resp.Success)
}

func TestGlobalEventLimit(t *testing.T) {
	fake := newFakePersister()
	roomFixture(fake)
	s := newTestServer(t, fake)
	s.eventLimiter = ratelimit.NewLimiter(1, time.Minute)
	owner := testClient("owner", "Owner")

	s.dispatch(owner, frame(types.EventGetRoomInfo, map[string]interface{}{"roomId": "r1"}))
	drain(owner)
	s.dispatch(owner, frame(types.EventGetRoomInfo, map[string]interface{}{"roomId": "r1"}))

	resp := responseOf(t, drain(owner), "get_room_info_error")
	require.Equal(t, types.ErrCodeRateLimited, resp.Error.Code)
}

func TestEventLimitSurvivesReconnect(t *testing.T) {
	fake := newFakePersister()
	roomFixture(fake)
	s := newTestServer(t, fake)
	s.eventLimiter = ratelimit.NewLimiter(2, time.Minute)
	first := testClient("owner", "Owner")

	s.dispatch(first, frame(types.EventGetRoomInfo, map[string]interface{}{"roomId": "r1"}))
	s.dispatch(first, frame(types.EventGetRoomInfo, map[string]interface{}{"roomId": "r1"}))
	drain(first)
	s.disconnect(first)

	// a fresh connection for the same user stays inside the same window
	second := testClient("owner", "Owner")
	s.dispatch(second, frame(types.EventGetRoomInfo, map[string]interface{}{"roomId": "r1"}))

	resp := responseOf(t, drain(second), "get_room_info_error")
	require.Equal(t, types.ErrCodeRateLimited, resp.Error.Code)
}

func TestUnknownEvent(t *testing.T) {
	fake := newFakePersister()
	s := newTestServer(t, fake)
	c := testClient("owner", "Owner")

	s.dispatch(c, frame("no_such_event", nil))

	resp := responseOf(t, drain(c), "error")
	require.Equal(t, types.ErrCodeValidation, resp.Error.Code)
}

func TestSendMessageBroadcastAndAck(t *testing.T) {
	fake := newFakePersister()
	roomFixture(fake)
	s := newTestServer(t, fake)
	owner := testClient("owner", "Owner")
	b := testClient("b", "B")
	join(t, s, owner, "r1")
	join(t, s, b, "r1")
	drain(owner)

	s.dispatch(owner, frame(types.EventSendMessage, map[string]interface{}{
		"roomId":  "r1",
		"message": "hello everyone",
	}))

	resp := responseOf(t, drain(owner), "send_message_success")
	require.True(t, resp.Success)
	require.Contains(t, events(drain(b)), types.EventNewMessage)
}

func TestLeaveIsIdempotent(t *testing.T) {
	fake := newFakePersister()
	roomFixture(fake)
	s := newTestServer(t, fake)
	owner := testClient("owner", "Owner")
	join(t, s, owner, "r1")

	s.dispatch(owner, frame(types.EventLeaveRoom, nil))
	responseOf(t, drain(owner), "leave_room_success")
	require.Empty(t, owner.Room())

	s.dispatch(owner, frame(types.EventLeaveRoom, nil))
	responseOf(t, drain(owner), "leave_room_success")
}

func TestLeaveOtherRoomKeepsPresence(t *testing.T) {
	fake := newFakePersister()
	roomFixture(fake)
	s := newTestServer(t, fake)
	owner := testClient("owner", "Owner")
	join(t, s, owner, "r1")

	s.dispatch(owner, frame(types.EventLeaveRoom, map[string]interface{}{"roomId": "r2"}))

	responseOf(t, drain(owner), "leave_room_success")
	require.Equal(t, "r1", owner.Room())
}
