package playback

import (
	"testing"
	"time"

	"github.com/esc4n0rx/streamhive/persistence"
	"github.com/esc4n0rx/streamhive/types"
	"github.com/stretchr/testify/require"
)

// fakePersister keeps everything in maps. Methods the playback service never
// touches fall through to the embedded nil interface and panic, which is the
// desired behavior in a test.
type fakePersister struct {
	persistence.Persister

	rooms       map[string]types.Room
	memberships map[string]types.Membership // userId + ":" + roomId
	sessions    map[string]*types.PlaybackSession
}

func newFakePersister() *fakePersister {
	return &fakePersister{
		rooms:       make(map[string]types.Room),
		memberships: make(map[string]types.Membership),
		sessions:    make(map[string]*types.PlaybackSession),
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

func (f *fakePersister) FindMembership(userId, roomId string) (*types.Membership, error) {
	m, ok := f.memberships[userId+":"+roomId]
	if !ok {
		return nil, nil
	}
	return &m, nil
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

func (f *fakePersister) EndSession(id string, endedAt time.Time) error {
	s, ok := f.sessions[id]
	if !ok {
		return types.NotFoundError("session not found")
	}
	s.IsActive = false
	s.IsPlaying = false
	s.EndedAt = &endedAt
	s.UpdatedAt = endedAt
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

func newTestService(t *testing.T) (*Service, *fakePersister) {
	t.Helper()
	fake := newFakePersister()
	fake.rooms["r1"] = types.Room{Id: "r1", Name: "Movie night", IsActive: true}
	fake.memberships["owner:r1"] = types.Membership{Id: "m1", RoomId: "r1", UserId: "owner", Role: types.RoleOwner, IsActive: true}
	fake.memberships["mod:r1"] = types.Membership{Id: "m2", RoomId: "r1", UserId: "mod", Role: types.RoleModerator, IsActive: true}
	fake.memberships["viewer:r1"] = types.Membership{Id: "m3", RoomId: "r1", UserId: "viewer", Role: types.RoleParticipant, IsActive: true}
	return NewService(fake), fake
}

func requireErrCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, types.AsError(err).Code)
}

func TestStartSession(t *testing.T) {
	svc, _ := newTestService(t)

	s, err := svc.Start("r1", "owner", "https://example.com/v.mp4", "Feature", "")
	require.NoError(t, err)
	require.True(t, s.IsActive)
	require.False(t, s.IsPlaying)
	require.Equal(t, 0.0, s.CurrentTime)
	require.Equal(t, "owner", s.StartedBy)
}

func TestStartRejectsSecondActiveSession(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Start("r1", "owner", "https://example.com/a.mp4", "", "")
	require.NoError(t, err)

	_, err = svc.Start("r1", "mod", "https://example.com/b.mp4", "", "")
	requireErrCode(t, err, types.ErrCodeConflict)
}

func TestStartForbiddenForParticipant(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Start("r1", "viewer", "https://example.com/v.mp4", "", "")
	requireErrCode(t, err, types.ErrCodeForbidden)
}

func TestStartUnknownRoom(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Start("nope", "owner", "https://example.com/v.mp4", "", "")
	requireErrCode(t, err, types.ErrCodeRoomNotFound)
}

func TestStopByStarterWithoutRole(t *testing.T) {
	svc, fake := newTestService(t)

	s, err := svc.Start("r1", "mod", "https://example.com/v.mp4", "", "")
	require.NoError(t, err)

	// demote the starter after the fact, they may still stop their own stream
	fake.memberships["mod:r1"] = types.Membership{Id: "m2", RoomId: "r1", UserId: "mod", Role: types.RoleParticipant, IsActive: true}

	stopped, err := svc.Stop("r1", "mod")
	require.NoError(t, err)
	require.Equal(t, s.Id, stopped.Id)
	require.False(t, stopped.IsActive)
	require.NotNil(t, stopped.EndedAt)
}

func TestStopForbiddenForOtherParticipant(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Start("r1", "owner", "https://example.com/v.mp4", "", "")
	require.NoError(t, err)

	_, err = svc.Stop("r1", "viewer")
	requireErrCode(t, err, types.ErrCodeForbidden)
}

func TestStopWithoutSession(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Stop("r1", "owner")
	requireErrCode(t, err, types.ErrCodeNoActiveSession)
}

func TestSetPlayingAndSeek(t *testing.T) {
	svc, fake := newTestService(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	s, err := svc.Start("r1", "owner", "https://example.com/v.mp4", "", "")
	require.NoError(t, err)

	pos := 12.5
	s, err = svc.SetPlaying("r1", "mod", true, &pos)
	require.NoError(t, err)
	require.True(t, s.IsPlaying)
	require.Equal(t, 12.5, s.CurrentTime)

	s, err = svc.Seek("r1", "owner", 99)
	require.NoError(t, err)
	require.Equal(t, 99.0, s.CurrentTime)
	require.True(t, s.IsPlaying)

	stored, err := fake.FindActiveSession("r1")
	require.NoError(t, err)
	require.Equal(t, 99.0, stored.CurrentTime)
}

func TestSetPlayingClampsNegativeOverride(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Start("r1", "owner", "https://example.com/v.mp4", "", "")
	require.NoError(t, err)

	pos := -3.0
	s, err := svc.SetPlaying("r1", "owner", false, &pos)
	require.NoError(t, err)
	require.Equal(t, 0.0, s.CurrentTime)
}

func TestSeekRejectsNegativePosition(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Start("r1", "owner", "https://example.com/v.mp4", "", "")
	require.NoError(t, err)

	_, err = svc.Seek("r1", "owner", -1)
	requireErrCode(t, err, types.ErrCodeValidation)
}

func TestValidVideoURL(t *testing.T) {
	require.True(t, ValidVideoURL("https://example.com/v.mp4"))
	require.True(t, ValidVideoURL("http://example.com/stream"))
	require.False(t, ValidVideoURL(""))
	require.False(t, ValidVideoURL("ftp://example.com/v.mp4"))
	require.False(t, ValidVideoURL("not a url"))
}
