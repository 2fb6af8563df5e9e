// Package playback holds the per-room authoritative playback session state
// machine and the clock reconciliation used to project it to "now".
package playback

import (
	"net/url"
	"sync"
	"time"

	"github.com/esc4n0rx/streamhive/persistence"
	"github.com/esc4n0rx/streamhive/types"
	"github.com/google/uuid"
)

// Service drives the session state machine:
//
//	NoSession -> Paused <-> Playing -> Ended (terminal)
//
// with seek as a same-state transition. Mutations of one room's session are
// serialized behind a per-room mutex so a single read-modify-write stays
// atomic; across events the last write still wins.
type Service struct {
	persister persistence.Persister

	mu    sync.Mutex
	rooms map[string]*sync.Mutex

	now func() time.Time
}

func NewService(persister persistence.Persister) *Service {
	return &Service{
		persister: persister,
		rooms:     make(map[string]*sync.Mutex),
		now:       time.Now,
	}
}

func (s *Service) roomLock(roomId string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rooms[roomId]
	if !ok {
		l = &sync.Mutex{}
		s.rooms[roomId] = l
	}
	return l
}

// ValidVideoURL accepts absolute http(s) URLs only.
func ValidVideoURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Start creates a new active session for the room. It requires the room to
// exist and be active, the caller to be an owner or moderator, and no other
// active session to be present.
func (s *Service) Start(roomId, userId, videoUrl, title, description string) (*types.PlaybackSession, error) {
	l := s.roomLock(roomId)
	l.Lock()
	defer l.Unlock()

	room := types.Room{Id: roomId}
	if err := s.persister.GetRoom(&room); err != nil || !room.IsActive {
		return nil, types.NewError(types.ErrCodeRoomNotFound, "room not found or inactive")
	}
	if err := s.requireManager(userId, roomId); err != nil {
		return nil, err
	}
	active, err := s.persister.FindActiveSession(roomId)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, types.ConflictError("an active session already exists in this room")
	}

	now := s.now()
	session := &types.PlaybackSession{
		Id:          uuid.New().String(),
		RoomId:      roomId,
		StartedBy:   userId,
		Title:       title,
		Description: description,
		VideoUrl:    videoUrl,
		CurrentTime: 0,
		IsPlaying:   false,
		IsActive:    true,
		StartedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.persister.CreateSession(session); err != nil {
		return nil, err
	}
	return session, nil
}

// Stop ends the room's active session. Owners and moderators may stop any
// session; the user who started it may stop it regardless of role. The
// session is terminal afterwards: streaming again requires a new session.
func (s *Service) Stop(roomId, userId string) (*types.PlaybackSession, error) {
	l := s.roomLock(roomId)
	l.Lock()
	defer l.Unlock()

	session, err := s.activeSession(roomId)
	if err != nil {
		return nil, err
	}
	membership, err := s.persister.FindMembership(userId, roomId)
	if err != nil {
		return nil, err
	}
	canManage := membership != nil && membership.IsActive && membership.CanManageRoom()
	if !canManage && session.StartedBy != userId {
		return nil, types.ForbiddenError("no permission to stop the stream")
	}

	now := s.now()
	if err := s.persister.EndSession(session.Id, now); err != nil {
		return nil, err
	}
	session.IsActive = false
	session.IsPlaying = false
	session.EndedAt = &now
	session.UpdatedAt = now
	return session, nil
}

// SetPlaying flips the play/pause state and refreshes the anchor. The caller
// may override the position; it is clamped to >= 0.
func (s *Service) SetPlaying(roomId, userId string, playing bool, currentTime *float64) (*types.PlaybackSession, error) {
	l := s.roomLock(roomId)
	l.Lock()
	defer l.Unlock()

	session, err := s.activeSession(roomId)
	if err != nil {
		return nil, err
	}
	if err := s.requireManager(userId, roomId); err != nil {
		return nil, err
	}

	session.IsPlaying = playing
	if currentTime != nil {
		t := *currentTime
		if t < 0 {
			t = 0
		}
		session.CurrentTime = t
	}
	session.UpdatedAt = s.now()
	if err := s.persister.UpdateSession(session); err != nil {
		return nil, err
	}
	return session, nil
}

// Seek moves the position without touching the play state.
func (s *Service) Seek(roomId, userId string, position float64) (*types.PlaybackSession, error) {
	if position < 0 {
		return nil, types.ValidationError("position must not be negative")
	}

	l := s.roomLock(roomId)
	l.Lock()
	defer l.Unlock()

	session, err := s.activeSession(roomId)
	if err != nil {
		return nil, err
	}
	if err := s.requireManager(userId, roomId); err != nil {
		return nil, err
	}

	session.CurrentTime = position
	session.UpdatedAt = s.now()
	if err := s.persister.UpdateSession(session); err != nil {
		return nil, err
	}
	return session, nil
}

// Active returns the room's active session, or nil when there is none.
func (s *Service) Active(roomId string) (*types.PlaybackSession, error) {
	return s.persister.FindActiveSession(roomId)
}

func (s *Service) activeSession(roomId string) (*types.PlaybackSession, error) {
	session, err := s.persister.FindActiveSession(roomId)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, types.NewError(types.ErrCodeNoActiveSession, "no active session in this room")
	}
	return session, nil
}

func (s *Service) requireManager(userId, roomId string) error {
	membership, err := s.persister.FindMembership(userId, roomId)
	if err != nil {
		return err
	}
	if membership == nil || !membership.IsActive || !membership.CanManageRoom() {
		return types.ForbiddenError("only owners and moderators may control playback")
	}
	return nil
}
