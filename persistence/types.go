package persistence

import (
	"time"

	"github.com/esc4n0rx/streamhive/config"
	"github.com/esc4n0rx/streamhive/types"
)

// Persister is the storage collaborator contract the engine depends on. All
// operations are assumed atomic at the single-row level; no multi-row
// transactions are assumed available to callers.
//
// Get* methods fill the passed entity in place and fail when it is absent;
// Find* methods return (nil, nil) on a miss.
type Persister interface {
	StoreUser(types.User) error
	GetUser(*types.User) error
	GetUsers() ([]*types.User, error)
	DeleteUser(*types.User) error

	StoreRoom(types.Room) error
	GetRoom(*types.Room) error
	GetRoomByCode(code string) (*types.Room, error)
	GetRooms() ([]*types.Room, error)
	DeleteRoom(*types.Room) error

	StoreMembership(types.Membership) error
	FindMembership(userId, roomId string) (*types.Membership, error)
	CountActiveMembers(roomId string) (int, error)

	CreateSession(*types.PlaybackSession) error
	UpdateSession(*types.PlaybackSession) error
	EndSession(id string, endedAt time.Time) error
	FindActiveSession(roomId string) (*types.PlaybackSession, error)

	CreateMessage(*types.ChatMessage) error
	GetMessage(id string) (*types.ChatMessage, error)
	FindMessages(roomId string, limit int) ([]*types.ChatMessage, error)
	DeleteMessage(id string) error

	CreateInvite(*types.RoomInvite) error
	UpdateInvite(*types.RoomInvite) error
	GetInvite(id string) (*types.RoomInvite, error)
	FindInviteByCode(code string) (*types.RoomInvite, error)
	FindInvitesByRoom(roomId string) ([]*types.RoomInvite, error)
	DeactivateExpiredInvites(now time.Time) (int, error)

	Close() error
}

// NewPersister creates the Persister selected by the configuration.
func NewPersister(cfg *config.Config) (Persister, error) {
	switch cfg.PersistenceConfig.Type {
	case "buntdb":
		return NewBuntPersister(cfg)
	default:
		return NewGormPersister(cfg)
	}
}
