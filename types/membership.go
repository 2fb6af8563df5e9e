package types

import "time"

// Membership roles. Role determines authorization for playback control,
// invite management and message moderation.
const (
	RoleOwner       = "owner"
	RoleModerator   = "moderator"
	RoleParticipant = "participant"
)

// Membership is the persisted relation between a user and a room. At most one
// active membership may exist per (user, room); callers enforce this via
// read-then-write before creating a new row.
type Membership struct {
	Id       string     `json:"id" gorm:"primaryKey"`
	RoomId   string     `json:"room_id" gorm:"index:idx_member_room_user"`
	UserId   string     `json:"user_id" gorm:"index:idx_member_room_user"`
	Role     string     `json:"role"`
	IsActive bool       `json:"is_active"`
	JoinedAt time.Time  `json:"joined_at"`
	LeftAt   *time.Time `json:"left_at"`
}

func (m *Membership) IsOwner() bool {
	return m.Role == RoleOwner
}

func (m *Membership) IsModerator() bool {
	return m.Role == RoleModerator
}

// CanManageRoom reports whether the member may control playback, manage
// invites and delete chat messages.
func (m *Membership) CanManageRoom() bool {
	return m.Role == RoleOwner || m.Role == RoleModerator
}
