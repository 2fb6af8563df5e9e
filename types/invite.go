package types

import "time"

// RoomInvite lets owners and moderators bring new participants into a room
// via a short single-use code with an expiry.
type RoomInvite struct {
	Id           string     `json:"id" gorm:"primaryKey"`
	RoomId       string     `json:"room_id" gorm:"index"`
	InvitedBy    string     `json:"invited_by"`
	InvitedEmail string     `json:"invited_email"`
	Code         string     `json:"code" gorm:"uniqueIndex"`
	ExpiresAt    time.Time  `json:"expires_at"`
	UsedAt       *time.Time `json:"used_at"`
	UsedBy       *string    `json:"used_by"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (i *RoomInvite) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// IsValid reports whether the invite can still be redeemed.
func (i *RoomInvite) IsValid(now time.Time) bool {
	return i.IsActive && i.UsedAt == nil && !i.IsExpired(now)
}

func (i *RoomInvite) Public() map[string]interface{} {
	return map[string]interface{}{
		"id":           i.Id,
		"roomId":       i.RoomId,
		"invitedBy":    i.InvitedBy,
		"invitedEmail": i.InvitedEmail,
		"code":         i.Code,
		"expiresAt":    i.ExpiresAt,
		"usedAt":       i.UsedAt,
		"isActive":     i.IsActive,
	}
}
