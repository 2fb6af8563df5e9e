package types

import "time"

// Room is a named group of participants sharing one playback session and one
// chat stream. Presence in a room (live connections) is tracked by the ws hub,
// persisted membership by the Membership entity.
type Room struct {
	Id              string        `json:"id" gorm:"primaryKey"`
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	Code            string        `json:"code" gorm:"uniqueIndex"`
	OwnerId         string        `json:"owner_id"`
	IsPublic        bool          `json:"is_public"`
	MaxParticipants int           `json:"max_participants"`
	IsActive        bool          `json:"is_active"`
	Settings        JSONStringMap `json:"settings"`
	CreatedAt       time.Time     `json:"-"`
	UpdatedAt       time.Time     `json:"-"`
}

// ChannelName derives the internal addressing channel for a room. It is never
// exposed as a stable external contract beyond the room id itself.
func ChannelName(roomId string) string {
	return "room_" + roomId
}

func (r *Room) Public() map[string]interface{} {
	return map[string]interface{}{
		"id":              r.Id,
		"name":            r.Name,
		"description":     r.Description,
		"code":            r.Code,
		"ownerId":         r.OwnerId,
		"isPublic":        r.IsPublic,
		"maxParticipants": r.MaxParticipants,
		"isActive":        r.IsActive,
	}
}
