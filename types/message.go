package types

import (
	"fmt"
	"time"

	"github.com/mitchellh/hashstructure/v2"
)

const (
	MessageTypeText   = "text"
	MessageTypeSystem = "system"
	MessageTypeEmoji  = "emoji"
)

// ChatMessage is immutable once created, except for hard deletion by a
// moderator. A nil UserId marks a system message.
type ChatMessage struct {
	Id          string    `json:"id" gorm:"primaryKey" hash:"ignore"`
	RoomId      string    `json:"room_id" gorm:"index"`
	UserId      *string   `json:"user_id"`
	UserName    string    `json:"user_name" hash:"ignore"`
	Message     string    `json:"message"`
	MessageType string    `json:"message_type"`
	Timestamp   time.Time `json:"timestamp"`
}

// CreateId derives the message id from a content hash. Storage backends
// without server-side id generation key messages by this value.
func (m *ChatMessage) CreateId() error {
	hash, err := hashstructure.Hash(m, hashstructure.FormatV2, nil)
	if err != nil {
		return err
	}
	m.Id = fmt.Sprintf("%016x", hash)
	return nil
}

func (m *ChatMessage) IsSystem() bool {
	return m.MessageType == MessageTypeSystem
}

func (m *ChatMessage) Public() map[string]interface{} {
	return map[string]interface{}{
		"id":          m.Id,
		"roomId":      m.RoomId,
		"userId":      m.UserId,
		"userName":    m.UserName,
		"message":     m.Message,
		"messageType": m.MessageType,
		"timestamp":   m.Timestamp,
	}
}
