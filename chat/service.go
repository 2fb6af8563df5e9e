// Package chat implements the room chat relay: message validation,
// moderation, throttling, history and moderator deletion.
package chat

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/esc4n0rx/streamhive/config"
	"github.com/esc4n0rx/streamhive/filter"
	"github.com/esc4n0rx/streamhive/persistence"
	"github.com/esc4n0rx/streamhive/ratelimit"
	"github.com/esc4n0rx/streamhive/types"
)

type Service struct {
	persister persistence.Persister
	moderator *filter.Moderator
	limiter   *ratelimit.Limiter
	cooldown  *ratelimit.Cooldown

	limits  config.LimitsConfig
	history config.HistoryConfig

	now func() time.Time
}

func NewService(cfg *config.Config, persister persistence.Persister, moderator *filter.Moderator) *Service {
	return &Service{
		persister: persister,
		moderator: moderator,
		limiter:   ratelimit.NewLimiter(cfg.LimitsConfig.ChatMax, cfg.LimitsConfig.ChatWindow),
		cooldown:  ratelimit.NewCooldown(cfg.LimitsConfig.ChatCooldown),
		limits:    cfg.LimitsConfig,
		history:   cfg.HistoryConfig,
		now:       time.Now,
	}
}

// Send validates, moderates and persists a chat message from a room member.
// The returned message carries its content-hash id and server timestamp.
func (s *Service) Send(roomId string, user *types.User, message, messageType string) (*types.ChatMessage, error) {
	if messageType == "" {
		messageType = types.MessageTypeText
	}
	if messageType != types.MessageTypeText && messageType != types.MessageTypeEmoji {
		return nil, types.ValidationError("invalid message type")
	}
	if strings.TrimSpace(message) == "" {
		return nil, types.ValidationError("message must not be empty")
	}
	// length limit counts characters, not bytes
	if utf8.RuneCountInString(message) > s.limits.MaxMessageSize {
		return nil, types.ValidationError("message is too long")
	}

	membership, err := s.persister.FindMembership(user.Id, roomId)
	if err != nil {
		return nil, err
	}
	if membership == nil || !membership.IsActive {
		return nil, types.NewError(types.ErrCodeNotAMember, "you are not a member of this room")
	}

	if !s.limiter.Allow(user.Id) {
		return nil, types.NewError(types.ErrCodeRateLimited, "too many messages, slow down")
	}
	if !s.cooldown.Allow(user.Id) {
		return nil, types.NewError(types.ErrCodeCooldown, "please wait before sending another message")
	}

	sanitized := s.moderator.Sanitize(message)
	env := filter.Env{
		UserId:      user.Id,
		Name:        user.Name,
		Role:        membership.Role,
		Message:     sanitized,
		MessageType: messageType,
	}
	if s.moderator.Blocked(env) {
		return nil, types.ForbiddenError("message rejected by moderation rules")
	}

	userId := user.Id
	msg := &types.ChatMessage{
		RoomId:      roomId,
		UserId:      &userId,
		UserName:    user.Name,
		Message:     sanitized,
		MessageType: messageType,
		Timestamp:   s.now(),
	}
	if err := msg.CreateId(); err != nil {
		return nil, err
	}
	if err := s.persister.CreateMessage(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// SendSystem persists a server-generated announcement for a room. System
// messages bypass membership checks, throttling and moderation.
func (s *Service) SendSystem(roomId, text string) (*types.ChatMessage, error) {
	msg := &types.ChatMessage{
		RoomId:      roomId,
		UserName:    "System",
		Message:     text,
		MessageType: types.MessageTypeSystem,
		Timestamp:   s.now(),
	}
	if err := msg.CreateId(); err != nil {
		return nil, err
	}
	if err := s.persister.CreateMessage(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// History returns the most recent messages of a room in chronological order.
// A non-positive limit falls back to the configured default, larger requests
// are capped.
func (s *Service) History(roomId string, limit int) ([]*types.ChatMessage, error) {
	if limit <= 0 {
		limit = s.history.DefaultLimit
	}
	if limit > s.history.MaxLimit {
		limit = s.history.MaxLimit
	}
	return s.persister.FindMessages(roomId, limit)
}

// Delete removes a message from a room. Only owners and moderators may
// delete, and the message must belong to the given room. Deletion is hard,
// there is no tombstone.
func (s *Service) Delete(roomId, userId, messageId string) error {
	membership, err := s.persister.FindMembership(userId, roomId)
	if err != nil {
		return err
	}
	if membership == nil || !membership.IsActive || !membership.CanManageRoom() {
		return types.ForbiddenError("only owners and moderators may delete messages")
	}
	msg, err := s.persister.GetMessage(messageId)
	if err != nil {
		return err
	}
	if msg == nil || msg.RoomId != roomId {
		return types.NotFoundError("message not found")
	}
	return s.persister.DeleteMessage(messageId)
}
