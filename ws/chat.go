package ws

import (
	"encoding/json"

	"github.com/esc4n0rx/streamhive/types"
)

func (s *Server) handleSendMessage(c *Client, data json.RawMessage) {
	req := types.SendMessageRequest{}
	if err := decodePayload(data, &req); err != nil {
		s.nack(c, types.EventSendMessage, err)
		return
	}
	if req.RoomId == "" {
		req.RoomId = c.Room()
	}
	if req.RoomId == "" {
		s.nack(c, types.EventSendMessage, types.ValidationError("roomId is required"))
		return
	}

	msg, err := s.chat.Send(req.RoomId, c.user, req.Message, req.MessageType)
	if err != nil {
		s.nack(c, types.EventSendMessage, err)
		return
	}

	// sending a message ends the typing indicator
	if s.typing.Stop(req.RoomId, c.user.Id) {
		if hub := s.registry.Get(req.RoomId); hub != nil {
			hub.BroadcastEvent(types.EventTypingStopped, types.SuccessResponse(map[string]interface{}{
				"roomId": req.RoomId,
				"userId": c.user.Id,
			}), c)
		}
	}

	if hub := s.registry.Get(req.RoomId); hub != nil {
		hub.BroadcastEvent(types.EventNewMessage, types.SuccessResponse(msg.Public()), nil)
	}
	s.ack(c, types.EventSendMessage, msg.Public())
}

func (s *Server) handleGetChatHistory(c *Client, data json.RawMessage) {
	req := types.ChatHistoryRequest{}
	if err := decodePayload(data, &req); err != nil {
		s.nack(c, types.EventGetChatHistory, err)
		return
	}
	if req.RoomId == "" {
		req.RoomId = c.Room()
	}
	if req.RoomId == "" {
		s.nack(c, types.EventGetChatHistory, types.ValidationError("roomId is required"))
		return
	}

	messages, err := s.chat.History(req.RoomId, req.Limit)
	if err != nil {
		s.nack(c, types.EventGetChatHistory, err)
		return
	}
	public := make([]map[string]interface{}, 0, len(messages))
	for _, m := range messages {
		public = append(public, m.Public())
	}
	s.ack(c, types.EventGetChatHistory, map[string]interface{}{
		"roomId":   req.RoomId,
		"messages": public,
	})
}

func (s *Server) handleDeleteMessage(c *Client, data json.RawMessage) {
	req := types.DeleteMessageRequest{}
	if err := decodePayload(data, &req); err != nil {
		s.nack(c, types.EventDeleteMessage, err)
		return
	}
	if req.RoomId == "" {
		req.RoomId = c.Room()
	}
	if req.RoomId == "" || req.MessageId == "" {
		s.nack(c, types.EventDeleteMessage, types.ValidationError("roomId and messageId are required"))
		return
	}

	if err := s.chat.Delete(req.RoomId, c.user.Id, req.MessageId); err != nil {
		s.nack(c, types.EventDeleteMessage, err)
		return
	}
	if hub := s.registry.Get(req.RoomId); hub != nil {
		hub.BroadcastEvent(types.EventMessageDeleted, types.SuccessResponse(map[string]interface{}{
			"roomId":    req.RoomId,
			"messageId": req.MessageId,
			"deletedBy": c.user.Id,
		}), nil)
	}
	s.ack(c, types.EventDeleteMessage, map[string]interface{}{
		"roomId":    req.RoomId,
		"messageId": req.MessageId,
	})
}

// Typing indicators are fire-and-forget: failures produce no reply at all.

func (s *Server) handleTypingStart(c *Client, _ json.RawMessage) {
	roomId := c.Room()
	if roomId == "" {
		return
	}
	hub := s.registry.Get(roomId)
	if hub == nil {
		return
	}
	userId := c.user.Id
	s.typing.Start(roomId, userId, func() {
		if h := s.registry.Get(roomId); h != nil {
			h.BroadcastEvent(types.EventTypingStopped, types.SuccessResponse(map[string]interface{}{
				"roomId": roomId,
				"userId": userId,
			}), c)
		}
	})
	hub.BroadcastEvent(types.EventTypingStarted, types.SuccessResponse(map[string]interface{}{
		"roomId":   roomId,
		"userId":   userId,
		"userName": c.user.Name,
	}), c)
}

func (s *Server) handleTypingStop(c *Client, _ json.RawMessage) {
	roomId := c.Room()
	if roomId == "" {
		return
	}
	if !s.typing.Stop(roomId, c.user.Id) {
		return
	}
	if hub := s.registry.Get(roomId); hub != nil {
		hub.BroadcastEvent(types.EventTypingStopped, types.SuccessResponse(map[string]interface{}{
			"roomId": roomId,
			"userId": c.user.Id,
		}), c)
	}
}
