package ws

import (
	"encoding/json"

	"github.com/esc4n0rx/streamhive/globals"
	"github.com/esc4n0rx/streamhive/types"
)

func (s *Server) handleJoinRoom(c *Client, data json.RawMessage) {
	req := types.RoomRequest{}
	if err := decodePayload(data, &req); err != nil {
		s.nack(c, types.EventJoinRoom, err)
		return
	}
	if req.RoomId == "" {
		s.nack(c, types.EventJoinRoom, types.ValidationError("roomId is required"))
		return
	}

	room, err := s.findRoom(req.RoomId)
	if err != nil {
		s.nack(c, types.EventJoinRoom, err)
		return
	}

	membership, err := s.persister.FindMembership(c.user.Id, room.Id)
	if err != nil {
		s.nack(c, types.EventJoinRoom, err)
		return
	}
	if membership == nil || !membership.IsActive {
		s.nack(c, types.EventJoinRoom, types.NewError(types.ErrCodeNotAMember, "you are not a member of this room"))
		return
	}

	if current := c.Room(); current != "" && current != room.Id {
		s.leaveCurrentRoom(c, true)
	}

	hub := s.registry.GetOrCreate(room.Id)
	hub.add(c)
	c.setRoom(room.Id)

	hub.BroadcastEvent(types.EventUserJoined, types.SuccessResponse(map[string]interface{}{
		"roomId": room.Id,
		"user":   c.user.Public(),
	}), c)
	s.announce(hub, room.Id, c.user.Name+" joined the room")

	memberCount, err := s.persister.CountActiveMembers(room.Id)
	if err != nil {
		globals.AppLogger.Warn("could not count members", "room", room.Id, "error", err)
	}
	s.ack(c, types.EventJoinRoom, map[string]interface{}{
		"room":        room.Public(),
		"role":        membership.Role,
		"memberCount": memberCount,
		"onlineUsers": hub.OnlineUsers(),
		"stream":      s.streamStatus(room.Id),
	})
}

func (s *Server) handleLeaveRoom(c *Client, data json.RawMessage) {
	req := types.LeaveRoomRequest{}
	if err := decodePayload(data, &req); err != nil {
		s.nack(c, types.EventLeaveRoom, err)
		return
	}
	roomId := c.Room()
	// naming a room the connection is not in leaves presence untouched
	if req.RoomId == "" || req.RoomId == roomId {
		s.leaveCurrentRoom(c, true)
	}
	// leaving is idempotent, a second leave still succeeds
	s.ack(c, types.EventLeaveRoom, map[string]interface{}{"roomId": roomId})
}

func (s *Server) handleGetRoomInfo(c *Client, data json.RawMessage) {
	req := types.RoomRequest{}
	if err := decodePayload(data, &req); err != nil {
		s.nack(c, types.EventGetRoomInfo, err)
		return
	}
	if req.RoomId == "" {
		req.RoomId = c.Room()
	}
	room := types.Room{Id: req.RoomId}
	if req.RoomId == "" || s.persister.GetRoom(&room) != nil {
		s.nack(c, types.EventGetRoomInfo, types.NewError(types.ErrCodeRoomNotFound, "room not found"))
		return
	}

	memberCount, err := s.persister.CountActiveMembers(room.Id)
	if err != nil {
		s.nack(c, types.EventGetRoomInfo, err)
		return
	}
	onlineUsers := []map[string]interface{}{}
	if hub := s.registry.Get(room.Id); hub != nil {
		onlineUsers = hub.OnlineUsers()
	}
	s.ack(c, types.EventGetRoomInfo, map[string]interface{}{
		"room":        room.Public(),
		"memberCount": memberCount,
		"onlineUsers": onlineUsers,
		"stream":      s.streamStatus(room.Id),
	})
}

// leaveCurrentRoom detaches the client from its room, notifies the remaining
// members and cancels a pending typing indicator. It is a no-op when the
// client is in no room.
func (s *Server) leaveCurrentRoom(c *Client, announce bool) {
	roomId := c.Room()
	if roomId == "" {
		return
	}
	wasTyping := s.typing.Stop(roomId, c.user.Id)
	s.registry.Release(roomId, c)
	c.setRoom("")

	hub := s.registry.Get(roomId)
	if hub == nil {
		return
	}
	if wasTyping {
		hub.BroadcastEvent(types.EventTypingStopped, types.SuccessResponse(map[string]interface{}{
			"roomId": roomId,
			"userId": c.user.Id,
		}), nil)
	}
	hub.BroadcastEvent(types.EventUserLeft, types.SuccessResponse(map[string]interface{}{
		"roomId": roomId,
		"user":   c.user.Public(),
	}), nil)
	if announce {
		s.announce(hub, roomId, c.user.Name+" left the room")
	}
}

// announce persists a system message and fans it out to the room.
func (s *Server) announce(hub *Hub, roomId, text string) {
	msg, err := s.chat.SendSystem(roomId, text)
	if err != nil {
		globals.AppLogger.Warn("could not store system message", "room", roomId, "error", err)
		return
	}
	hub.BroadcastEvent(types.EventNewMessage, types.SuccessResponse(msg.Public()), nil)
}

// findRoom resolves a room by id, falling back to its join code, and accepts
// only active rooms.
func (s *Server) findRoom(idOrCode string) (*types.Room, error) {
	room := types.Room{Id: idOrCode}
	if err := s.persister.GetRoom(&room); err != nil {
		byCode, err := s.persister.GetRoomByCode(idOrCode)
		if err != nil {
			return nil, err
		}
		if byCode == nil {
			return nil, types.NewError(types.ErrCodeRoomNotFound, "room not found")
		}
		room = *byCode
	}
	if !room.IsActive {
		return nil, types.NewError(types.ErrCodeRoomNotFound, "room not found or inactive")
	}
	return &room, nil
}

func (s *Server) checkCapacity(room *types.Room) error {
	if room.MaxParticipants <= 0 {
		return nil
	}
	count, err := s.persister.CountActiveMembers(room.Id)
	if err != nil {
		return err
	}
	if count >= room.MaxParticipants {
		return types.ConflictError("room is full")
	}
	return nil
}
