package ws

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/esc4n0rx/streamhive/types"
	"github.com/google/uuid"
)

const (
	defaultInviteTTLHours = 24
	maxInviteTTLHours     = 24 * 7
)

func newInviteCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}

func (s *Server) handleCreateInvite(c *Client, data json.RawMessage) {
	req := types.CreateInviteRequest{}
	if err := decodePayload(data, &req); err != nil {
		s.nack(c, types.EventCreateInvite, err)
		return
	}
	if req.RoomId == "" {
		req.RoomId = c.Room()
	}
	if req.RoomId == "" {
		s.nack(c, types.EventCreateInvite, types.ValidationError("roomId is required"))
		return
	}
	if err := s.requireManager(c.user.Id, req.RoomId); err != nil {
		s.nack(c, types.EventCreateInvite, err)
		return
	}

	ttl := req.ExpiresInHours
	if ttl <= 0 {
		ttl = defaultInviteTTLHours
	}
	if ttl > maxInviteTTLHours {
		ttl = maxInviteTTLHours
	}
	now := s.now()
	invite := &types.RoomInvite{
		Id:           uuid.New().String(),
		RoomId:       req.RoomId,
		InvitedBy:    c.user.Id,
		InvitedEmail: req.InvitedEmail,
		Code:         newInviteCode(),
		ExpiresAt:    now.Add(time.Duration(ttl) * time.Hour),
		IsActive:     true,
		CreatedAt:    now,
	}
	if err := s.persister.CreateInvite(invite); err != nil {
		s.nack(c, types.EventCreateInvite, err)
		return
	}
	if hub := s.registry.Get(req.RoomId); hub != nil {
		hub.BroadcastEvent(types.EventInviteCreated, types.SuccessResponse(map[string]interface{}{
			"roomId":    req.RoomId,
			"invitedBy": c.user.Id,
		}), c)
	}
	s.ack(c, types.EventCreateInvite, invite.Public())
}

func (s *Server) handleUseInvite(c *Client, data json.RawMessage) {
	req := types.UseInviteRequest{}
	if err := decodePayload(data, &req); err != nil {
		s.nack(c, types.EventUseInvite, err)
		return
	}
	if req.InviteCode == "" {
		s.nack(c, types.EventUseInvite, types.ValidationError("inviteCode is required"))
		return
	}

	invite, err := s.persister.FindInviteByCode(strings.ToUpper(req.InviteCode))
	if err != nil {
		s.nack(c, types.EventUseInvite, err)
		return
	}
	now := s.now()
	if invite == nil || !invite.IsValid(now) {
		s.nack(c, types.EventUseInvite, types.NotFoundError("invite not found, expired or already used"))
		return
	}
	room := types.Room{Id: invite.RoomId}
	if err := s.persister.GetRoom(&room); err != nil || !room.IsActive {
		s.nack(c, types.EventUseInvite, types.NewError(types.ErrCodeRoomNotFound, "room not found or inactive"))
		return
	}

	membership, err := s.persister.FindMembership(c.user.Id, room.Id)
	if err != nil {
		s.nack(c, types.EventUseInvite, err)
		return
	}
	if membership != nil && membership.IsActive {
		s.nack(c, types.EventUseInvite, types.ConflictError("already a member of this room"))
		return
	}
	if err := s.checkCapacity(&room); err != nil {
		s.nack(c, types.EventUseInvite, err)
		return
	}
	role := types.RoleParticipant
	m := types.Membership{
		Id:       uuid.New().String(),
		RoomId:   room.Id,
		UserId:   c.user.Id,
		Role:     types.RoleParticipant,
		IsActive: true,
		JoinedAt: now,
	}
	if membership != nil {
		// rejoining through a fresh invite keeps the old id and role
		m.Id = membership.Id
		m.Role = membership.Role
		m.JoinedAt = membership.JoinedAt
		role = membership.Role
	}
	if err := s.persister.StoreMembership(m); err != nil {
		s.nack(c, types.EventUseInvite, err)
		return
	}

	userId := c.user.Id
	invite.UsedAt = &now
	invite.UsedBy = &userId
	invite.IsActive = false
	if err := s.persister.UpdateInvite(invite); err != nil {
		s.nack(c, types.EventUseInvite, err)
		return
	}
	s.ack(c, types.EventUseInvite, map[string]interface{}{
		"room": room.Public(),
		"role": role,
	})
}

func (s *Server) handleListInvites(c *Client, data json.RawMessage) {
	req := types.ListInvitesRequest{}
	if err := decodePayload(data, &req); err != nil {
		s.nack(c, types.EventListInvites, err)
		return
	}
	if req.RoomId == "" {
		req.RoomId = c.Room()
	}
	if req.RoomId == "" {
		s.nack(c, types.EventListInvites, types.ValidationError("roomId is required"))
		return
	}
	if err := s.requireManager(c.user.Id, req.RoomId); err != nil {
		s.nack(c, types.EventListInvites, err)
		return
	}
	invites, err := s.persister.FindInvitesByRoom(req.RoomId)
	if err != nil {
		s.nack(c, types.EventListInvites, err)
		return
	}
	public := make([]map[string]interface{}, 0, len(invites))
	for _, i := range invites {
		public = append(public, i.Public())
	}
	s.ack(c, types.EventListInvites, map[string]interface{}{
		"roomId":  req.RoomId,
		"invites": public,
	})
}

func (s *Server) handleRevokeInvite(c *Client, data json.RawMessage) {
	req := types.RevokeInviteRequest{}
	if err := decodePayload(data, &req); err != nil {
		s.nack(c, types.EventRevokeInvite, err)
		return
	}
	if req.InviteId == "" {
		s.nack(c, types.EventRevokeInvite, types.ValidationError("inviteId is required"))
		return
	}
	invite, err := s.persister.GetInvite(req.InviteId)
	if err != nil {
		s.nack(c, types.EventRevokeInvite, err)
		return
	}
	if invite == nil {
		s.nack(c, types.EventRevokeInvite, types.NotFoundError("invite not found"))
		return
	}
	if err := s.requireManager(c.user.Id, invite.RoomId); err != nil {
		s.nack(c, types.EventRevokeInvite, err)
		return
	}
	invite.IsActive = false
	if err := s.persister.UpdateInvite(invite); err != nil {
		s.nack(c, types.EventRevokeInvite, err)
		return
	}
	s.ack(c, types.EventRevokeInvite, map[string]interface{}{"inviteId": invite.Id})
}

func (s *Server) requireManager(userId, roomId string) error {
	membership, err := s.persister.FindMembership(userId, roomId)
	if err != nil {
		return err
	}
	if membership == nil || !membership.IsActive || !membership.CanManageRoom() {
		return types.ForbiddenError("only owners and moderators may manage invites")
	}
	return nil
}
