package ws

import (
	"encoding/json"

	"github.com/esc4n0rx/streamhive/playback"
	"github.com/esc4n0rx/streamhive/types"
)

func (s *Server) handleStartStream(c *Client, data json.RawMessage) {
	req := types.StartStreamRequest{}
	if err := decodePayload(data, &req); err != nil {
		s.nack(c, types.EventStartStream, err)
		return
	}
	if req.RoomId == "" {
		req.RoomId = c.Room()
	}
	if req.RoomId == "" {
		s.nack(c, types.EventStartStream, types.ValidationError("roomId is required"))
		return
	}
	if !playback.ValidVideoURL(req.VideoUrl) {
		s.nack(c, types.EventStartStream, types.ValidationError("videoUrl must be a valid http(s) URL"))
		return
	}

	session, err := s.playback.Start(req.RoomId, c.user.Id, req.VideoUrl, req.Title, req.Description)
	if err != nil {
		s.nack(c, types.EventStartStream, err)
		return
	}
	if hub := s.registry.Get(req.RoomId); hub != nil {
		hub.BroadcastEvent(types.EventStreamStarted, types.SuccessResponse(map[string]interface{}{
			"roomId":    req.RoomId,
			"session":   session.Public(),
			"startedBy": c.user.Id,
		}), c)
		s.announce(hub, req.RoomId, c.user.Name+" started a stream")
	}
	s.ack(c, types.EventStartStream, session.Public())
}

func (s *Server) handleStopStream(c *Client, data json.RawMessage) {
	req := types.RoomRequest{}
	if err := decodePayload(data, &req); err != nil {
		s.nack(c, types.EventStopStream, err)
		return
	}
	if req.RoomId == "" {
		req.RoomId = c.Room()
	}
	if req.RoomId == "" {
		s.nack(c, types.EventStopStream, types.ValidationError("roomId is required"))
		return
	}

	session, err := s.playback.Stop(req.RoomId, c.user.Id)
	if err != nil {
		s.nack(c, types.EventStopStream, err)
		return
	}
	if hub := s.registry.Get(req.RoomId); hub != nil {
		hub.BroadcastEvent(types.EventStreamStopped, types.SuccessResponse(map[string]interface{}{
			"roomId":    req.RoomId,
			"sessionId": session.Id,
			"stoppedBy": c.user.Id,
		}), c)
		s.announce(hub, req.RoomId, "The stream has ended")
	}
	s.ack(c, types.EventStopStream, session.Public())
}

func (s *Server) handlePlayVideo(c *Client, data json.RawMessage) {
	s.handlePlayback(c, data, types.EventPlayVideo, types.EventVideoPlayed, true)
}

func (s *Server) handlePauseVideo(c *Client, data json.RawMessage) {
	s.handlePlayback(c, data, types.EventPauseVideo, types.EventVideoPaused, false)
}

// handlePlayback applies play and pause, which differ only in the target
// play state. The actor receives the ack; everyone else a broadcast carrying
// the freshly projected position.
func (s *Server) handlePlayback(c *Client, data json.RawMessage, event, broadcastEvent string, playing bool) {
	req := types.PlaybackRequest{}
	if err := decodePayload(data, &req); err != nil {
		s.nack(c, event, err)
		return
	}
	if req.RoomId == "" {
		req.RoomId = c.Room()
	}
	if req.RoomId == "" {
		s.nack(c, event, types.ValidationError("roomId is required"))
		return
	}

	session, err := s.playback.SetPlaying(req.RoomId, c.user.Id, playing, req.CurrentTime)
	if err != nil {
		s.nack(c, event, err)
		return
	}
	s.broadcastPlayback(c, req.RoomId, broadcastEvent, session)
	s.ack(c, event, s.playbackPayload(req.RoomId, session, c.user.Id))
}

func (s *Server) handleSeekVideo(c *Client, data json.RawMessage) {
	req := types.SeekRequest{}
	if err := decodePayload(data, &req); err != nil {
		s.nack(c, types.EventSeekVideo, err)
		return
	}
	if req.RoomId == "" {
		req.RoomId = c.Room()
	}
	if req.RoomId == "" {
		s.nack(c, types.EventSeekVideo, types.ValidationError("roomId is required"))
		return
	}
	if req.Position == nil {
		s.nack(c, types.EventSeekVideo, types.ValidationError("position is required"))
		return
	}

	session, err := s.playback.Seek(req.RoomId, c.user.Id, *req.Position)
	if err != nil {
		s.nack(c, types.EventSeekVideo, err)
		return
	}
	s.broadcastPlayback(c, req.RoomId, types.EventVideoSeeked, session)
	s.ack(c, types.EventSeekVideo, s.playbackPayload(req.RoomId, session, c.user.Id))
}

func (s *Server) handleSyncRequest(c *Client, data json.RawMessage) {
	req := types.RoomRequest{}
	if err := decodePayload(data, &req); err != nil {
		s.nack(c, types.EventSyncRequest, err)
		return
	}
	if req.RoomId == "" {
		req.RoomId = c.Room()
	}
	if req.RoomId == "" {
		s.nack(c, types.EventSyncRequest, types.ValidationError("roomId is required"))
		return
	}

	session, err := s.playback.Active(req.RoomId)
	if err != nil {
		s.nack(c, types.EventSyncRequest, err)
		return
	}
	if session == nil {
		s.nack(c, types.EventSyncRequest, types.NewError(types.ErrCodeNoActiveSession, "no active session in this room"))
		return
	}
	s.ack(c, types.EventSyncRequest, map[string]interface{}{
		"roomId": req.RoomId,
		"sync":   playback.ProjectSession(session, s.now()),
	})
}

func (s *Server) handleGetStreamStatus(c *Client, data json.RawMessage) {
	req := types.RoomRequest{}
	if err := decodePayload(data, &req); err != nil {
		s.nack(c, types.EventGetStreamStatus, err)
		return
	}
	if req.RoomId == "" {
		req.RoomId = c.Room()
	}
	if req.RoomId == "" {
		s.nack(c, types.EventGetStreamStatus, types.ValidationError("roomId is required"))
		return
	}
	s.ack(c, types.EventGetStreamStatus, s.streamStatus(req.RoomId))
}

func (s *Server) broadcastPlayback(c *Client, roomId, event string, session *types.PlaybackSession) {
	hub := s.registry.Get(roomId)
	if hub == nil {
		return
	}
	hub.BroadcastEvent(event, types.SuccessResponse(s.playbackPayload(roomId, session, c.user.Id)), c)
}

func (s *Server) playbackPayload(roomId string, session *types.PlaybackSession, actorId string) map[string]interface{} {
	return map[string]interface{}{
		"roomId":    roomId,
		"sessionId": session.Id,
		"updatedBy": actorId,
		"sync":      playback.ProjectSession(session, s.now()),
	}
}

// streamStatus is the shared "is something playing here" view used by room
// info, join acks and the status query.
func (s *Server) streamStatus(roomId string) map[string]interface{} {
	session, err := s.playback.Active(roomId)
	if err != nil || session == nil {
		return map[string]interface{}{"isStreaming": false}
	}
	return map[string]interface{}{
		"isStreaming": true,
		"session":     session.Public(),
		"sync":        playback.ProjectSession(session, s.now()),
	}
}
