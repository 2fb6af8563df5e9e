// Package ws implements the websocket surface: connection admission, the
// per-room presence hubs, event dispatch and the broadcast fan-out.
package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/esc4n0rx/streamhive/auth"
	"github.com/esc4n0rx/streamhive/chat"
	"github.com/esc4n0rx/streamhive/config"
	"github.com/esc4n0rx/streamhive/globals"
	"github.com/esc4n0rx/streamhive/persistence"
	"github.com/esc4n0rx/streamhive/playback"
	"github.com/esc4n0rx/streamhive/ratelimit"
	"github.com/esc4n0rx/streamhive/types"
	"github.com/gorilla/websocket"
	"github.com/mitchellh/mapstructure"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type handlerFunc func(c *Client, data json.RawMessage)

// Server wires every connection to the domain services. One Server instance
// serves all rooms.
type Server struct {
	cfg        *config.Config
	persister  persistence.Persister
	gatekeeper *auth.Gatekeeper
	chat       *chat.Service
	playback   *playback.Service

	registry     *Registry
	typing       *typingTracker
	eventLimiter *ratelimit.Limiter

	handlers map[string]handlerFunc

	now func() time.Time
}

func NewServer(cfg *config.Config, persister persistence.Persister, gatekeeper *auth.Gatekeeper, chatSvc *chat.Service, playbackSvc *playback.Service) *Server {
	s := &Server{
		cfg:          cfg,
		persister:    persister,
		gatekeeper:   gatekeeper,
		chat:         chatSvc,
		playback:     playbackSvc,
		registry:     NewRegistry(),
		typing:       newTypingTracker(cfg.LimitsConfig.TypingExpiry),
		eventLimiter: ratelimit.NewLimiter(cfg.LimitsConfig.EventMax, cfg.LimitsConfig.EventWindow),
		now:          time.Now,
	}
	s.handlers = map[string]handlerFunc{
		types.EventJoinRoom:        s.handleJoinRoom,
		types.EventLeaveRoom:       s.handleLeaveRoom,
		types.EventGetRoomInfo:     s.handleGetRoomInfo,
		types.EventSendMessage:     s.handleSendMessage,
		types.EventGetChatHistory:  s.handleGetChatHistory,
		types.EventDeleteMessage:   s.handleDeleteMessage,
		types.EventTypingStart:     s.handleTypingStart,
		types.EventTypingStop:      s.handleTypingStop,
		types.EventStartStream:     s.handleStartStream,
		types.EventStopStream:      s.handleStopStream,
		types.EventPlayVideo:       s.handlePlayVideo,
		types.EventPauseVideo:      s.handlePauseVideo,
		types.EventSeekVideo:       s.handleSeekVideo,
		types.EventSyncRequest:     s.handleSyncRequest,
		types.EventGetStreamStatus: s.handleGetStreamStatus,
		types.EventCreateInvite:    s.handleCreateInvite,
		types.EventUseInvite:       s.handleUseInvite,
		types.EventListInvites:     s.handleListInvites,
		types.EventRevokeInvite:    s.handleRevokeInvite,
		types.EventPing:            s.handlePing,
	}
	return s
}

// Registry exposes the presence registry, mainly for periodic stats.
func (s *Server) Registry() *Registry {
	return s.registry
}

// HandleWebsocket is the single websocket endpoint. The connection token is
// taken from the "token" query parameter or the Authorization header; an
// optional "provider" parameter selects OIDC verification. Unauthenticated
// connections are refused before the upgrade.
func (s *Server) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	provider := r.URL.Query().Get("provider")

	user, err := s.gatekeeper.Authenticate(r.Context(), token, provider)
	if err != nil {
		globals.AppLogger.Info("connection refused", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		globals.AppLogger.Error("could not upgrade connection", "error", err)
		return
	}
	globals.AppLogger.Info("client connected", "user", user.Id, "remote", r.RemoteAddr)

	user.LastOnline = s.now()
	if err := s.persister.StoreUser(*user); err != nil {
		globals.AppLogger.Warn("could not update last online", "user", user.Id, "error", err)
	}

	client := newClient(conn, user)
	go client.WriteLoop()
	client.SendEvent(types.EventConnected, types.SuccessResponse(map[string]interface{}{
		"connectionId": client.id,
		"user":         user.Public(),
		"serverTime":   s.now(),
	}))
	client.ReadLoop(s)
}

// dispatch routes one inbound frame. Frames of one connection are handled
// strictly in order because ReadLoop calls this synchronously.
func (s *Server) dispatch(c *Client, msg types.WebsocketMessage) {
	handler, ok := s.handlers[msg.Event]
	if !ok {
		c.SendEvent("error", types.ErrorResponse(types.ValidationError("unknown event: "+msg.Event)))
		return
	}
	if msg.Event != types.EventPing && !s.eventLimiter.Allow(c.user.Id) {
		s.nack(c, msg.Event, types.NewError(types.ErrCodeRateLimited, "too many events, slow down"))
		return
	}
	handler(c, msg.Data)
}

// disconnect detaches the client from its room. The event limiter keeps the
// user's window: reconnecting must not grant a fresh budget.
func (s *Server) disconnect(c *Client) {
	globals.AppLogger.Info("client disconnected", "user", c.user.Id)
	s.leaveCurrentRoom(c, false)
}

// Request/response event names. Most operations reply on
// <event>_success / <event>_error; queries carry their own response names.
var responseEvents = map[string][2]string{
	types.EventSyncRequest:     {"sync_response", "sync_error"},
	types.EventGetStreamStatus: {"stream_status_response", "stream_status_error"},
	types.EventGetChatHistory:  {"chat_history_response", "chat_history_error"},
}

func (s *Server) ack(c *Client, event string, data interface{}) {
	name := event + "_success"
	if names, ok := responseEvents[event]; ok {
		name = names[0]
	}
	c.SendEvent(name, types.SuccessResponse(data))
}

func (s *Server) nack(c *Client, event string, err error) {
	// typing failures are deliberately silent
	if event == types.EventTypingStart || event == types.EventTypingStop {
		return
	}
	name := event + "_error"
	if names, ok := responseEvents[event]; ok {
		name = names[1]
	}
	c.SendEvent(name, types.ErrorResponse(types.AsError(err)))
}

// decodePayload binds a raw JSON payload onto a request struct. Decoding is
// weak, so clients sending numbers as strings still bind.
func decodePayload(data json.RawMessage, out interface{}) error {
	payload := map[string]interface{}{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return types.ValidationError("malformed payload")
		}
	}
	if err := mapstructure.WeakDecode(payload, out); err != nil {
		return types.ValidationError("malformed payload")
	}
	return nil
}

func (s *Server) handlePing(c *Client, _ json.RawMessage) {
	c.SendEvent(types.EventPong, types.SuccessResponse(map[string]interface{}{
		"serverTime": s.now(),
	}))
}
