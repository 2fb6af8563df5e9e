package types

import (
	"encoding/json"
	"time"
)

// Inbound event names.
const (
	EventJoinRoom        = "join_room"
	EventLeaveRoom       = "leave_room"
	EventGetRoomInfo     = "get_room_info"
	EventSendMessage     = "send_message"
	EventGetChatHistory  = "get_chat_history"
	EventDeleteMessage   = "delete_message"
	EventTypingStart     = "typing_start"
	EventTypingStop      = "typing_stop"
	EventStartStream     = "start_stream"
	EventStopStream      = "stop_stream"
	EventPlayVideo       = "play_video"
	EventPauseVideo      = "pause_video"
	EventSeekVideo       = "seek_video"
	EventSyncRequest     = "sync_request"
	EventGetStreamStatus = "get_stream_status"
	EventCreateInvite    = "create_invite"
	EventUseInvite       = "use_invite"
	EventListInvites     = "list_invites"
	EventRevokeInvite    = "revoke_invite"
	EventPing            = "ping"
)

// Outbound broadcast event names.
const (
	EventConnected      = "connected"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventNewMessage     = "new_message"
	EventMessageDeleted = "message_deleted"
	EventTypingStarted  = "typing_started"
	EventTypingStopped  = "typing_stopped"
	EventStreamStarted  = "stream_started"
	EventStreamStopped  = "stream_stopped"
	EventVideoPlayed    = "video_played"
	EventVideoPaused    = "video_paused"
	EventVideoSeeked    = "video_seeked"
	EventInviteCreated  = "invite_created"
	EventPong           = "pong"
)

// WebsocketMessage is the frame actually exchanged over the connection: an
// event name plus a JSON payload.
type WebsocketMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Response is the uniform payload envelope carried in every outbound frame.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *Error      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(data interface{}) Response {
	return Response{Success: true, Data: data, Timestamp: time.Now()}
}

func ErrorResponse(err *Error) Response {
	return Response{Success: false, Error: err, Timestamp: time.Now()}
}

// Inbound payloads. Field names follow the wire contract (camelCase); payloads
// are weak-decoded, so numeric types arriving as strings still bind.

type RoomRequest struct {
	RoomId string `mapstructure:"roomId"`
}

type LeaveRoomRequest struct {
	RoomId string `mapstructure:"roomId"`
}

type SendMessageRequest struct {
	RoomId      string `mapstructure:"roomId"`
	Message     string `mapstructure:"message"`
	MessageType string `mapstructure:"messageType"`
}

type ChatHistoryRequest struct {
	RoomId string `mapstructure:"roomId"`
	Limit  int    `mapstructure:"limit"`
}

type DeleteMessageRequest struct {
	RoomId    string `mapstructure:"roomId"`
	MessageId string `mapstructure:"messageId"`
}

type StartStreamRequest struct {
	RoomId      string `mapstructure:"roomId"`
	VideoUrl    string `mapstructure:"videoUrl"`
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
}

type PlaybackRequest struct {
	RoomId      string   `mapstructure:"roomId"`
	CurrentTime *float64 `mapstructure:"currentTime"`
}

type SeekRequest struct {
	RoomId   string   `mapstructure:"roomId"`
	Position *float64 `mapstructure:"position"`
}

type CreateInviteRequest struct {
	RoomId         string `mapstructure:"roomId"`
	InvitedEmail   string `mapstructure:"invitedEmail"`
	ExpiresInHours int    `mapstructure:"expiresInHours"`
}

type UseInviteRequest struct {
	InviteCode string `mapstructure:"inviteCode"`
}

type ListInvitesRequest struct {
	RoomId string `mapstructure:"roomId"`
}

type RevokeInviteRequest struct {
	InviteId string `mapstructure:"inviteId"`
}
