package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/esc4n0rx/streamhive/globals"
	"github.com/esc4n0rx/streamhive/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 4096
	sendBufferSize = 64
)

// Client is one authenticated websocket connection. Inbound frames are
// handled sequentially in ReadLoop, so the effects of one connection's events
// are applied in the order they were sent. Outbound frames go through the
// buffered Send channel drained by WriteLoop.
type Client struct {
	id   string
	conn *websocket.Conn
	user *types.User

	Send chan types.WebsocketMessage

	mu     sync.Mutex
	roomId string

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn, user *types.User) *Client {
	return &Client{
		id:   uuid.New().String(),
		conn: conn,
		user: user,
		Send: make(chan types.WebsocketMessage, sendBufferSize),
		done: make(chan struct{}),
	}
}

func (c *Client) User() *types.User {
	return c.user
}

func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomId
}

func (c *Client) setRoom(roomId string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomId = roomId
}

// SendEvent queues an outbound frame. When the client's buffer is full the
// frame is dropped and logged; a stalled connection is closed by the write
// deadline, not here.
func (c *Client) SendEvent(event string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		globals.AppLogger.Error("could not marshal payload", "event", event, "error", err)
		return
	}
	msg := types.WebsocketMessage{Event: event, Data: raw}
	select {
	case <-c.done:
	case c.Send <- msg:
	default:
		globals.AppLogger.Warn("send buffer full, dropping frame", "user", c.user.Id, "event", event)
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// ReadLoop reads frames until the connection dies and dispatches each one to
// the server. It owns the connection teardown.
func (c *Client) ReadLoop(s *Server) {
	defer func() {
		s.disconnect(c)
		c.close()
	}()
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				globals.AppLogger.Debug("unexpected close", "user", c.user.Id, "error", err)
			}
			return
		}
		msg := types.WebsocketMessage{}
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.SendEvent("error", types.ErrorResponse(types.ValidationError("malformed frame")))
			continue
		}
		s.dispatch(c, msg)
	}
}

// WriteLoop drains the send channel onto the wire and keeps the connection
// alive with periodic pings.
func (c *Client) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
