package signaling

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // SDP offers run a few KB; chat stays small
)

// Client is one websocket participant in a room. The read pump feeds the hub;
// the write pump drains the buffered send queue so a stalled peer cannot block
// a broadcast.
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan Envelope
	id            string
	roomID        string
	appointmentID string
	actorID       string
	role          string

	mu     sync.Mutex
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, roomID, appointmentID, actorID, role string) *Client {
	return &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan Envelope, hub.sendBuffer),
		id:            uuid.NewString(),
		roomID:        roomID,
		appointmentID: appointmentID,
		actorID:       actorID,
		role:          role,
	}
}

// enqueue queues an envelope for delivery. It reports false when the client is
// gone or its queue is full.
func (c *Client) enqueue(env Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// shutdown closes the send queue, which lets the write pump finish and close
// the socket. Idempotent.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("signaling: read failed", "room", c.roomID, "error", err)
			}
			return
		}
		c.hub.relay(c, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
