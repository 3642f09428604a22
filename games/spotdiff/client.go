package spotdiff

import (
	"errors"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	sendBuffer   = 32
	maxFrameSize = 64 * 1024
)

// Client is one websocket connection. rooms and closed belong to the hub
// goroutine.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan any
	rooms  map[string]struct{}
	closed bool
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		id:    uuid.NewString(),
		conn:  conn,
		send:  make(chan any, sendBuffer),
		rooms: make(map[string]struct{}),
	}
}

// ServeConn registers conn with the hub and blocks until it disconnects.
func (h *Hub) ServeConn(conn *websocket.Conn) {
	c := newClient(conn)

	if !h.enqueue(registerEvent{client: c}) {
		_ = conn.Close()
		return
	}

	go c.writePump()
	c.readPump(h)
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.enqueue(unregisterEvent{client: c})
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.opts.Logf("ROOMS: Connection %s read error: %v", c.id, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		msg, err := DecodeInbound(data)
		if err != nil {
			switch {
			case errors.Is(err, errUnknownType), errors.Is(err, errMissingField):
				h.opts.Logf("ROOMS: Dropped message from %s: %v", c.id, err)
			default:
				h.opts.Logf("ROOMS: Malformed message from %s: %v", c.id, err)
			}
			continue
		}

		if !h.enqueue(messageEvent{client: c, msg: msg}) {
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}

	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
