package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	// sendTimeout bounds a single frame or control write.
	sendTimeout = 10 * time.Second

	// pongTimeout is how long a client may stay silent before the read
	// side gives up on it. pingInterval has to undercut it so a healthy
	// client always gets a ping in time.
	pongTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second

	// readLimit caps inbound frames; dashboards only ever send pongs.
	readLimit = 4096
)

// Client is one attached websocket connection. Frames reach it through
// the send channel; only its writer goroutine touches the connection for
// writes.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewClient attaches a connection to the hub. If the hub has already
// stopped, the client is handed a closed send channel so its pumps unwind
// immediately.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	select {
	case hub.register <- client:
	case <-hub.done:
		close(client.send)
	}
	return client
}

// Run blocks until the connection closes; call it from the websocket
// handler.
func (c *Client) Run() {
	go c.writer()
	c.reader()
}

// reader exists to notice the disconnect and feed the pong handler; no
// payload is expected from dashboards.
func (c *Client) reader() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writer drains the send channel onto the wire and keeps the connection
// alive with pings.
func (c *Client) writer() {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(sendTimeout))
			if !ok {
				// Dropped by the hub; say goodbye properly.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(sendTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
