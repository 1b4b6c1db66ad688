package hub

import (
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one client connection.
type Conn struct {
	id   string
	hub  *Hub
	ws   *websocket.Conn
	send chan []byte
	// session and username come from the last command that authenticated on
	// this connection. Only the read goroutine touches them.
	session  string
	username string
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) Session() string {
	return c.session
}

func (c *Conn) Username() string {
	return c.username
}

func (c *Conn) Bind(token, username string) {
	c.session = token
	c.username = username
}

// Reply queues a frame for this connection only. It reports false when the
// frame was dropped.
func (c *Conn) Reply(frame []byte) bool {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if current, ok := c.hub.conns[c.id]; !ok || current != c {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.hub.logger.Warnf("Dropping reply for slow connection %s", c.id)
		return false
	}
}

func (c *Conn) readPump(d Dispatcher) {
	defer func() {
		c.hub.unregister(c)
		d.Disconnect(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.hub.opts.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warnf("Connection %s closed unexpectedly: %s", c.id, err)
			}
			return
		}
		d.Dispatch(c, frame)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
