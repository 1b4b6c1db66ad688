// Package hub keeps the registry of live WebSocket connections and fans store
// events out to them.
package hub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/idusortus/predictwithfriends/internal/store"
	"github.com/sirupsen/logrus"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

type Options struct {
	// SendBuffer is the number of outgoing frames queued per connection
	// before further frames are dropped.
	SendBuffer     int
	MaxMessageSize int64
}

func DefaultOptions() Options {
	return Options{SendBuffer: 256, MaxMessageSize: 4096}
}

// Encoder renders an event as a wire frame.
type Encoder func(e store.Event) ([]byte, error)

// Dispatcher handles frames read from a connection. Dispatch is called from
// the connection's read goroutine, so frames of one connection are handled in
// arrival order. Disconnect is called once, after the connection has been
// removed from the registry.
type Dispatcher interface {
	Dispatch(c *Conn, frame []byte)
	Disconnect(c *Conn)
}

type Hub struct {
	mu       sync.RWMutex
	conns    map[string]*Conn
	closed   bool
	encode   Encoder
	logger   *logrus.Logger
	opts     Options
	upgrader websocket.Upgrader
}

func New(logger *logrus.Logger, encode Encoder, opts Options) *Hub {
	d := DefaultOptions()
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = d.SendBuffer
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = d.MaxMessageSize
	}
	return &Hub{
		conns:  make(map[string]*Conn),
		encode: encode,
		logger: logger,
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are checked by the router's CORS policy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Publish queues e on every connection except e.Except. It never blocks: a
// connection whose buffer is full misses the event and has to resync.
func (h *Hub) Publish(e store.Event) {
	frame, err := h.encode(e)
	if err != nil {
		h.logger.Errorf("Can't encode %s event: %s", e.Type, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.conns {
		if id == e.Except {
			continue
		}
		select {
		case c.send <- frame:
		default:
			h.logger.Warnf("Dropping %s for slow connection %s", e.Type, id)
		}
	}
}

// Handler upgrades requests to WebSocket connections served by d.
func (h *Hub) Handler(d Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Error("Websocket upgrade failed: ", err)
			return
		}
		c := &Conn{
			id:   uuid.NewString(),
			hub:  h,
			ws:   ws,
			send: make(chan []byte, h.opts.SendBuffer),
		}
		if !h.register(c) {
			ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			ws.Close()
			return
		}
		go c.writePump()
		go c.readPump(d)
	}
}

// Run blocks until ctx is done and then closes every connection.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()
	h.mu.Lock()
	h.closed = true
	for id, c := range h.conns {
		close(c.send)
		delete(h.conns, id)
	}
	h.mu.Unlock()
	h.logger.Info("Hub stopped")
	return nil
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) register(c *Conn) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.conns[c.id] = c
	total := len(h.conns)
	h.mu.Unlock()
	h.logger.Infof("Connection %s opened, %d live", c.id, total)
	return true
}

func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	if current, ok := h.conns[c.id]; ok && current == c {
		delete(h.conns, c.id)
		close(c.send)
	}
	total := len(h.conns)
	h.mu.Unlock()
	h.logger.Infof("Connection %s closed, %d live", c.id, total)
}
