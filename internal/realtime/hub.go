package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"bid-broker/internal/auth"
	"bid-broker/internal/metrics"
	"bid-broker/internal/model"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 32
)

// Event is a record-change notification pushed to subscribers. It replaces
// the periodic refresh a client would otherwise have to run.
type Event struct {
	Type    string            `json:"type"`
	Request *model.BidRequest `json:"request,omitempty"`
}

// client is one WebSocket subscriber. Customers receive events for their own
// records only; admins receive everything.
type client struct {
	topic string // customer email
	admin bool
	conn  *websocket.Conn
	send  chan []byte
}

// Hub fans record-change events out to connected WebSocket clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}

	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "realtime-hub").Logger(),
	}
}

// Publish sends an event to every subscriber entitled to see the record.
// Slow subscribers are dropped rather than blocking the caller.
func (h *Hub) Publish(customerEmail string, event string, req *model.BidRequest) {
	payload, err := json.Marshal(Event{Type: event, Request: req})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal realtime event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.admin && c.topic != customerEmail {
			continue
		}
		select {
		case c.send <- payload:
		default:
			h.logger.Warn().Str("topic", c.topic).Msg("dropping event for slow subscriber")
		}
	}
}

// HandleWS upgrades the connection and subscribes the authenticated actor.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorised", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		topic: actor.Email,
		admin: actor.IsAdmin(),
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
	}

	h.register(c)

	go c.writePump(h)
	go c.readPump(h)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	h.logger.Debug().Str("topic", c.topic).Bool("admin", c.admin).Msg("subscriber connected")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		metrics.WSConnections.Dec()
	}
	h.mu.Unlock()

	h.logger.Debug().Str("topic", c.topic).Msg("subscriber disconnected")
}

// Close disconnects all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		_ = c.conn.Close()
		metrics.WSConnections.Dec()
	}
}

// writePump drains the send channel onto the connection.
func (c *client) writePump(h *Hub) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

// readPump discards inbound frames and detects disconnects.
func (c *client) readPump(h *Hub) {
	defer h.unregister(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
