// Package ws streams delivered announcements to WebSocket clients. The hub
// subscribes to the signal bus and fans each event out to the clients whose
// event filter matches.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64

	// allEvents is the wildcard filter every client starts with.
	allEvents = "*"
)

// Hub bridges signal bus channels to WebSocket clients.
type Hub struct {
	bus      domain.SignalBus
	channels []string
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
}

// NewHub creates a Hub relaying the given bus channels. checkOrigin may be
// nil to accept every origin.
func NewHub(bus domain.SignalBus, channels []string, checkOrigin func(*http.Request) bool, logger *slog.Logger) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		bus:      bus,
		channels: channels,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger:     logger.With(slog.String("component", "ws_hub")),
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run subscribes to the bus and serves client registration and fan-out
// until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	for _, ch := range h.channels {
		msgs, err := h.bus.Subscribe(ctx, ch)
		if err != nil {
			h.logger.ErrorContext(ctx, "subscribe failed",
				slog.String("channel", ch),
				slog.String("error", err.Error()),
			)
			continue
		}
		go h.relay(ctx, ch, msgs)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.closed = true
			close(h.done)
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client connected", slog.Int("clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", slog.Int("clients", n))

		case data := <-h.broadcast:
			h.fanOut(data)
		}
	}
}

func (h *Hub) relay(ctx context.Context, channel string, msgs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgs:
			if !ok {
				h.logger.Warn("subscription closed", slog.String("channel", channel))
				return
			}
			select {
			case h.broadcast <- data:
			case <-ctx.Done():
				return
			}
		}
	}
}

// fanOut delivers data to every client whose filter matches its event name.
// Slow clients drop messages rather than stall the hub.
func (h *Hub) fanOut(data []byte) {
	var head struct {
		Event string `json:"event"`
	}
	_ = json.Unmarshal(data, &head)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(head.Event) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Warn("dropping message for slow client")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades the request and registers the client.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		events: map[string]bool{allEvents: true},
	}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	c.hello()

	go c.writePump()
	go c.readPump()
}

// client is one WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	events map[string]bool
}

// filterMsg changes a client's event filter, e.g.
// {"action":"subscribe","events":["market_resolved"]}. Subscribing to a
// specific event drops the initial wildcard.
type filterMsg struct {
	Action string   `json:"action"`
	Events []string `json:"events"`
}

func (c *client) wants(event string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.events[allEvents] || c.events[event]
}

func (c *client) applyFilter(msg filterMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Action {
	case "subscribe":
		if len(msg.Events) > 0 {
			delete(c.events, allEvents)
		}
		for _, e := range msg.Events {
			c.events[e] = true
		}
	case "unsubscribe":
		for _, e := range msg.Events {
			delete(c.events, e)
		}
	}
}

// hello tells the client which events it receives.
func (c *client) hello() {
	msg, err := json.Marshal(map[string]any{
		"type":     "hello",
		"events":   []string{allEvents},
		"channels": c.hub.channels,
	})
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		var msg filterMsg
		if json.Unmarshal(data, &msg) == nil && msg.Action != "" {
			c.applyFilter(msg)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
