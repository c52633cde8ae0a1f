package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024 * 1024 // 1MB

	sendBuffer = 256
)

// WebSocketMessage is the standard message format for WebSocket communication
type WebSocketMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	User string          `json:"user,omitempty"`
}

// NewMessage builds a message carrying data encoded as JSON.
func NewMessage(typ string, data any) (WebSocketMessage, error) {
	msg := WebSocketMessage{Type: typ}
	if data == nil {
		return msg, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return WebSocketMessage{}, err
	}
	msg.Data = raw
	return msg, nil
}

// MessageHandler is the per-connection session behind a client.
type MessageHandler interface {
	// HandleMessage processes one message the peer sent.
	HandleMessage(ctx context.Context, msg WebSocketMessage)
	// Refresh recomputes anything that depends on the current time.
	Refresh()
	// Close tears the session down after the connection is gone.
	Close()
}

// Client represents a connected WebSocket client
type Client struct {
	Hub     *Hub
	Conn    *websocket.Conn
	Email   string // User identifier
	Handler MessageHandler

	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// NewClient wraps conn for email. Set Handler before starting the pumps.
func NewClient(hub *Hub, conn *websocket.Conn, email string) *Client {
	return &Client{
		Hub:   hub,
		Conn:  conn,
		Email: email,
		send:  make(chan []byte, sendBuffer),
	}
}

// Deliver queues msg for the peer. It drops the message when the client is
// gone or its buffer is full.
func (c *Client) Deliver(msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.Hub.logger.Error("error marshalling websocket message", slog.String("error", err.Error()))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.Hub.logger.Warn("client send buffer full, dropping message", slog.String("client", c.Email), slog.String("type", msg.Type))
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump pumps messages from the WebSocket connection to the client's handler
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
		if c.Handler != nil {
			c.Handler.Close()
		}
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("websocket error", slog.String("client", c.Email), slog.String("error", err.Error()))
			}
			break
		}

		var wsMessage WebSocketMessage
		if err := json.Unmarshal(message, &wsMessage); err != nil {
			c.Hub.logger.Warn("error unmarshalling websocket message", slog.String("error", err.Error()))
			continue
		}
		wsMessage.User = c.Email

		// Reply to pings directly, they never reach the session
		if wsMessage.Type == "ping" {
			pong, err := NewMessage("pong", map[string]string{"timestamp": time.Now().Format(time.RFC3339)})
			if err == nil {
				c.Deliver(pong)
			}
			continue
		}

		c.Hub.logger.Debug("received message", slog.String("client", c.Email), slog.String("type", wsMessage.Type))
		if c.Handler != nil {
			c.Handler.HandleMessage(ctx, wsMessage)
		}
	}
}

// WritePump pumps messages from the client's queue to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type broadcastRequest struct {
	message      WebSocketMessage
	excludeEmail string
}

// Hub maintains the set of active clients, fans out broadcasts and
// periodically refreshes every session.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	broadcast  chan broadcastRequest
	register   chan *Client
	unregister chan *Client
	refresh    chan struct{}
	done       chan struct{}

	refreshEvery time.Duration
	logger       *slog.Logger
}

// NewHub creates a hub. A positive refreshEvery refreshes every session on
// that period.
func NewHub(refreshEvery time.Duration, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:      make(map[*Client]bool),
		broadcast:    make(chan broadcastRequest),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		refresh:      make(chan struct{}, 1),
		done:         make(chan struct{}),
		refreshEvery: refreshEvery,
		logger:       logger,
	}
}

// Register adds a client to the hub. After Run has returned the client is
// closed straight away.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast sends a message to all connected clients except those signed in
// as excludeEmail. An empty excludeEmail reaches everyone.
func (h *Hub) Broadcast(message WebSocketMessage, excludeEmail string) {
	message.User = excludeEmail
	select {
	case h.broadcast <- broadcastRequest{message: message, excludeEmail: excludeEmail}:
	case <-h.done:
	}
}

// Refresh asks every session to recompute time-dependent state.
func (h *Hub) Refresh() {
	select {
	case h.refresh <- struct{}{}:
	default:
	}
}

// Count reports the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run starts the hub's main loop and returns once ctx is done, closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	var tick <-chan time.Time
	if h.refreshEvery > 0 {
		ticker := time.NewTicker(h.refreshEvery)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("client connected", slog.String("client", client.Email))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				h.logger.Info("client disconnected", slog.String("client", client.Email))
			}
			h.mu.Unlock()
		case req := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if req.excludeEmail != "" && client.Email == req.excludeEmail {
					continue
				}
				client.Deliver(req.message)
			}
			h.mu.RUnlock()
		case <-tick:
			h.refreshAll()
		case <-h.refresh:
			h.refreshAll()
		}
	}
}

func (h *Hub) refreshAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.Handler != nil {
			client.Handler.Refresh()
		}
	}
}
