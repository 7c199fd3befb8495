package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Message types pushed to or received from clients.
const (
	MessageTodos      = "todos"
	MessageBoard      = "board"
	MessagePreview    = "preview"
	MessageSyncStatus = "sync_status"
	MessageError      = "error"
	MessagePing       = "ping"
	MessagePong       = "pong"
	MessageDragStart  = "drag_start"
	MessageDragOver   = "drag_over"
	MessageDragEnd    = "drag_end"
	MessageDragCancel = "drag_cancel"
)

// WebSocketMessage is the standard message format for WebSocket communication
type WebSocketMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage marshals data into a message. Marshal failures produce a message without data.
func NewMessage(typ string, data any) WebSocketMessage {
	raw, err := json.Marshal(data)
	if err != nil {
		log.WithError(err).WithField("type", typ).Error("Error marshalling WebSocket payload")
		return WebSocketMessage{Type: typ}
	}
	return WebSocketMessage{Type: typ, Data: raw}
}

// MessageHandler processes one inbound message from a client.
type MessageHandler func(c *Client, msg WebSocketMessage)

// Client represents a connected WebSocket client
type Client struct {
	ID      string
	OwnerID string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func NewClient(hub *Hub, conn *websocket.Conn, ownerID string) *Client {
	return &Client{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 256),
	}
}

// Send queues a message for this client only.
func (c *Client) Send(msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.WithError(err).Error("Error marshalling WebSocket message")
		return
	}
	select {
	case c.hub.direct <- envelope{client: c, payload: data}:
	case <-c.hub.done:
	}
}

// ReadPump pumps messages from the WebSocket connection to the handler
func (c *Client) ReadPump(handle MessageHandler) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).WithField("owner", c.OwnerID).Warn("WebSocket read error")
			}
			break
		}

		var msg WebSocketMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.log.WithError(err).Debug("Error unmarshalling WebSocket message")
			continue
		}

		if msg.Type == MessagePing {
			c.Send(NewMessage(MessagePong, map[string]string{"timestamp": time.Now().Format(time.RFC3339)}))
			continue
		}
		if handle != nil {
			handle(c, msg)
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type envelope struct {
	owner   string
	client  *Client
	payload []byte
}

// Hub maintains the set of active clients and fans messages out to every
// client of the same owner.
type Hub struct {
	log *log.Logger

	mu      sync.RWMutex
	clients map[*Client]bool

	broadcast  chan envelope
	direct     chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	onLeave func(c *Client)
}

// NewHub creates a new hub instance
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		log:        logger,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, 64),
		direct:     make(chan envelope, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// OnLeave registers a callback fired after a client is unregistered.
func (h *Hub) OnLeave(fn func(c *Client)) {
	h.onLeave = fn
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// SendToOwner queues msg for every connected client of ownerID.
func (h *Hub) SendToOwner(ownerID string, msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).Error("Error marshalling WebSocket message")
		return
	}
	select {
	case h.broadcast <- envelope{owner: ownerID, payload: data}:
	case <-h.done:
	}
}

// Count returns the number of connected clients for ownerID.
func (h *Hub) Count(ownerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.OwnerID == ownerID {
			n++
		}
	}
	return n
}

// Run starts the hub's main loop. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.WithFields(log.Fields{"owner": client.OwnerID, "client": client.ID}).Info("Client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			if ok {
				h.log.WithFields(log.Fields{"owner": client.OwnerID, "client": client.ID}).Info("Client disconnected")
			}
			// clients dropped for a full buffer still come through here once their read pump exits
			if h.onLeave != nil {
				go h.onLeave(client)
			}
		case env := <-h.direct:
			h.mu.Lock()
			if h.clients[env.client] {
				h.deliver(env.client, env.payload)
			}
			h.mu.Unlock()
		case env := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.OwnerID == env.owner {
					h.deliver(client, env.payload)
				}
			}
			h.mu.Unlock()
		}
	}
}

// deliver must be called with h.mu held.
func (h *Hub) deliver(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		// Client's send buffer is full, assume disconnected
		h.log.WithField("client", client.ID).Warn("Client send buffer full, removing client")
		close(client.send)
		delete(h.clients, client)
	}
}
