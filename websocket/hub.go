package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	EventTypeAuth   = "auth"
	EventTypeInvite = "invite"
	EventTypeServer = "server"

	// EventShutdown tells clients the server is going away and they should reconnect later
	EventShutdown = "SHUTDOWN"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	maxMessageSize = 4 * 1024 // clients only send control frames and pings
)

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	direct     chan envelope
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID string
	ID     string
}

// Event is pushed from the server to the browser
type Event struct {
	Type    string      `json:"type"`            // "auth", "invite", "server"
	Event   string      `json:"event,omitempty"` // SIGNED_IN, SIGNED_OUT for auth events; SHUTDOWN for server events
	Payload interface{} `json:"payload,omitempty"`
	SentAt  time.Time   `json:"sent_at"`
}

type envelope struct {
	userID  string
	payload []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
		direct:     make(chan envelope, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Info("Client registered", "user_id", client.UserID, "client_id", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			slog.Info("Client unregistered", "user_id", client.UserID, "client_id", client.ID)

		case message := <-h.broadcast:
			h.deliver(message, func(*Client) bool { return true })

		case env := <-h.direct:
			h.deliver(env.payload, func(c *Client) bool { return c.UserID == env.userID })
		}
	}
}

func (h *Hub) deliver(message []byte, match func(*Client) bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !match(client) {
			continue
		}
		select {
		case client.Send <- message:
		default:
			slog.Warn("Dropping slow websocket client", "user_id", client.UserID, "client_id", client.ID)
			close(client.Send)
			delete(h.clients, client)
		}
	}
}

// Stop disconnects every client and ends Run
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) RegisterClient(conn *websocket.Conn, userID string) *Client {
	client := &Client{
		Hub:    h,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		UserID: userID,
		ID:     uuid.New().String(),
	}

	select {
	case h.register <- client:
	case <-h.done:
		// Run has stopped; WritePump sees the closed channel and closes the connection
		close(client.Send)
	}
	return client
}

// Broadcast sends event to every connected client
func (h *Hub) Broadcast(event Event) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- payload:
	case <-h.done:
	}
	return nil
}

// SendToUser queues event for every connection of userID. Users without a connection are skipped.
func (h *Hub) SendToUser(userID string, event Event) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	select {
	case h.direct <- envelope{userID: userID, payload: payload}:
	case <-h.done:
	}
	return nil
}

// ConnectedUsers returns the number of open connections held for userID
func (h *Hub) ConnectedUsers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for client := range h.clients {
		if client.UserID == userID {
			count++
		}
	}
	return count
}

func encodeEvent(event Event) ([]byte, error) {
	if event.SentAt.IsZero() {
		event.SentAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal websocket event", "error", err, "type", event.Type)
		return nil, err
	}
	return payload, nil
}

// ReadPump drains the connection so control frames are processed. Incoming data frames are ignored.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err, "user_id", c.UserID)
			}
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
