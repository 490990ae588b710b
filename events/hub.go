package events

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type envelope struct {
	Topic    string      `json:"topic,omitempty"`
	Severity string      `json:"severity,omitempty"`
	Message  string      `json:"message,omitempty"`
	Payload  interface{} `json:"payload,omitempty"`
}

// client wraps one websocket connection. The websocket protocol allows at
// most one concurrent writer per connection, so every write goes through the
// client's own mutex.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(msg envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

// Hub is the websocket fan-out layer. Writes are fire-and-forget: a failed
// write drops the connection and is never surfaced to the caller.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string][]*client
	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[string][]*client),
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and registers the connection under the given
// user until the peer goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("Event ID: WS_UPGRADE_FAILED, Description: Websocket upgrade failed for user %s: %v", userID, err)
		return
	}

	c := &client{conn: conn}
	h.register(userID, c)
	h.logger.Infof("Event ID: WS_CONNECTED, Description: User %s connected.", userID)

	go func() {
		defer func() {
			h.unregister(userID, c)
			conn.Close()
			h.logger.Infof("Event ID: WS_DISCONNECTED, Description: User %s disconnected.", userID)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) register(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[userID] = append(h.clients[userID], c)
}

func (h *Hub) unregister(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	remaining := h.clients[userID][:0]
	for _, existing := range h.clients[userID] {
		if existing != c {
			remaining = append(remaining, existing)
		}
	}
	if len(remaining) == 0 {
		delete(h.clients, userID)
	} else {
		h.clients[userID] = remaining
	}
}

// Broadcast sends an event to every connected user.
func (h *Hub) Broadcast(topic string, payload interface{}) {
	msg := envelope{Topic: topic, Payload: payload}
	for userID, clients := range h.snapshot() {
		for _, c := range clients {
			if err := c.write(msg); err != nil {
				h.logger.Warnf("Event ID: WS_WRITE_FAILED, Description: Broadcast to user %s failed: %v", userID, err)
			}
		}
	}
}

// NotifyUser sends a direct message to one user's connections.
func (h *Hub) NotifyUser(userID, severity, message string) {
	h.mu.RLock()
	clients := append([]*client(nil), h.clients[userID]...)
	h.mu.RUnlock()

	msg := envelope{Severity: severity, Message: message}
	for _, c := range clients {
		if err := c.write(msg); err != nil {
			h.logger.Warnf("Event ID: WS_WRITE_FAILED, Description: Notify to user %s failed: %v", userID, err)
		}
	}
}

// ConnectedUsers returns the ids of users with at least one live connection.
func (h *Hub) ConnectedUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		users = append(users, userID)
	}
	return users
}

// snapshot copies the registry so writes happen outside the hub lock.
func (h *Hub) snapshot() map[string][]*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string][]*client, len(h.clients))
	for userID, clients := range h.clients {
		out[userID] = append([]*client(nil), clients...)
	}
	return out
}
