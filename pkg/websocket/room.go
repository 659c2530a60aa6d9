package websocket

import (
	"sync"

	"github.com/krishanu7/battleship-engine/pkg/logging"
	"go.uber.org/zap"
)

type Room struct {
	ID string

	mu      sync.Mutex
	clients map[string]*Client
}

func NewRoom(id string) *Room {
	return &Room{
		ID:      id,
		clients: make(map[string]*Client),
	}
}

// Broadcast queues message for every client except senderID. An empty
// senderID reaches everyone.
func (r *Room) Broadcast(senderID string, message []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, client := range r.clients {
		if id == senderID {
			continue
		}
		if !client.Queue(message) {
			logging.Warn("dropped room message", zap.String("room", r.ID), zap.String("client", id))
		}
	}
}

func (r *Room) SendTo(clientID string, message []byte) bool {
	r.mu.Lock()
	client, ok := r.clients[clientID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return client.Queue(message)
}

func (r *Room) AddClient(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.clients[c.ID]; ok && old != c {
		old.Close()
	}
	r.clients[c.ID] = c
	c.Room = r
	logging.Info("client joined room", zap.String("client", c.ID), zap.String("room", r.ID))
}

// RemoveClient closes c and returns how many clients are left.
func (r *Room) RemoveClient(c *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clients[c.ID] == c {
		delete(r.clients, c.ID)
		logging.Info("client left room", zap.String("client", c.ID), zap.String("room", r.ID))
	}
	c.Close()
	return len(r.clients)
}

func (r *Room) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
