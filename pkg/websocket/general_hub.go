package websocket

import (
	"sync"

	"github.com/krishanu7/battleship-engine/pkg/logging"
	"go.uber.org/zap"
)

// GeneralHub tracks the notification connection of each player.
type GeneralHub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewGeneralHub() *GeneralHub {
	return &GeneralHub{
		clients: make(map[string]*Client),
	}
}

// AddClient registers c, closing any older connection of the same player.
func (h *GeneralHub) AddClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.clients[c.ID]; ok && old != c {
		old.Close()
	}
	h.clients[c.ID] = c
	logging.Info("general client connected", zap.String("player", c.ID))
}

func (h *GeneralHub) RemoveClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.ID] == c {
		delete(h.clients, c.ID)
		logging.Info("general client disconnected", zap.String("player", c.ID))
	}
	c.Close()
}

func (h *GeneralHub) SendToClient(playerID string, message []byte) bool {
	h.mu.RLock()
	client, exists := h.clients[playerID]
	h.mu.RUnlock()

	if !exists {
		return false
	}
	return client.Queue(message)
}

func (h *GeneralHub) Connected(playerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[playerID]
	return ok
}
