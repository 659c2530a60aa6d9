package websocket

import (
	"sync"

	"github.com/krishanu7/battleship-engine/pkg/logging"
	"go.uber.org/zap"
)

// Hub holds one room per match with connected players.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]*Room),
	}
}

func (h *Hub) GetRoom(roomID string) (*Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[roomID]
	return room, ok
}

// Join adds c to the room, creating the room on first use.
func (h *Hub) Join(roomID string, c *Client) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[roomID]
	if !ok {
		room = NewRoom(roomID)
		h.rooms[roomID] = room
		logging.Debug("room opened", zap.String("room", roomID))
	}
	room.AddClient(c)
	return room
}

// Leave removes c from its room and drops the room once it is empty.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := c.Room
	if room == nil {
		c.Close()
		return
	}
	if room.RemoveClient(c) == 0 {
		delete(h.rooms, room.ID)
		logging.Debug("room closed", zap.String("room", room.ID))
	}
}
