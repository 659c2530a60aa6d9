package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/krishanu7/battleship-engine/internal/game"
	"github.com/krishanu7/battleship-engine/pkg/logging"
	"github.com/krishanu7/battleship-engine/pkg/respond"
	wsPkg "github.com/krishanu7/battleship-engine/pkg/websocket"
	"go.uber.org/zap"
)

const messageTimeout = 10 * time.Second

// Inbound is a message a player sends to a match room.
type Inbound struct {
	Type    string `json:"type"`
	X       *int   `json:"x,omitempty"`
	Y       *int   `json:"y,omitempty"`
	Message string `json:"message,omitempty"`
}

type ShotResult struct {
	Type     string            `json:"type"`
	Player   string            `json:"player"`
	X        int               `json:"x"`
	Y        int               `json:"y"`
	Outcome  *game.ShotOutcome `json:"outcome"`
	NextTurn string            `json:"next_turn,omitempty"`
}

type ChatMessage struct {
	Type    string `json:"type"`
	Player  string `json:"player"`
	Message string `json:"message"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Handler serves the match room sockets where both players fire and chat.
type Handler struct {
	Hub         *wsPkg.Hub
	gameService *game.Service
	authorize   game.Authorizer
}

func NewHandler(hub *wsPkg.Hub, gameService *game.Service, authorize game.Authorizer) *Handler {
	return &Handler{
		Hub:         hub,
		gameService: gameService,
		authorize:   authorize,
	}
}

func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("id")
	player := r.URL.Query().Get("player")
	if player == "" {
		respond.Error(w, http.StatusBadRequest, "missing player")
		return
	}
	m, err := h.gameService.GetMatch(r.Context(), matchID)
	if err != nil {
		game.WriteError(w, r, err)
		return
	}
	if m.Player1.Name != player && m.Player2.Name != player {
		respond.Error(w, http.StatusForbidden, player+" is not playing this match")
		return
	}
	if h.authorize != nil {
		if err := h.authorize(r, player); err != nil {
			game.WriteError(w, r, err)
			return
		}
	}

	conn, err := wsPkg.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("room ws upgrade failed", zap.String("match_id", matchID), zap.Error(err))
		return
	}
	client := wsPkg.NewClient(player, conn)
	room := h.Hub.Join(matchID, client)

	go client.WritePump()
	client.ReadPump(func(msg []byte) {
		h.handle(room, client, msg)
	})
	h.Hub.Leave(client)
}

func (h *Handler) handle(room *wsPkg.Room, c *wsPkg.Client, raw []byte) {
	var msg Inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(c, "invalid message")
		return
	}
	switch msg.Type {
	case "fire":
		h.fire(room, c, msg)
	case "chat":
		h.broadcast(room, c.ID, ChatMessage{Type: "chat", Player: c.ID, Message: msg.Message})
	default:
		h.sendError(c, "unknown message type: "+msg.Type)
	}
}

func (h *Handler) fire(room *wsPkg.Room, c *wsPkg.Client, msg Inbound) {
	if msg.X == nil || msg.Y == nil {
		h.sendError(c, "missing x or y")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), messageTimeout)
	defer cancel()

	outcome, err := h.gameService.FireShot(ctx, room.ID, c.ID, *msg.X, *msg.Y)
	if err != nil {
		if game.HTTPStatus(err) == http.StatusInternalServerError {
			logging.Error("shot failed", zap.String("match_id", room.ID), zap.String("player", c.ID), zap.Error(err))
			h.sendError(c, "internal server error")
			return
		}
		h.sendError(c, err.Error())
		return
	}

	result := ShotResult{Type: "shot_result", Player: c.ID, X: *msg.X, Y: *msg.Y, Outcome: outcome}
	if turn, ok := outcome.Match.CurrentTurn(); ok {
		result.NextTurn = turn.Name
	}
	h.broadcast(room, "", result)
}

func (h *Handler) broadcast(room *wsPkg.Room, senderID string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		logging.Warn("failed to marshal room message", zap.Error(err))
		return
	}
	room.Broadcast(senderID, payload)
}

func (h *Handler) sendError(c *wsPkg.Client, message string) {
	payload, _ := json.Marshal(ErrorMessage{Type: "error", Message: message})
	c.Queue(payload)
}
