package match

import (
	"encoding/json"
	"net/http"

	"github.com/krishanu7/battleship-engine/internal/game"
	"github.com/krishanu7/battleship-engine/pkg/respond"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{
		service: s,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/queue/join", h.JoinQueue)
	mux.HandleFunc("POST /api/v1/queue/leave", h.LeaveQueue)
	mux.HandleFunc("POST /api/v1/queue/start", h.StartMatching)
	mux.HandleFunc("GET /api/v1/queue/status", h.Status)
}

type queueRequest struct {
	Player string `json:"player"`
}

func decodePlayer(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req queueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Player == "" {
		respond.Error(w, http.StatusBadRequest, "invalid request payload")
		return "", false
	}
	return req.Player, true
}

func (h *Handler) JoinQueue(w http.ResponseWriter, r *http.Request) {
	player, ok := decodePlayer(w, r)
	if !ok {
		return
	}
	if err := h.service.AddToQueue(r.Context(), player); err != nil {
		game.WriteError(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Player added to queue")
}

func (h *Handler) LeaveQueue(w http.ResponseWriter, r *http.Request) {
	player, ok := decodePlayer(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveFromQueue(r.Context(), player); err != nil {
		game.WriteError(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Player removed from queue")
}

func (h *Handler) StartMatching(w http.ResponseWriter, r *http.Request) {
	player, ok := decodePlayer(w, r)
	if !ok {
		return
	}
	if err := h.service.StartMatching(r.Context(), player); err != nil {
		game.WriteError(w, r, err)
		return
	}
	respond.Message(w, http.StatusAccepted, "Waiting for an opponent")
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	player := r.URL.Query().Get("player")
	if player == "" {
		respond.Error(w, http.StatusBadRequest, "missing player")
		return
	}
	status, matchID, err := h.service.GetMatchStatus(r.Context(), player)
	if err != nil {
		game.WriteError(w, r, err)
		return
	}
	length, err := h.service.QueueLength(r.Context())
	if err != nil {
		game.WriteError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"player":       player,
		"status":       status,
		"match_id":     matchID,
		"queue_length": length,
	})
}
