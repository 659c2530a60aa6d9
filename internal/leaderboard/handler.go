package leaderboard

import (
	"net/http"
	"strconv"

	"github.com/krishanu7/battleship-engine/internal/game"
	"github.com/krishanu7/battleship-engine/pkg/respond"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Rankings serves GET /api/v1/rankings?limit=.
func (h *Handler) Rankings(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respond.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	entries, err := h.service.GetLeaderboard(r.Context(), limit)
	if err != nil {
		game.WriteError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, entries)
}
