package game

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/krishanu7/battleship-engine/pkg/logging"
	"github.com/krishanu7/battleship-engine/pkg/respond"
	"go.uber.org/zap"
)

var (
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("not allowed to act for this player")
)

// Authorizer decides whether the request may act as player. A nil
// Authorizer allows everything.
type Authorizer func(r *http.Request, player string) error

type Handler struct {
	service   *Service
	authorize Authorizer
}

func NewHandler(service *Service, authorize Authorizer) *Handler {
	return &Handler{
		service:   service,
		authorize: authorize,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/matches", h.CreateMatch)
	mux.HandleFunc("GET /api/v1/matches/{id}", h.GetMatch)
	mux.HandleFunc("DELETE /api/v1/matches/{id}", h.CancelMatch)
	mux.HandleFunc("POST /api/v1/matches/{id}/ships", h.PlaceShip)
	mux.HandleFunc("GET /api/v1/matches/{id}/ships/remaining", h.RemainingShips)
	mux.HandleFunc("POST /api/v1/matches/{id}/shots", h.FireShot)
	mux.HandleFunc("GET /api/v1/matches/{id}/history", h.History)
	mux.HandleFunc("GET /api/v1/players/{name}/matches", h.ListPlayerMatches)
}

// HTTPStatus maps engine errors to response codes.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrOutOfBounds), errors.Is(err, ErrInvalidShip):
		return http.StatusBadRequest
	case errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrInvalidMatchState),
		errors.Is(err, ErrNotYourTurn),
		errors.Is(err, ErrPositionOccupied),
		errors.Is(err, ErrDuplicateMove),
		errors.Is(err, ErrMatchAlreadyOver):
		return http.StatusConflict
	case errors.Is(err, ErrConflict):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// WriteError writes err as {"error": ...}. Unexpected errors are logged and
// their detail is not sent to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logging.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respond.Error(w, status, "internal server error")
		return
	}
	respond.Error(w, status, err.Error())
}

type CreateMatchRequest struct {
	Player1 string `json:"player_1"`
	Player2 string `json:"player_2"`
}

type PlaceShipRequest struct {
	Player      string   `json:"player"`
	Ship        ShipKind `json:"ship"`
	X           *int     `json:"x"`
	Y           *int     `json:"y"`
	Orientation string   `json:"orientation"`
}

type FireShotRequest struct {
	Player string `json:"player"`
	X      *int   `json:"x"`
	Y      *int   `json:"y"`
}

type RemainingShipsResponse struct {
	Player    string     `json:"player"`
	Remaining []ShipKind `json:"remaining"`
	Message   string     `json:"message"`
}

func (h *Handler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req CreateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Player1 == "" || req.Player2 == "" {
		respond.Error(w, http.StatusBadRequest, "missing player_1 or player_2")
		return
	}
	if !h.allowedAny(w, r, req.Player1, req.Player2) {
		return
	}
	m, err := h.service.CreateMatch(r.Context(), req.Player1, req.Player2)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, m)
}

func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.GetMatch(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, m)
}

// CancelMatch may only be requested by one of the match's players.
func (h *Handler) CancelMatch(w http.ResponseWriter, r *http.Request) {
	if h.authorize != nil {
		m, err := h.service.GetMatch(r.Context(), r.PathValue("id"))
		if err != nil {
			WriteError(w, r, err)
			return
		}
		if !h.allowedAny(w, r, m.Player1.Name, m.Player2.Name) {
			return
		}
	}
	if err := h.service.CancelMatch(r.Context(), r.PathValue("id")); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PlaceShip(w http.ResponseWriter, r *http.Request) {
	var req PlaceShipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Player == "" || req.Ship == "" || req.X == nil || req.Y == nil {
		respond.Error(w, http.StatusBadRequest, "missing player, ship, x or y")
		return
	}
	o, err := ParseOrientation(req.Orientation)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.allowed(w, r, req.Player) {
		return
	}

	placement, err := h.service.PlaceShip(r.Context(), r.PathValue("id"), req.Player, req.Ship, *req.X, *req.Y, o)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, placement)
}

func (h *Handler) RemainingShips(w http.ResponseWriter, r *http.Request) {
	player := r.URL.Query().Get("player")
	if player == "" {
		respond.Error(w, http.StatusBadRequest, "missing player")
		return
	}
	remaining, err := h.service.RemainingShips(r.Context(), r.PathValue("id"), player)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, RemainingShipsResponse{
		Player:    player,
		Remaining: remaining,
		Message:   remainingMessage(remaining),
	})
}

func (h *Handler) FireShot(w http.ResponseWriter, r *http.Request) {
	var req FireShotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Player == "" || req.X == nil || req.Y == nil {
		respond.Error(w, http.StatusBadRequest, "missing player, x or y")
		return
	}
	if !h.allowed(w, r, req.Player) {
		return
	}

	outcome, err := h.service.FireShot(r.Context(), r.PathValue("id"), req.Player, *req.X, *req.Y)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, outcome)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.History(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, history)
}

func (h *Handler) ListPlayerMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := h.service.ListOpenMatches(r.Context(), r.PathValue("name"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, matches)
}

func (h *Handler) allowed(w http.ResponseWriter, r *http.Request, player string) bool {
	return h.allowedAny(w, r, player)
}

// allowedAny passes when the request may act as at least one of players.
func (h *Handler) allowedAny(w http.ResponseWriter, r *http.Request, players ...string) bool {
	if h.authorize == nil {
		return true
	}
	var err error
	for _, player := range players {
		if err = h.authorize(r, player); err == nil {
			return true
		}
	}
	WriteError(w, r, err)
	return false
}
