package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/krishanu7/battleship-engine/internal/game"
	"github.com/krishanu7/battleship-engine/pkg/logging"
	"github.com/krishanu7/battleship-engine/pkg/respond"
	"go.uber.org/zap"
)

type AuthHandler struct {
	service *Service
}

func NewAuthHandler(service *Service) *AuthHandler {
	return &AuthHandler{
		service: service,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request")
		return
	}

	user, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidAccount) {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		game.WriteError(w, r, err)
		return
	}
	logging.Info("account created", zap.String("user_id", user.ID), zap.String("username", user.Username))

	respond.JSON(w, http.StatusCreated, struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}{
		ID:      user.ID,
		Message: "User registered successfully !",
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request")
		return
	}

	token, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			respond.Error(w, http.StatusUnauthorized, err.Error())
			return
		}
		game.WriteError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, struct {
		Token string `json:"token"`
	}{Token: token})
}
