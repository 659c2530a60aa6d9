package ws

import (
	"net/http"

	"github.com/krishanu7/battleship-engine/internal/game"
	"github.com/krishanu7/battleship-engine/pkg/logging"
	"github.com/krishanu7/battleship-engine/pkg/respond"
	wsPkg "github.com/krishanu7/battleship-engine/pkg/websocket"
	"go.uber.org/zap"
)

type GeneralHandler struct {
	Hub       *wsPkg.GeneralHub
	players   game.PlayerDirectory
	authorize game.Authorizer
}

func NewGeneralHandler(hub *wsPkg.GeneralHub, players game.PlayerDirectory, authorize game.Authorizer) *GeneralHandler {
	return &GeneralHandler{
		Hub:       hub,
		players:   players,
		authorize: authorize,
	}
}

// ServeGeneralWS opens the notifications socket of ?player=.
func (h *GeneralHandler) ServeGeneralWS(w http.ResponseWriter, r *http.Request) {
	player := r.URL.Query().Get("player")
	if player == "" {
		respond.Error(w, http.StatusBadRequest, "missing player")
		return
	}
	if _, err := h.players.PlayerByName(r.Context(), player); err != nil {
		game.WriteError(w, r, err)
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
		logging.Warn("general ws upgrade failed", zap.String("player", player), zap.Error(err))
		return
	}
	client := wsPkg.NewClient(player, conn)
	h.Hub.AddClient(client)

	go client.WritePump()
	client.ReadPump(nil)
	h.Hub.RemoveClient(client)
}
