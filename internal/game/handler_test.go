package game_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/krishanu7/battleship-engine/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, authorize game.Authorizer) (*env, *httptest.Server) {
	t.Helper()
	e := newEnv(t)
	mux := http.NewServeMux()
	game.NewHandler(e.service, authorize).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return e, srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{game.ErrMatchNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: (10, 0)", game.ErrOutOfBounds), http.StatusBadRequest},
		{game.ErrInvalidShip, http.StatusBadRequest},
		{game.ErrAlreadyExists, http.StatusConflict},
		{game.ErrInvalidMatchState, http.StatusConflict},
		{game.ErrNotYourTurn, http.StatusConflict},
		{game.ErrPositionOccupied, http.StatusConflict},
		{game.ErrDuplicateMove, http.StatusConflict},
		{game.ErrMatchAlreadyOver, http.StatusConflict},
		{game.ErrConflict, http.StatusServiceUnavailable},
		{game.ErrUnauthorized, http.StatusUnauthorized},
		{game.ErrForbidden, http.StatusForbidden},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, game.HTTPStatus(tt.err))
		})
	}
}

func TestMatchEndpoints(t *testing.T) {
	_, srv := newServer(t, nil)

	status, body := do(t, srv, http.MethodPost, "/api/v1/matches", `{"player_1":"alice","player_2":"bob"}`)
	require.Equal(t, http.StatusCreated, status)
	id := body["id"].(string)
	assert.Equal(t, "setting_up", body["status"])

	status, body = do(t, srv, http.MethodPost, "/api/v1/matches", `{"player_1":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "missing player_1 or player_2", body["error"])

	status, _ = do(t, srv, http.MethodPost, "/api/v1/matches", `{"player_1":"alice","player_2":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = do(t, srv, http.MethodGet, "/api/v1/matches/"+id, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, id, body["id"])

	status, body = do(t, srv, http.MethodGet, "/api/v1/matches/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body["error"], "not found")

	status, body = do(t, srv, http.MethodPost, "/api/v1/matches/"+id+"/ships",
		`{"player":"alice","ship":"Destroyer","x":0,"y":0,"orientation":"vertical"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Success! alice needs to add Cruiser, Submarine, Battleship, Aircraft Carrier.", body["message"])

	status, body = do(t, srv, http.MethodPost, "/api/v1/matches/"+id+"/ships",
		`{"player":"alice","ship":"Cruiser","x":9,"y":0}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "out of bounds: (10, 0) is off the 10x10 board", body["error"])

	status, _ = do(t, srv, http.MethodPost, "/api/v1/matches/"+id+"/ships",
		`{"player":"alice","ship":"Cruiser","y":0}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, srv, http.MethodPost, "/api/v1/matches/"+id+"/ships",
		`{"player":"alice","ship":"Cruiser","x":0,"y":1,"orientation":"horizontal"}`)
	assert.Equal(t, http.StatusConflict, status)

	status, body = do(t, srv, http.MethodGet, "/api/v1/matches/"+id+"/ships/remaining?player=alice", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "The remaining ships for that player are Cruiser, Submarine, Battleship, Aircraft Carrier", body["message"])

	status, _ = do(t, srv, http.MethodGet, "/api/v1/matches/"+id+"/ships/remaining", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = do(t, srv, http.MethodPost, "/api/v1/matches/"+id+"/shots", `{"player":"alice","x":0,"y":0}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, body["error"], "invalid match state")

	resp, err := srv.Client().Get(srv.URL + "/api/v1/players/alice/matches")
	require.NoError(t, err)
	var open []game.Match
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&open))
	resp.Body.Close()
	require.Len(t, open, 1)
	assert.Equal(t, id, open[0].ID)

	status, _ = do(t, srv, http.MethodDelete, "/api/v1/matches/"+id, "")
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = do(t, srv, http.MethodGet, "/api/v1/matches/"+id+"/history", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestShotEndpoint(t *testing.T) {
	e, srv := newServer(t, nil)
	m := e.startedMatch(t)
	path := "/api/v1/matches/" + m.ID + "/shots"

	status, body := do(t, srv, http.MethodPost, path, `{"player":"bob","x":0,"y":0}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "not your turn: it is alice's turn", body["error"])

	status, body = do(t, srv, http.MethodPost, path, `{"player":"alice","x":0,"y":0}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["hit"])
	assert.Equal(t, "Destroyer", body["ship"])
	assert.Equal(t, "Hit on Destroyer!", body["message"])

	status, body = do(t, srv, http.MethodPost, path, `{"player":"bob","x":10,"y":0}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "out of bounds: (10, 0) is off the 10x10 board", body["error"])

	status, _ = do(t, srv, http.MethodPost, path, `{"player":"bob","x":3}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = do(t, srv, http.MethodPost, path, `{"player":"bob","x":9,"y":9}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Miss at 9, 9!", body["message"])
	assert.NotContains(t, body, "ship")

	status, _ = do(t, srv, http.MethodPost, path, `{"player":"alice","x":0,"y":0}`)
	assert.Equal(t, http.StatusConflict, status)

	status, body = do(t, srv, http.MethodGet, "/api/v1/matches/"+m.ID+"/history", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["moves"], 2)
	assert.Len(t, body["ships"], 2*len(game.Roster))
}

func TestHandlerAuthorization(t *testing.T) {
	authorize := func(r *http.Request, player string) error {
		caller := r.Header.Get("X-Player")
		if caller == "" {
			return game.ErrUnauthorized
		}
		if caller != player {
			return game.ErrForbidden
		}
		return nil
	}
	e, srv := newServer(t, authorize)
	m := e.match(t)
	path := srv.URL + "/api/v1/matches/" + m.ID + "/ships"
	body := `{"player":"alice","ship":"Destroyer","x":0,"y":0}`

	send := func(caller string) int {
		req, err := http.NewRequest(http.MethodPost, path, strings.NewReader(body))
		require.NoError(t, err)
		if caller != "" {
			req.Header.Set("X-Player", caller)
		}
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, send(""))
	assert.Equal(t, http.StatusForbidden, send("bob"))
	assert.Equal(t, http.StatusCreated, send("alice"))
}

func TestCreateAndCancelNeedAParticipant(t *testing.T) {
	authorize := func(r *http.Request, player string) error {
		caller := r.Header.Get("X-Player")
		if caller == "" {
			return game.ErrUnauthorized
		}
		if caller != player {
			return game.ErrForbidden
		}
		return nil
	}
	e, srv := newServer(t, authorize)

	send := func(method, path, body, caller string) int {
		req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
		require.NoError(t, err)
		if caller != "" {
			req.Header.Set("X-Player", caller)
		}
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	create := `{"player_1":"alice","player_2":"bob"}`
	assert.Equal(t, http.StatusUnauthorized, send(http.MethodPost, "/api/v1/matches", create, ""))
	assert.Equal(t, http.StatusForbidden, send(http.MethodPost, "/api/v1/matches", create, "carol"))
	assert.Equal(t, http.StatusCreated, send(http.MethodPost, "/api/v1/matches", create, "bob"))

	m := e.match(t)
	path := "/api/v1/matches/" + m.ID
	assert.Equal(t, http.StatusUnauthorized, send(http.MethodDelete, path, "", ""))
	assert.Equal(t, http.StatusForbidden, send(http.MethodDelete, path, "", "carol"))
	_, err := e.service.GetMatch(e.ctx, m.ID)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, send(http.MethodDelete, path, "", "bob"))
	_, err = e.service.GetMatch(e.ctx, m.ID)
	assert.ErrorIs(t, err, game.ErrNotFound)
}
