package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/krishanu7/battleship-engine/db"
	"github.com/krishanu7/battleship-engine/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService(db.NewMemoryStore(), "test-secret")
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	s := newTestService()

	user, err := s.Register(ctx, "alice", "alice@example.com", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "hunter2", user.Password)

	_, err = s.Register(ctx, "alice", "", "")
	assert.ErrorIs(t, err, game.ErrAlreadyExists)

	_, err = s.Register(ctx, "  ", "", "")
	assert.ErrorIs(t, err, ErrInvalidAccount)

	bob, err := s.Register(ctx, "bob", "", "")
	require.NoError(t, err)
	assert.Empty(t, bob.Password)
}

func TestLoginAndParseToken(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	_, err := s.Register(ctx, "alice", "", "hunter2")
	require.NoError(t, err)
	_, err = s.Register(ctx, "bob", "", "")
	require.NoError(t, err)

	token, err := s.Login(ctx, "alice", "hunter2")
	require.NoError(t, err)
	subject, err := s.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)

	_, err = s.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Login(ctx, "nobody", "hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Login(ctx, "bob", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	other := NewService(db.NewMemoryStore(), "other-secret")
	_, err = other.ParseToken(token)
	assert.Error(t, err)
}

func TestPlayerByName(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	user, err := s.Register(ctx, "alice", "alice@example.com", "")
	require.NoError(t, err)

	p, err := s.PlayerByName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, game.Player{ID: user.ID, Name: "alice", Email: "alice@example.com"}, p)

	_, err = s.PlayerByName(ctx, "nobody")
	assert.ErrorIs(t, err, game.ErrNotFound)
}

func TestAuthorizer(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	_, err := s.Register(ctx, "alice", "", "hunter2")
	require.NoError(t, err)
	token, err := s.Login(ctx, "alice", "hunter2")
	require.NoError(t, err)

	request := func(header, query string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/matches/x/shots"+query, nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		return r
	}

	tests := []struct {
		name    string
		require bool
		req     *http.Request
		player  string
		want    error
	}{
		{"no token optional", false, request("", ""), "alice", nil},
		{"no token required", true, request("", ""), "alice", game.ErrUnauthorized},
		{"matching subject", true, request("Bearer "+token, ""), "alice", nil},
		{"query token", true, request("", "?token="+token), "alice", nil},
		{"other player", false, request("Bearer "+token, ""), "bob", game.ErrForbidden},
		{"garbage token", false, request("Bearer garbage", ""), "alice", game.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Authorizer(tt.require)(tt.req, tt.player)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
