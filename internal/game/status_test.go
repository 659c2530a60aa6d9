package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMatch(status Status) *Match {
	return &Match{
		ID:      "m1",
		Status:  status,
		Player1: Player{ID: "p1", Name: "alice"},
		Player2: Player{ID: "p2", Name: "bob"},
	}
}

func TestStatusNames(t *testing.T) {
	for _, s := range []Status{SettingUp, AwaitingPlayer1, AwaitingPlayer2, Finished} {
		parsed, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseStatus("p1 move")
	assert.Error(t, err)

	raw, err := json.Marshal(AwaitingPlayer2)
	require.NoError(t, err)
	assert.JSONEq(t, `"awaiting_player_2"`, string(raw))

	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"finished"`), &s))
	assert.Equal(t, Finished, s)
	assert.Error(t, json.Unmarshal([]byte(`"paused"`), &s))
}

func TestTransitions(t *testing.T) {
	m := testMatch(SettingUp)
	assert.ErrorIs(t, m.AdvanceTurn(), ErrInvalidMatchState)

	require.NoError(t, m.Start())
	assert.Equal(t, AwaitingPlayer1, m.Status)
	assert.ErrorIs(t, m.Start(), ErrInvalidMatchState)

	require.NoError(t, m.AdvanceTurn())
	assert.Equal(t, AwaitingPlayer2, m.Status)
	require.NoError(t, m.AdvanceTurn())
	assert.Equal(t, AwaitingPlayer1, m.Status)

	require.NoError(t, m.Finish(m.Player1))
	assert.Equal(t, Finished, m.Status)
	require.NotNil(t, m.Winner)
	assert.Equal(t, "alice", m.Winner.Name)

	assert.ErrorIs(t, m.Finish(m.Player2), ErrMatchAlreadyOver)
	assert.ErrorIs(t, m.AdvanceTurn(), ErrInvalidMatchState)
	assert.Equal(t, "alice", m.Winner.Name)
}

func TestCurrentTurn(t *testing.T) {
	turn, ok := testMatch(AwaitingPlayer2).CurrentTurn()
	assert.True(t, ok)
	assert.Equal(t, "bob", turn.Name)

	_, ok = testMatch(SettingUp).CurrentTurn()
	assert.False(t, ok)
	_, ok = testMatch(Finished).CurrentTurn()
	assert.False(t, ok)
}

func TestChecks(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		check  func(m *Match) error
		want   error
	}{
		{"place while setting up", SettingUp, func(m *Match) error { return m.CheckPlacement("p1") }, nil},
		{"place as outsider", SettingUp, func(m *Match) error { return m.CheckPlacement("p3") }, ErrInvalidMatchState},
		{"place in progress", AwaitingPlayer1, func(m *Match) error { return m.CheckPlacement("p1") }, ErrInvalidMatchState},
		{"place when finished", Finished, func(m *Match) error { return m.CheckPlacement("p2") }, ErrInvalidMatchState},
		{"shoot on turn", AwaitingPlayer1, func(m *Match) error { return m.CheckShot("p1") }, nil},
		{"shoot off turn", AwaitingPlayer1, func(m *Match) error { return m.CheckShot("p2") }, ErrNotYourTurn},
		{"player 2 on turn", AwaitingPlayer2, func(m *Match) error { return m.CheckShot("p2") }, nil},
		{"shoot during setup", SettingUp, func(m *Match) error { return m.CheckShot("p1") }, ErrInvalidMatchState},
		{"shoot when finished", Finished, func(m *Match) error { return m.CheckShot("p1") }, ErrInvalidMatchState},
		{"shoot as outsider", AwaitingPlayer1, func(m *Match) error { return m.CheckShot("p3") }, ErrInvalidMatchState},
		{"cancel setup", SettingUp, func(m *Match) error { return m.CheckCancel() }, nil},
		{"cancel in progress", AwaitingPlayer2, func(m *Match) error { return m.CheckCancel() }, nil},
		{"cancel finished", Finished, func(m *Match) error { return m.CheckCancel() }, ErrMatchAlreadyOver},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.check(testMatch(tt.status))
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestShotNotice(t *testing.T) {
	kind := Cruiser
	assert.Equal(t, "Your turn! alice missed at (3, 4).", shotNotice("alice", 3, 4, nil, false, false))
	assert.Equal(t, "Your turn! alice hit your Cruiser at (3, 4).", shotNotice("alice", 3, 4, &kind, false, false))
	assert.Equal(t, "Your turn! alice sunk your Cruiser at (3, 4).", shotNotice("alice", 3, 4, &kind, true, false))
	assert.Equal(t, "alice sunk Cruiser at (3, 4)! The game is over and alice won!", shotNotice("alice", 3, 4, &kind, true, true))
}
