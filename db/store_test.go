package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/krishanu7/battleship-engine/internal/game"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStore interface {
	game.Store
	CreateUser(ctx context.Context, u *User) error
	UserByName(ctx context.Context, username string) (*User, error)
	UserByID(ctx context.Context, id string) (*User, error)
	WinCounts(ctx context.Context) ([]WinCount, error)
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) testStore {
		return NewMemoryStore()
	})
}

// TestPostgresStore runs against a scratch database named by TEST_DB_URL.
func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DB_URL")
	if url == "" {
		t.Skip("TEST_DB_URL not set")
	}
	runStoreTests(t, func(t *testing.T) testStore {
		conn, err := sql.Open("postgres", url)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		ctx := context.Background()
		_, err = conn.ExecContext(ctx, `DROP TABLE IF EXISTS moves, positions, ships, matches, users CASCADE`)
		require.NoError(t, err)
		require.NoError(t, Migrate(ctx, conn))
		return NewPostgresStore(conn, 3)
	})
}

func newUser(t *testing.T, s testStore, name string) game.Player {
	t.Helper()
	u := &User{
		ID:        uuid.NewString(),
		Username:  name,
		Email:     name + "@example.com",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return game.Player{ID: u.ID, Name: u.Username, Email: u.Email}
}

func newMatch(t *testing.T, s testStore, p1, p2 game.Player, created time.Time) *game.Match {
	t.Helper()
	m := &game.Match{
		ID:        uuid.NewString(),
		Status:    game.SettingUp,
		Player1:   p1,
		Player2:   p2,
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, s.CreateMatch(context.Background(), m))
	return m
}

func destroyer(matchID, playerID string, x, y int) *game.Ship {
	now := time.Now().UTC().Truncate(time.Microsecond)
	ship := &game.Ship{ID: uuid.NewString(), MatchID: matchID, PlayerID: playerID, Kind: game.Destroyer, CreatedAt: now, UpdatedAt: now}
	for i := 0; i < 2; i++ {
		ship.Positions = append(ship.Positions, game.Position{ID: uuid.NewString(), ShipID: ship.ID, X: x + i, Y: y})
	}
	return ship
}

func runStoreTests(t *testing.T, open func(t *testing.T) testStore) {
	ctx := context.Background()

	t.Run("users", func(t *testing.T) {
		s := open(t)
		alice := newUser(t, s, "alice")

		err := s.CreateUser(ctx, &User{ID: uuid.NewString(), Username: "alice", CreatedAt: time.Now().UTC()})
		assert.ErrorIs(t, err, game.ErrAlreadyExists)

		byName, err := s.UserByName(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, byName.ID)
		assert.Equal(t, "alice@example.com", byName.Email)

		byID, err := s.UserByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", byID.Username)

		_, err = s.UserByName(ctx, "nobody")
		assert.ErrorIs(t, err, game.ErrNotFound)
		_, err = s.UserByID(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, game.ErrNotFound)
	})

	t.Run("match lookups", func(t *testing.T) {
		s := open(t)
		alice, bob, carol := newUser(t, s, "alice"), newUser(t, s, "bob"), newUser(t, s, "carol")
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		first := newMatch(t, s, alice, bob, base)
		second := newMatch(t, s, carol, alice, base.Add(time.Minute))
		newMatch(t, s, bob, carol, base.Add(2*time.Minute))

		got, err := s.GetMatch(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, game.SettingUp, got.Status)
		assert.Equal(t, "alice", got.Player1.Name)
		assert.Equal(t, "bob", got.Player2.Name)
		assert.Nil(t, got.Winner)

		_, err = s.GetMatch(ctx, uuid.NewString())
		assert.ErrorIs(t, err, game.ErrNotFound)
		_, err = s.GetMatch(ctx, "garbage")
		assert.ErrorIs(t, err, game.ErrNotFound)

		openMatches, err := s.ListOpenMatches(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, openMatches, 2)
		assert.Equal(t, first.ID, openMatches[0].ID)
		assert.Equal(t, second.ID, openMatches[1].ID)

		inProgress, err := s.ListInProgressMatches(ctx)
		require.NoError(t, err)
		assert.Empty(t, inProgress)
	})

	t.Run("run in match commits on success", func(t *testing.T) {
		s := open(t)
		alice, bob := newUser(t, s, "alice"), newUser(t, s, "bob")
		m := newMatch(t, s, alice, bob, time.Now().UTC().Truncate(time.Microsecond))
		ship := destroyer(m.ID, alice.ID, 0, 0)

		err := s.RunInMatch(ctx, m.ID, func(tx game.MatchTx) error {
			if err := tx.InsertShip(ship); err != nil {
				return err
			}
			if err := tx.MarkHit(ship.Positions[0].ID); err != nil {
				return err
			}
			cur := tx.Match()
			cur.Status = game.AwaitingPlayer2
			return tx.UpdateMatch(cur)
		})
		require.NoError(t, err)

		records, err := s.LoadMatchRecords(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, game.AwaitingPlayer2, records.Match.Status)
		require.Len(t, records.Ships, 1)
		require.Len(t, records.Ships[0].Positions, 2)
		assert.True(t, records.Ships[0].Positions[0].Hit)
		assert.False(t, records.Ships[0].Positions[1].Hit)

		inProgress, err := s.ListInProgressMatches(ctx)
		require.NoError(t, err)
		require.Len(t, inProgress, 1)
	})

	t.Run("run in match rolls back on error", func(t *testing.T) {
		s := open(t)
		alice, bob := newUser(t, s, "alice"), newUser(t, s, "bob")
		m := newMatch(t, s, alice, bob, time.Now().UTC().Truncate(time.Microsecond))
		boom := errors.New("boom")

		err := s.RunInMatch(ctx, m.ID, func(tx game.MatchTx) error {
			if err := tx.InsertShip(destroyer(m.ID, alice.ID, 0, 0)); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		records, err := s.LoadMatchRecords(ctx, m.ID)
		require.NoError(t, err)
		assert.Empty(t, records.Ships)
	})

	t.Run("unique ship and move", func(t *testing.T) {
		s := open(t)
		alice, bob := newUser(t, s, "alice"), newUser(t, s, "bob")
		m := newMatch(t, s, alice, bob, time.Now().UTC().Truncate(time.Microsecond))

		require.NoError(t, s.RunInMatch(ctx, m.ID, func(tx game.MatchTx) error {
			return tx.InsertShip(destroyer(m.ID, alice.ID, 0, 0))
		}))
		err := s.RunInMatch(ctx, m.ID, func(tx game.MatchTx) error {
			return tx.InsertShip(destroyer(m.ID, alice.ID, 0, 5))
		})
		assert.ErrorIs(t, err, game.ErrInvalidShip)

		move := func() *game.Move {
			return &game.Move{ID: uuid.NewString(), MatchID: m.ID, PlayerID: bob.ID, X: 3, Y: 4, CreatedAt: time.Now().UTC()}
		}
		require.NoError(t, s.RunInMatch(ctx, m.ID, func(tx game.MatchTx) error {
			return tx.InsertMove(move())
		}))
		err = s.RunInMatch(ctx, m.ID, func(tx game.MatchTx) error {
			fired, err := tx.HasMove(bob.ID, 3, 4)
			require.NoError(t, err)
			assert.True(t, fired)
			return tx.InsertMove(move())
		})
		assert.ErrorIs(t, err, game.ErrDuplicateMove)
	})

	t.Run("delete cascades", func(t *testing.T) {
		s := open(t)
		alice, bob := newUser(t, s, "alice"), newUser(t, s, "bob")
		m := newMatch(t, s, alice, bob, time.Now().UTC().Truncate(time.Microsecond))
		require.NoError(t, s.RunInMatch(ctx, m.ID, func(tx game.MatchTx) error {
			return tx.InsertShip(destroyer(m.ID, alice.ID, 0, 0))
		}))

		require.NoError(t, s.RunInMatch(ctx, m.ID, func(tx game.MatchTx) error {
			return tx.DeleteMatch()
		}))

		_, err := s.GetMatch(ctx, m.ID)
		assert.ErrorIs(t, err, game.ErrNotFound)
		_, err = s.LoadMatchRecords(ctx, m.ID)
		assert.ErrorIs(t, err, game.ErrNotFound)
		err = s.RunInMatch(ctx, m.ID, func(tx game.MatchTx) error { return nil })
		assert.ErrorIs(t, err, game.ErrNotFound)
	})

	t.Run("win counts", func(t *testing.T) {
		s := open(t)
		alice, bob, carol := newUser(t, s, "alice"), newUser(t, s, "bob"), newUser(t, s, "carol")
		finish := func(p1, p2, winner game.Player) {
			m := newMatch(t, s, p1, p2, time.Now().UTC().Truncate(time.Microsecond))
			require.NoError(t, s.RunInMatch(ctx, m.ID, func(tx game.MatchTx) error {
				cur := tx.Match()
				cur.Status = game.Finished
				cur.Winner = &winner
				return tx.UpdateMatch(cur)
			}))
		}
		finish(alice, bob, bob)
		finish(carol, bob, bob)
		finish(alice, carol, alice)
		newMatch(t, s, alice, carol, time.Now().UTC())

		counts, err := s.WinCounts(ctx)
		require.NoError(t, err)
		require.Len(t, counts, 3)
		assert.Equal(t, "bob", counts[0].Username)
		assert.Equal(t, 2, counts[0].Wins)
		assert.Equal(t, "alice", counts[1].Username)
		assert.Equal(t, 1, counts[1].Wins)
		assert.Equal(t, "carol", counts[2].Username)
		assert.Equal(t, 0, counts[2].Wins)
	})
}
