package db

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/krishanu7/battleship-engine/internal/game"
)

// MemoryStore is a process-local store used when no database is configured
// and in tests. Writers of one match are serialized by that match's mutex
// and work on a copy that replaces the stored state only when fn succeeds.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]*User
	byName  map[string]string
	matches map[string]*matchState
}

type matchState struct {
	mu      sync.Mutex
	match   game.Match
	ships   []game.Ship
	moves   []game.Move
	deleted bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   map[string]*User{},
		byName:  map[string]string{},
		matches: map[string]*matchState{},
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[u.Username]; ok {
		return fmt.Errorf("%w: username %s", game.ErrAlreadyExists, u.Username)
	}
	stored := *u
	s.users[u.ID] = &stored
	s.byName[u.Username] = u.ID
	return nil
}

func (s *MemoryStore) UserByName(_ context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[username]
	if !ok {
		return nil, fmt.Errorf("%w: %s", game.ErrPlayerNotFound, username)
	}
	u := *s.users[id]
	return &u, nil
}

func (s *MemoryStore) UserByID(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", game.ErrPlayerNotFound, id)
	}
	out := *u
	return &out, nil
}

func (s *MemoryStore) WinCounts(_ context.Context) ([]WinCount, error) {
	wins := map[string]int{}
	for _, m := range s.listMatches(func(m *game.Match) bool {
		return m.Status == game.Finished && m.Winner != nil
	}) {
		wins[m.Winner.ID]++
	}

	s.mu.RLock()
	counts := make([]WinCount, 0, len(s.users))
	for _, u := range s.users {
		counts = append(counts, WinCount{PlayerID: u.ID, Username: u.Username, Wins: wins[u.ID]})
	}
	s.mu.RUnlock()

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Wins != counts[j].Wins {
			return counts[i].Wins > counts[j].Wins
		}
		return counts[i].Username < counts[j].Username
	})
	return counts, nil
}

func (s *MemoryStore) CreateMatch(_ context.Context, m *game.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[m.ID]; ok {
		return fmt.Errorf("%w: match %s", game.ErrAlreadyExists, m.ID)
	}
	s.matches[m.ID] = &matchState{match: copyMatch(*m)}
	return nil
}

func (s *MemoryStore) state(id string) (*matchState, error) {
	s.mu.RLock()
	st, ok := s.matches[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", game.ErrMatchNotFound, id)
	}
	return st, nil
}

func (s *MemoryStore) GetMatch(_ context.Context, id string) (*game.Match, error) {
	st, err := s.state(id)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.deleted {
		return nil, fmt.Errorf("%w: %s", game.ErrMatchNotFound, id)
	}
	m := copyMatch(st.match)
	return &m, nil
}

func (s *MemoryStore) listMatches(keep func(m *game.Match) bool) []game.Match {
	s.mu.RLock()
	states := make([]*matchState, 0, len(s.matches))
	for _, st := range s.matches {
		states = append(states, st)
	}
	s.mu.RUnlock()

	matches := []game.Match{}
	for _, st := range states {
		st.mu.Lock()
		if !st.deleted && keep(&st.match) {
			matches = append(matches, copyMatch(st.match))
		}
		st.mu.Unlock()
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		return matches[i].ID < matches[j].ID
	})
	return matches
}

func (s *MemoryStore) ListOpenMatches(_ context.Context, playerID string) ([]game.Match, error) {
	return s.listMatches(func(m *game.Match) bool {
		return m.Status != game.Finished && m.Slot(playerID) != 0
	}), nil
}

func (s *MemoryStore) ListInProgressMatches(_ context.Context) ([]game.Match, error) {
	return s.listMatches(func(m *game.Match) bool {
		return m.Status.InProgress()
	}), nil
}

func (s *MemoryStore) LoadMatchRecords(_ context.Context, id string) (*game.MatchRecords, error) {
	st, err := s.state(id)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.deleted {
		return nil, fmt.Errorf("%w: %s", game.ErrMatchNotFound, id)
	}
	m := copyMatch(st.match)
	return &game.MatchRecords{
		Match: &m,
		Ships: copyShips(st.ships),
		Moves: append([]game.Move{}, st.moves...),
	}, nil
}

func (s *MemoryStore) RunInMatch(ctx context.Context, matchID string, fn func(tx game.MatchTx) error) error {
	st, err := s.state(matchID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.deleted {
		return fmt.Errorf("%w: %s", game.ErrMatchNotFound, matchID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memMatchTx{
		match: copyMatch(st.match),
		ships: copyShips(st.ships),
		moves: append([]game.Move{}, st.moves...),
	}
	if err := fn(tx); err != nil {
		return err
	}

	if tx.deleted {
		st.deleted = true
		s.mu.Lock()
		delete(s.matches, matchID)
		s.mu.Unlock()
		return nil
	}
	st.match, st.ships, st.moves = tx.match, tx.ships, tx.moves
	return nil
}

type memMatchTx struct {
	match   game.Match
	ships   []game.Ship
	moves   []game.Move
	deleted bool
}

func (t *memMatchTx) Match() *game.Match {
	return &t.match
}

func (t *memMatchTx) Ships(playerID string) ([]game.Ship, error) {
	out := []game.Ship{}
	for _, ship := range t.ships {
		if ship.PlayerID == playerID {
			out = append(out, copyShip(ship))
		}
	}
	return out, nil
}

func (t *memMatchTx) HasMove(playerID string, x, y int) (bool, error) {
	for _, mv := range t.moves {
		if mv.PlayerID == playerID && mv.X == x && mv.Y == y {
			return true, nil
		}
	}
	return false, nil
}

func (t *memMatchTx) UpdateMatch(m *game.Match) error {
	t.match = copyMatch(*m)
	return nil
}

func (t *memMatchTx) InsertShip(ship *game.Ship) error {
	for _, other := range t.ships {
		if other.PlayerID == ship.PlayerID && other.Kind == ship.Kind {
			return fmt.Errorf("%w: %s is already placed", game.ErrInvalidShip, ship.Kind)
		}
	}
	t.ships = append(t.ships, copyShip(*ship))
	return nil
}

func (t *memMatchTx) InsertMove(mv *game.Move) error {
	if dup, _ := t.HasMove(mv.PlayerID, mv.X, mv.Y); dup {
		return fmt.Errorf("%w: you already fired at (%d, %d)", game.ErrDuplicateMove, mv.X, mv.Y)
	}
	t.moves = append(t.moves, *mv)
	return nil
}

func (t *memMatchTx) MarkHit(positionID string) error {
	for i := range t.ships {
		for j := range t.ships[i].Positions {
			if t.ships[i].Positions[j].ID == positionID {
				t.ships[i].Positions[j].Hit = true
				return nil
			}
		}
	}
	return fmt.Errorf("%w: position %s", game.ErrNotFound, positionID)
}

func (t *memMatchTx) MarkSunk(shipID string) error {
	for i := range t.ships {
		if t.ships[i].ID == shipID {
			t.ships[i].Sunk = true
			t.ships[i].UpdatedAt = t.match.UpdatedAt
			return nil
		}
	}
	return fmt.Errorf("%w: ship %s", game.ErrNotFound, shipID)
}

func (t *memMatchTx) DeleteMatch() error {
	t.deleted = true
	return nil
}

func copyMatch(m game.Match) game.Match {
	if m.Winner != nil {
		w := *m.Winner
		m.Winner = &w
	}
	return m
}

func copyShip(ship game.Ship) game.Ship {
	ship.Positions = append([]game.Position{}, ship.Positions...)
	return ship
}

func copyShips(ships []game.Ship) []game.Ship {
	out := make([]game.Ship, 0, len(ships))
	for _, ship := range ships {
		out = append(out, copyShip(ship))
	}
	return out
}
