package game

import "context"

// Store persists matches and everything beneath them. All writes to one
// match go through RunInMatch.
type Store interface {
	CreateMatch(ctx context.Context, m *Match) error
	GetMatch(ctx context.Context, id string) (*Match, error)
	// ListOpenMatches returns the player's unfinished matches, oldest first.
	ListOpenMatches(ctx context.Context, playerID string) ([]Match, error)
	// ListInProgressMatches returns every match waiting on a player's shot.
	ListInProgressMatches(ctx context.Context) ([]Match, error)
	// LoadMatchRecords reads the match, its ships (with positions) and its
	// moves from a single consistent snapshot, in creation order.
	LoadMatchRecords(ctx context.Context, id string) (*MatchRecords, error)
	// RunInMatch runs fn atomically and serialized against every other
	// writer of the same match. If fn returns an error nothing is persisted.
	RunInMatch(ctx context.Context, matchID string, fn func(tx MatchTx) error) error
}

// MatchTx is the view of one locked match inside RunInMatch.
type MatchTx interface {
	Match() *Match
	// Ships returns the player's ships with positions, in creation order.
	Ships(playerID string) ([]Ship, error)
	HasMove(playerID string, x, y int) (bool, error)
	UpdateMatch(m *Match) error
	// InsertShip stores the ship together with its positions.
	InsertShip(s *Ship) error
	InsertMove(mv *Move) error
	MarkHit(positionID string) error
	MarkSunk(shipID string) error
	DeleteMatch() error
}

// PlayerDirectory resolves accounts for the engine.
type PlayerDirectory interface {
	PlayerByName(ctx context.Context, name string) (Player, error)
}

// Notifier delivers notifications out of band.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
