package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/krishanu7/battleship-engine/internal/game"
	"github.com/krishanu7/battleship-engine/pkg/logging"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// PostgresStore keeps accounts and matches in PostgreSQL. Every write to a
// match runs in a transaction that holds the match row lock.
type PostgresStore struct {
	db      *sql.DB
	retries int
	backoff func(attempt int) time.Duration
}

func NewPostgresStore(conn *sql.DB, retries int) *PostgresStore {
	if retries < 0 {
		retries = 0
	}
	return &PostgresStore{db: conn, retries: retries, backoff: linearBackoff}
}

func linearBackoff(attempt int) time.Duration {
	return time.Duration(attempt+1) * 10 * time.Millisecond
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

const selectMatch = `
	SELECT m.id, m.status, m.created_at, m.updated_at,
		p1.id, p1.username, COALESCE(p1.email, ''),
		p2.id, p2.username, COALESCE(p2.email, ''),
		w.id, w.username, COALESCE(w.email, '')
	FROM matches m
	JOIN users p1 ON p1.id = m.player1_id
	JOIN users p2 ON p2.id = m.player2_id
	LEFT JOIN users w ON w.id = m.winner_id`

func scanMatch(row rowScanner) (*game.Match, error) {
	var (
		m                                 game.Match
		status                            string
		winnerID, winnerName, winnerEmail sql.NullString
	)
	err := row.Scan(&m.ID, &status, &m.CreatedAt, &m.UpdatedAt,
		&m.Player1.ID, &m.Player1.Name, &m.Player1.Email,
		&m.Player2.ID, &m.Player2.Name, &m.Player2.Email,
		&winnerID, &winnerName, &winnerEmail)
	if err != nil {
		return nil, err
	}
	if m.Status, err = game.ParseStatus(status); err != nil {
		return nil, err
	}
	if winnerID.Valid {
		m.Winner = &game.Player{ID: winnerID.String, Name: winnerName.String, Email: winnerEmail.String}
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}

func scanMatches(rows *sql.Rows) ([]game.Match, error) {
	defer rows.Close()
	matches := []game.Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

func matchNotFound(id string) error {
	return fmt.Errorf("%w: %s", game.ErrMatchNotFound, id)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *PostgresStore) CreateMatch(ctx context.Context, m *game.Match) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matches (id, status, player1_id, player2_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.Status.String(), m.Player1.ID, m.Player2.ID, m.CreatedAt, m.UpdatedAt)
	return err
}

func (s *PostgresStore) GetMatch(ctx context.Context, id string) (*game.Match, error) {
	if !validID(id) {
		return nil, matchNotFound(id)
	}
	m, err := scanMatch(s.db.QueryRowContext(ctx, selectMatch+` WHERE m.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, matchNotFound(id)
	}
	return m, err
}

func (s *PostgresStore) ListOpenMatches(ctx context.Context, playerID string) ([]game.Match, error) {
	rows, err := s.db.QueryContext(ctx, selectMatch+`
		WHERE (m.player1_id = $1 OR m.player2_id = $1) AND m.status <> 'finished'
		ORDER BY m.created_at, m.id`, playerID)
	if err != nil {
		return nil, err
	}
	return scanMatches(rows)
}

func (s *PostgresStore) ListInProgressMatches(ctx context.Context) ([]game.Match, error) {
	rows, err := s.db.QueryContext(ctx, selectMatch+`
		WHERE m.status IN ('awaiting_player_1', 'awaiting_player_2')
		ORDER BY m.created_at, m.id`)
	if err != nil {
		return nil, err
	}
	return scanMatches(rows)
}

func (s *PostgresStore) LoadMatchRecords(ctx context.Context, id string) (*game.MatchRecords, error) {
	if !validID(id) {
		return nil, matchNotFound(id)
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m, err := scanMatch(tx.QueryRowContext(ctx, selectMatch+` WHERE m.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, matchNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	ships, err := loadShips(ctx, tx, id, "")
	if err != nil {
		return nil, err
	}
	moves, err := loadMoves(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &game.MatchRecords{Match: m, Ships: ships, Moves: moves}, nil
}

// RunInMatch locks the match row with SELECT ... FOR UPDATE and runs fn in
// the same transaction. Serialization failures and deadlocks are retried.
func (s *PostgresStore) RunInMatch(ctx context.Context, matchID string, fn func(tx game.MatchTx) error) error {
	if !validID(matchID) {
		return matchNotFound(matchID)
	}
	return s.retryConflicts(ctx, matchID, func() error {
		return s.runInMatch(ctx, matchID, fn)
	})
}

// retryConflicts runs op until it succeeds, fails for a reason other than a
// serialization failure or deadlock, or has been retried s.retries times.
func (s *PostgresStore) retryConflicts(ctx context.Context, matchID string, op func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = op()
		if !retryable(err) {
			return err
		}
		if attempt == s.retries {
			break
		}
		logging.Warn("match transaction conflict, retrying",
			zap.String("match_id", matchID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff(attempt)):
		}
	}
	return fmt.Errorf("%w: %v", game.ErrConflict, err)
}

func (s *PostgresStore) runInMatch(ctx context.Context, matchID string, fn func(tx game.MatchTx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	m, err := scanMatch(tx.QueryRowContext(ctx, selectMatch+` WHERE m.id = $1 FOR UPDATE OF m`, matchID))
	if errors.Is(err, sql.ErrNoRows) {
		return matchNotFound(matchID)
	}
	if err != nil {
		return err
	}
	if err = fn(&pgMatchTx{ctx: ctx, tx: tx, match: m}); err != nil {
		return err
	}
	return tx.Commit()
}

func retryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == codeSerializationFailure || pqErr.Code == codeDeadlockDetected
}

func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

type pgMatchTx struct {
	ctx   context.Context
	tx    *sql.Tx
	match *game.Match
}

func (t *pgMatchTx) Match() *game.Match {
	return t.match
}

func (t *pgMatchTx) Ships(playerID string) ([]game.Ship, error) {
	return loadShips(t.ctx, t.tx, t.match.ID, playerID)
}

func (t *pgMatchTx) HasMove(playerID string, x, y int) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT EXISTS (
			SELECT 1 FROM moves WHERE match_id = $1 AND player_id = $2 AND x = $3 AND y = $4
		)`, t.match.ID, playerID, x, y).Scan(&exists)
	return exists, err
}

func (t *pgMatchTx) UpdateMatch(m *game.Match) error {
	var winner sql.NullString
	if m.Winner != nil {
		winner = sql.NullString{String: m.Winner.ID, Valid: true}
	}
	_, err := t.tx.ExecContext(t.ctx, `
		UPDATE matches SET status = $2, winner_id = $3, updated_at = $4 WHERE id = $1`,
		m.ID, m.Status.String(), winner, m.UpdatedAt)
	return err
}

func (t *pgMatchTx) InsertShip(ship *game.Ship) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO ships (id, match_id, player_id, kind, sunk, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ship.ID, ship.MatchID, ship.PlayerID, string(ship.Kind), ship.Sunk, ship.CreatedAt, ship.UpdatedAt)
	if constraint, ok := uniqueViolation(err); ok && constraint == "ships_match_player_kind_key" {
		return fmt.Errorf("%w: %s is already placed", game.ErrInvalidShip, ship.Kind)
	}
	if err != nil {
		return err
	}
	for _, p := range ship.Positions {
		_, err := t.tx.ExecContext(t.ctx, `
			INSERT INTO positions (id, ship_id, x, y, hit) VALUES ($1, $2, $3, $4, $5)`,
			p.ID, ship.ID, p.X, p.Y, p.Hit)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *pgMatchTx) InsertMove(mv *game.Move) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO moves (id, match_id, player_id, x, y, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		mv.ID, mv.MatchID, mv.PlayerID, mv.X, mv.Y, mv.CreatedAt)
	if constraint, ok := uniqueViolation(err); ok && constraint == "moves_match_player_xy_key" {
		return fmt.Errorf("%w: you already fired at (%d, %d)", game.ErrDuplicateMove, mv.X, mv.Y)
	}
	return err
}

func (t *pgMatchTx) MarkHit(positionID string) error {
	_, err := t.tx.ExecContext(t.ctx, `UPDATE positions SET hit = TRUE WHERE id = $1`, positionID)
	return err
}

func (t *pgMatchTx) MarkSunk(shipID string) error {
	_, err := t.tx.ExecContext(t.ctx, `UPDATE ships SET sunk = TRUE, updated_at = $2 WHERE id = $1`,
		shipID, time.Now().UTC().Truncate(time.Microsecond))
	return err
}

func (t *pgMatchTx) DeleteMatch() error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM matches WHERE id = $1`, t.match.ID)
	return err
}

// loadShips reads a match's ships with their positions in creation order.
// An empty playerID loads both fleets.
func loadShips(ctx context.Context, q queryer, matchID, playerID string) ([]game.Ship, error) {
	filter, args := ``, []any{matchID}
	if playerID != "" {
		filter, args = ` AND s.player_id = $2`, append(args, playerID)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT s.id, s.match_id, s.player_id, s.kind, s.sunk, s.created_at, s.updated_at
		FROM ships s WHERE s.match_id = $1`+filter+` ORDER BY s.seq`, args...)
	if err != nil {
		return nil, err
	}
	ships := []game.Ship{}
	index := map[string]int{}
	for rows.Next() {
		var ship game.Ship
		var kind string
		if err := rows.Scan(&ship.ID, &ship.MatchID, &ship.PlayerID, &kind, &ship.Sunk, &ship.CreatedAt, &ship.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		ship.Kind = game.ShipKind(kind)
		ship.CreatedAt = ship.CreatedAt.UTC()
		ship.UpdatedAt = ship.UpdatedAt.UTC()
		ship.Positions = []game.Position{}
		index[ship.ID] = len(ships)
		ships = append(ships, ship)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ships) == 0 {
		return ships, nil
	}

	rows, err = q.QueryContext(ctx, `
		SELECT p.id, p.ship_id, p.x, p.y, p.hit
		FROM positions p JOIN ships s ON s.id = p.ship_id
		WHERE s.match_id = $1`+filter+` ORDER BY p.seq`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p game.Position
		if err := rows.Scan(&p.ID, &p.ShipID, &p.X, &p.Y, &p.Hit); err != nil {
			return nil, err
		}
		if i, ok := index[p.ShipID]; ok {
			ships[i].Positions = append(ships[i].Positions, p)
		}
	}
	return ships, rows.Err()
}

func loadMoves(ctx context.Context, q queryer, matchID string) ([]game.Move, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, match_id, player_id, x, y, created_at
		FROM moves WHERE match_id = $1 ORDER BY seq`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	moves := []game.Move{}
	for rows.Next() {
		var mv game.Move
		if err := rows.Scan(&mv.ID, &mv.MatchID, &mv.PlayerID, &mv.X, &mv.Y, &mv.CreatedAt); err != nil {
			return nil, err
		}
		mv.CreatedAt = mv.CreatedAt.UTC()
		moves = append(moves, mv)
	}
	return moves, rows.Err()
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	var email sql.NullString
	if u.Email != "" {
		email = sql.NullString{String: u.Email, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password, created_at) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Username, email, u.Password, u.CreatedAt)
	if constraint, ok := uniqueViolation(err); ok && constraint == "users_username_key" {
		return fmt.Errorf("%w: username %s", game.ErrAlreadyExists, u.Username)
	}
	return err
}

const selectUser = `SELECT id, username, COALESCE(email, ''), password, created_at FROM users`

func scanUser(row rowScanner, key string) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", game.ErrPlayerNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (s *PostgresStore) UserByName(ctx context.Context, username string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx, selectUser+` WHERE username = $1`, username), username)
}

func (s *PostgresStore) UserByID(ctx context.Context, id string) (*User, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %s", game.ErrPlayerNotFound, id)
	}
	return scanUser(s.db.QueryRowContext(ctx, selectUser+` WHERE id = $1`, id), id)
}

// WinCounts ranks every account by finished matches won.
func (s *PostgresStore) WinCounts(ctx context.Context) ([]WinCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, COUNT(m.id) AS wins
		FROM users u
		LEFT JOIN matches m ON m.winner_id = u.id AND m.status = 'finished'
		GROUP BY u.id, u.username
		ORDER BY wins DESC, u.username ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := []WinCount{}
	for rows.Next() {
		var c WinCount
		if err := rows.Scan(&c.PlayerID, &c.Username, &c.Wins); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
