package game

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/krishanu7/battleship-engine/pkg/logging"
	"go.uber.org/zap"
)

const (
	DefaultBoardSize     = 10
	defaultNotifyTimeout = 5 * time.Second
	finishHookTimeout    = 30 * time.Second
)

type Config struct {
	BoardSize     int
	NotifyTimeout time.Duration
}

// FinishHook runs in the background after a match ends with a winner.
type FinishHook func(ctx context.Context, m Match)

type Service struct {
	store         Store
	players       PlayerDirectory
	notifier      Notifier
	boardSize     int
	notifyTimeout time.Duration
	hooks         []FinishHook
	now           func() time.Time
}

func NewService(store Store, players PlayerDirectory, notifier Notifier, cfg Config) *Service {
	if cfg.BoardSize <= 0 {
		cfg.BoardSize = DefaultBoardSize
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	return &Service{
		store:         store,
		players:       players,
		notifier:      notifier,
		boardSize:     cfg.BoardSize,
		notifyTimeout: cfg.NotifyTimeout,
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	}
}

// OnFinish registers a hook. Call it before serving requests.
func (s *Service) OnFinish(hook FinishHook) {
	s.hooks = append(s.hooks, hook)
}

func (s *Service) BoardSize() int {
	return s.boardSize
}

func (s *Service) CreateMatch(ctx context.Context, player1, player2 string) (*Match, error) {
	p1, err := s.players.PlayerByName(ctx, player1)
	if err != nil {
		return nil, err
	}
	p2, err := s.players.PlayerByName(ctx, player2)
	if err != nil {
		return nil, err
	}
	if p1.ID == p2.ID {
		return nil, fmt.Errorf("%w: %s cannot play against themselves", ErrInvalidMatchState, p1.Name)
	}

	now := s.now()
	m := &Match{
		ID:        uuid.NewString(),
		Status:    SettingUp,
		Player1:   p1,
		Player2:   p2,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateMatch(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}
	logging.Info("match created",
		zap.String("match_id", m.ID),
		zap.String("player_1", p1.Name),
		zap.String("player_2", p2.Name),
	)
	s.dispatch(Notification{
		Type:       NotifyMatchCreated,
		MatchID:    m.ID,
		Recipients: recipients(m),
		Message:    fmt.Sprintf("%s vs %s: place your ships!", p1.Name, p2.Name),
	})
	return m, nil
}

func (s *Service) GetMatch(ctx context.Context, matchID string) (*Match, error) {
	return s.store.GetMatch(ctx, matchID)
}

func (s *Service) ListOpenMatches(ctx context.Context, playerName string) ([]Match, error) {
	player, err := s.players.PlayerByName(ctx, playerName)
	if err != nil {
		return nil, err
	}
	return s.store.ListOpenMatches(ctx, player.ID)
}

// RemainingShips lists the roster kinds the player has not placed yet.
func (s *Service) RemainingShips(ctx context.Context, matchID, playerName string) ([]ShipKind, error) {
	player, err := s.players.PlayerByName(ctx, playerName)
	if err != nil {
		return nil, err
	}
	records, err := s.store.LoadMatchRecords(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if records.Match.Slot(player.ID) == 0 {
		return nil, fmt.Errorf("%w: %s is not playing this match", ErrInvalidMatchState, player.Name)
	}
	var own []Ship
	for _, ship := range records.Ships {
		if ship.PlayerID == player.ID {
			own = append(own, ship)
		}
	}
	return remainingShips(own), nil
}

func (s *Service) PlaceShip(ctx context.Context, matchID, playerName string, kind ShipKind, x, y int, o Orientation) (*Placement, error) {
	player, err := s.players.PlayerByName(ctx, playerName)
	if err != nil {
		return nil, err
	}

	var placement *Placement
	err = s.store.RunInMatch(ctx, matchID, func(tx MatchTx) error {
		m := tx.Match()
		if err := m.CheckPlacement(player.ID); err != nil {
			return err
		}
		own, err := tx.Ships(player.ID)
		if err != nil {
			return err
		}
		remaining := remainingShips(own)
		if !containsKind(remaining, kind) {
			return fmt.Errorf("%w: cannot place %q. %s", ErrInvalidShip, kind, remainingMessage(remaining))
		}

		cells, err := Cells(x, y, kind.Length(), o, s.boardSize)
		if err != nil {
			return err
		}
		for _, c := range cells {
			for _, other := range own {
				if other.Occupies(c.X, c.Y) >= 0 {
					return fmt.Errorf("%w: (%d, %d) is already taken by your %s", ErrPositionOccupied, c.X, c.Y, other.Kind)
				}
			}
		}

		now := s.now()
		ship := &Ship{
			ID:        uuid.NewString(),
			MatchID:   m.ID,
			PlayerID:  player.ID,
			Kind:      kind,
			CreatedAt: now,
			UpdatedAt: now,
		}
		for _, c := range cells {
			ship.Positions = append(ship.Positions, Position{
				ID:     uuid.NewString(),
				ShipID: ship.ID,
				X:      c.X,
				Y:      c.Y,
			})
		}
		if err := tx.InsertShip(ship); err != nil {
			return err
		}

		ownRemaining := withoutKind(remaining, kind)
		oppShips, err := tx.Ships(m.Opponent(player.ID).ID)
		if err != nil {
			return err
		}
		oppRemaining := remainingShips(oppShips)

		if len(ownRemaining) == 0 && len(oppRemaining) == 0 {
			if err := m.Start(); err != nil {
				return err
			}
			m.UpdatedAt = now
			if err := tx.UpdateMatch(m); err != nil {
				return err
			}
		}

		slot := m.Slot(player.ID)
		snapshot := *m
		placement = &Placement{Match: &snapshot, Message: placedMessage(player.Name, ownRemaining)}
		placement.Remaining[slot-1] = ownRemaining
		placement.Remaining[2-slot] = oppRemaining
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Info("ship placed",
		zap.String("match_id", matchID),
		zap.String("player", player.Name),
		zap.String("ship", string(kind)),
		zap.Int("x", x),
		zap.Int("y", y),
		zap.String("orientation", o.String()),
	)
	if placement.Match.Status == AwaitingPlayer1 {
		logging.Info("match started", zap.String("match_id", matchID))
		s.dispatch(Notification{
			Type:       NotifyMatchStarted,
			MatchID:    matchID,
			Recipients: recipients(placement.Match),
			Message:    startedMessage(placement.Match),
		})
	}
	return placement, nil
}

// FireShot resolves one shot. The turn passes to the opponent whatever the
// result, unless the shot sinks the opponent's last ship.
func (s *Service) FireShot(ctx context.Context, matchID, playerName string, x, y int) (*ShotOutcome, error) {
	player, err := s.players.PlayerByName(ctx, playerName)
	if err != nil {
		return nil, err
	}

	var (
		outcome *ShotOutcome
		notice  Notification
	)
	err = s.store.RunInMatch(ctx, matchID, func(tx MatchTx) error {
		m := tx.Match()
		if err := m.CheckShot(player.ID); err != nil {
			return err
		}
		if !InBounds(x, y, s.boardSize) {
			return fmt.Errorf("%w: (%d, %d) is off the %dx%d board", ErrOutOfBounds, x, y, s.boardSize, s.boardSize)
		}
		fired, err := tx.HasMove(player.ID, x, y)
		if err != nil {
			return err
		}
		if fired {
			return fmt.Errorf("%w: you already fired at (%d, %d)", ErrDuplicateMove, x, y)
		}

		now := s.now()
		if err := m.AdvanceTurn(); err != nil {
			return err
		}
		m.UpdatedAt = now
		if err := tx.UpdateMatch(m); err != nil {
			return err
		}
		if err := tx.InsertMove(&Move{
			ID:        uuid.NewString(),
			MatchID:   m.ID,
			PlayerID:  player.ID,
			X:         x,
			Y:         y,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		fleet, err := tx.Ships(m.Opponent(player.ID).ID)
		if err != nil {
			return err
		}
		outcome = &ShotOutcome{Message: missMessage(x, y)}
		notice = Notification{Type: NotifyShot, MatchID: m.ID, Recipients: recipients(m)}

		for i := range fleet {
			ship := &fleet[i]
			if ship.Sunk {
				continue
			}
			idx := ship.Occupies(x, y)
			if idx < 0 {
				continue
			}
			pos := &ship.Positions[idx]
			if !pos.Hit {
				pos.Hit = true
				if err := tx.MarkHit(pos.ID); err != nil {
					return err
				}
			}
			kind := ship.Kind
			sunk := ship.AllHit()
			outcome.Hit = true
			outcome.Ship = &kind
			outcome.Sunk = &sunk
			outcome.Message = hitMessage(kind)
			if sunk {
				ship.Sunk = true
				if err := tx.MarkSunk(ship.ID); err != nil {
					return err
				}
				outcome.Message = sunkMessage(kind)
				if fleetSunk(fleet) {
					if err := m.Finish(player); err != nil {
						return err
					}
					if err := tx.UpdateMatch(m); err != nil {
						return err
					}
					outcome.Won = true
					outcome.Message = winMessage
					notice.Type = NotifyGameOver
				}
			}
			break
		}
		notice.Message = shotNotice(player.Name, x, y, outcome.Ship, outcome.Sunk != nil && *outcome.Sunk, outcome.Won)
		snapshot := *m
		outcome.Match = &snapshot
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Info("shot fired",
		zap.String("match_id", matchID),
		zap.String("player", player.Name),
		zap.Int("x", x),
		zap.Int("y", y),
		zap.Bool("hit", outcome.Hit),
		zap.Bool("won", outcome.Won),
		zap.String("status", outcome.Match.Status.String()),
	)
	s.dispatch(notice)
	if outcome.Won {
		s.finished(*outcome.Match)
	}
	return outcome, nil
}

// CancelMatch deletes an unfinished match and everything beneath it.
func (s *Service) CancelMatch(ctx context.Context, matchID string) error {
	var cancelled Match
	err := s.store.RunInMatch(ctx, matchID, func(tx MatchTx) error {
		m := tx.Match()
		if err := m.CheckCancel(); err != nil {
			return err
		}
		cancelled = *m
		return tx.DeleteMatch()
	})
	if err != nil {
		return err
	}
	logging.Info("match cancelled", zap.String("match_id", matchID))
	s.dispatch(Notification{
		Type:       NotifyMatchCancelled,
		MatchID:    matchID,
		Recipients: recipients(&cancelled),
		Message:    fmt.Sprintf("Match %s between %s and %s was cancelled.", matchID, cancelled.Player1.Name, cancelled.Player2.Name),
	})
	return nil
}

// History is a read-only projection of a match's ships and moves.
func (s *Service) History(ctx context.Context, matchID string) (*History, error) {
	records, err := s.store.LoadMatchRecords(ctx, matchID)
	if err != nil {
		return nil, err
	}
	m := records.Match
	names := map[string]string{
		m.Player1.ID: m.Player1.Name,
		m.Player2.ID: m.Player2.Name,
	}

	h := &History{
		Match: m,
		Ships: make([]ShipHistory, 0, len(records.Ships)),
		Moves: make([]MoveHistory, 0, len(records.Moves)),
	}
	for _, ship := range records.Ships {
		sh := ShipHistory{
			Player:    names[ship.PlayerID],
			Kind:      ship.Kind,
			Sunk:      ship.Sunk,
			Positions: make([]CellHistory, 0, len(ship.Positions)),
			CreatedAt: ship.CreatedAt,
		}
		for _, p := range ship.Positions {
			sh.Positions = append(sh.Positions, CellHistory{X: p.X, Y: p.Y, Hit: p.Hit})
		}
		h.Ships = append(h.Ships, sh)
	}
	for _, mv := range records.Moves {
		h.Moves = append(h.Moves, MoveHistory{
			Player:    names[mv.PlayerID],
			X:         mv.X,
			Y:         mv.Y,
			CreatedAt: mv.CreatedAt,
		})
	}
	return h, nil
}

// SendTurnReminders notifies the player to move in every in-progress match.
func (s *Service) SendTurnReminders(ctx context.Context) (int, error) {
	matches, err := s.store.ListInProgressMatches(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list in-progress matches: %w", err)
	}
	if s.notifier == nil {
		return 0, nil
	}
	sent := 0
	for i := range matches {
		turn, ok := matches[i].CurrentTurn()
		if !ok {
			continue
		}
		err := s.notifier.Notify(ctx, Notification{
			Type:       NotifyReminder,
			MatchID:    matches[i].ID,
			Recipients: []Recipient{turn.Recipient()},
			Message:    reminderMessage(matches[i].ID),
		})
		if err != nil {
			logging.Warn("failed to send reminder",
				zap.String("match_id", matches[i].ID),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *Service) dispatch(n Notification) {
	if s.notifier == nil || len(n.Recipients) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, n); err != nil {
			logging.Warn("failed to dispatch notification",
				zap.String("match_id", n.MatchID),
				zap.String("type", n.Type),
				zap.Error(err),
			)
		}
	}()
}

func (s *Service) finished(m Match) {
	for _, hook := range s.hooks {
		go func(hook FinishHook) {
			ctx, cancel := context.WithTimeout(context.Background(), finishHookTimeout)
			defer cancel()
			hook(ctx, m)
		}(hook)
	}
}

func recipients(m *Match) []Recipient {
	return []Recipient{m.Player1.Recipient(), m.Player2.Recipient()}
}

func remainingShips(placed []Ship) []ShipKind {
	remaining := make([]ShipKind, 0, len(Roster))
	for _, kind := range Roster {
		found := false
		for _, ship := range placed {
			if ship.Kind == kind {
				found = true
				break
			}
		}
		if !found {
			remaining = append(remaining, kind)
		}
	}
	return remaining
}

func containsKind(kinds []ShipKind, kind ShipKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func withoutKind(kinds []ShipKind, kind ShipKind) []ShipKind {
	out := make([]ShipKind, 0, len(kinds))
	for _, k := range kinds {
		if k != kind {
			out = append(out, k)
		}
	}
	return out
}

func fleetSunk(fleet []Ship) bool {
	for _, ship := range fleet {
		if !ship.Sunk {
			return false
		}
	}
	return len(fleet) > 0
}
