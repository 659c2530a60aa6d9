package game

import (
	"encoding/json"
	"fmt"
)

type Status int

const (
	SettingUp Status = iota
	AwaitingPlayer1
	AwaitingPlayer2
	Finished
)

var statusNames = map[Status]string{
	SettingUp:       "setting_up",
	AwaitingPlayer1: "awaiting_player_1",
	AwaitingPlayer2: "awaiting_player_2",
	Finished:        "finished",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return SettingUp, fmt.Errorf("unknown match status %q", name)
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Status) InProgress() bool {
	return s == AwaitingPlayer1 || s == AwaitingPlayer2
}

// Slot returns 1 or 2 for a participant, 0 otherwise.
func (m *Match) Slot(playerID string) int {
	switch playerID {
	case m.Player1.ID:
		return 1
	case m.Player2.ID:
		return 2
	}
	return 0
}

func (m *Match) PlayerInSlot(slot int) Player {
	if slot == 2 {
		return m.Player2
	}
	return m.Player1
}

func (m *Match) Opponent(playerID string) Player {
	if playerID == m.Player1.ID {
		return m.Player2
	}
	return m.Player1
}

// CurrentTurn returns the player expected to move, if the match is in progress.
func (m *Match) CurrentTurn() (Player, bool) {
	switch m.Status {
	case AwaitingPlayer1:
		return m.Player1, true
	case AwaitingPlayer2:
		return m.Player2, true
	}
	return Player{}, false
}

func (m *Match) CheckPlacement(playerID string) error {
	switch m.Status {
	case Finished:
		return fmt.Errorf("%w: game already over", ErrInvalidMatchState)
	case AwaitingPlayer1, AwaitingPlayer2:
		return fmt.Errorf("%w: game already in progress (%s)", ErrInvalidMatchState, m.Status)
	}
	if m.Slot(playerID) == 0 {
		return fmt.Errorf("%w: player is not playing this match", ErrInvalidMatchState)
	}
	return nil
}

func (m *Match) CheckShot(playerID string) error {
	slot := m.Slot(playerID)
	if slot == 0 {
		return fmt.Errorf("%w: player is not playing this match", ErrInvalidMatchState)
	}
	switch m.Status {
	case SettingUp:
		return fmt.Errorf("%w: game not ready yet, place your ships", ErrInvalidMatchState)
	case Finished:
		return fmt.Errorf("%w: game already over", ErrInvalidMatchState)
	}
	if turn, _ := m.CurrentTurn(); turn.ID != playerID {
		return fmt.Errorf("%w: it is %s's turn", ErrNotYourTurn, turn.Name)
	}
	return nil
}

func (m *Match) CheckCancel() error {
	if m.Status == Finished {
		return fmt.Errorf("%w: a finished match cannot be cancelled", ErrMatchAlreadyOver)
	}
	return nil
}

// Start moves a fully set up match to player 1's turn.
func (m *Match) Start() error {
	if m.Status != SettingUp {
		return fmt.Errorf("%w: cannot start a match in %s", ErrInvalidMatchState, m.Status)
	}
	m.Status = AwaitingPlayer1
	return nil
}

// AdvanceTurn hands the turn to the other player.
func (m *Match) AdvanceTurn() error {
	switch m.Status {
	case AwaitingPlayer1:
		m.Status = AwaitingPlayer2
	case AwaitingPlayer2:
		m.Status = AwaitingPlayer1
	default:
		return fmt.Errorf("%w: no turn to advance in %s", ErrInvalidMatchState, m.Status)
	}
	return nil
}

// Finish is terminal and overrides whatever turn was pending.
func (m *Match) Finish(winner Player) error {
	if m.Status == Finished {
		return ErrMatchAlreadyOver
	}
	w := winner
	m.Winner = &w
	m.Status = Finished
	return nil
}
