package game

import (
	"fmt"
	"strings"
	"time"
)

type ShipKind string

const (
	Destroyer       ShipKind = "Destroyer"
	Cruiser         ShipKind = "Cruiser"
	Submarine       ShipKind = "Submarine"
	Battleship      ShipKind = "Battleship"
	AircraftCarrier ShipKind = "Aircraft Carrier"
)

// Roster lists every ship a player must place, in declaration order.
var Roster = []ShipKind{Destroyer, Cruiser, Submarine, Battleship, AircraftCarrier}

var ShipConfig = map[ShipKind]int{
	Destroyer:       2,
	Cruiser:         3,
	Submarine:       3,
	Battleship:      4,
	AircraftCarrier: 5,
}

func (k ShipKind) Length() int {
	return ShipConfig[k]
}

func (k ShipKind) Valid() bool {
	_, ok := ShipConfig[k]
	return ok
}

type Orientation int

const (
	Horizontal Orientation = iota
	Vertical
)

func (o Orientation) String() string {
	if o == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// ParseOrientation accepts "horizontal"/"vertical" (case-insensitive) and
// treats an empty string as horizontal.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "horizontal", "h":
		return Horizontal, nil
	case "vertical", "v":
		return Vertical, nil
	}
	return Horizontal, fmt.Errorf("invalid orientation: %s", s)
}

type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"-"`
}

type Match struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Player1   Player    `json:"player_1"`
	Player2   Player    `json:"player_2"`
	Winner    *Player   `json:"winner,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Ship struct {
	ID        string     `json:"id"`
	MatchID   string     `json:"match_id"`
	PlayerID  string     `json:"player_id"`
	Kind      ShipKind   `json:"kind"`
	Sunk      bool       `json:"sunk"`
	Positions []Position `json:"positions"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Occupies returns the index of the position at (x, y), or -1.
func (s *Ship) Occupies(x, y int) int {
	for i, p := range s.Positions {
		if p.X == x && p.Y == y {
			return i
		}
	}
	return -1
}

func (s *Ship) AllHit() bool {
	for _, p := range s.Positions {
		if !p.Hit {
			return false
		}
	}
	return len(s.Positions) > 0
}

type Position struct {
	ID     string `json:"id"`
	ShipID string `json:"ship_id"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Hit    bool   `json:"hit"`
}

type Move struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"match_id"`
	PlayerID  string    `json:"player_id"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	CreatedAt time.Time `json:"created_at"`
}

// Placement is the result of a successful PlaceShip call.
type Placement struct {
	Match     *Match        `json:"match"`
	Remaining [2][]ShipKind `json:"remaining"`
	Message   string        `json:"message"`
}

// ShotOutcome describes the effect of one accepted shot.
type ShotOutcome struct {
	Hit     bool      `json:"hit"`
	Ship    *ShipKind `json:"ship,omitempty"`
	Sunk    *bool     `json:"sunk,omitempty"`
	Won     bool      `json:"won"`
	Message string    `json:"message"`
	Match   *Match    `json:"match"`
}

type Recipient struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

func (p Player) Recipient() Recipient {
	return Recipient{ID: p.ID, Name: p.Name, Email: p.Email}
}

// Notification is a best-effort message for one or more players.
type Notification struct {
	Type       string      `json:"type"`
	MatchID    string      `json:"match_id"`
	Recipients []Recipient `json:"recipients"`
	Message    string      `json:"message"`
}

const (
	NotifyMatchCreated   = "match_created"
	NotifyMatchStarted   = "match_started"
	NotifyMatchCancelled = "match_cancelled"
	NotifyShot           = "shot"
	NotifyGameOver       = "game_over"
	NotifyReminder       = "reminder"
	NotifyMatchFound     = "match_found"
)

// MatchRecords is everything stored under one match.
type MatchRecords struct {
	Match *Match
	Ships []Ship
	Moves []Move
}

type ShipHistory struct {
	Player    string        `json:"player"`
	Kind      ShipKind      `json:"ship"`
	Sunk      bool          `json:"sunk"`
	Positions []CellHistory `json:"positions"`
	CreatedAt time.Time     `json:"created_at"`
}

type CellHistory struct {
	X   int  `json:"x"`
	Y   int  `json:"y"`
	Hit bool `json:"hit"`
}

type MoveHistory struct {
	Player    string    `json:"player"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	CreatedAt time.Time `json:"created_at"`
}

type History struct {
	Match *Match        `json:"match"`
	Ships []ShipHistory `json:"ships"`
	Moves []MoveHistory `json:"moves"`
}

func joinKinds(kinds []ShipKind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
