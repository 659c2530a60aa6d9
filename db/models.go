package db

import "time"

type User struct {
	ID        string    `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email,omitempty" db:"email"`
	Password  string    `json:"-" db:"password"` // bcrypt hash, empty when the account has no login
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// WinCount is one row of the rankings.
type WinCount struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
	Wins     int    `json:"wins"`
}
