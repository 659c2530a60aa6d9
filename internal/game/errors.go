package game

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidMatchState = errors.New("invalid match state")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrOutOfBounds       = errors.New("out of bounds")
	ErrInvalidShip       = errors.New("invalid ship")
	ErrPositionOccupied  = errors.New("position occupied")
	ErrDuplicateMove     = errors.New("duplicate move")
	ErrMatchAlreadyOver  = errors.New("match already over")

	// ErrConflict reports a write race that outlived the store's retries.
	ErrConflict = errors.New("concurrent update, try again")
)

var (
	ErrPlayerNotFound = fmt.Errorf("player %w", ErrNotFound)
	ErrMatchNotFound  = fmt.Errorf("match %w", ErrNotFound)
)
