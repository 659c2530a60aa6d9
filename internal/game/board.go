package game

import "fmt"

type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func InBounds(x, y, size int) bool {
	return x >= 0 && x < size && y >= 0 && y < size
}

// Cells returns the cells a ship of the given length occupies when anchored
// at (x, y), anchor first. Horizontal ships grow along x, vertical along y.
// Every cell must lie in [0, size); occupancy is not checked here.
func Cells(x, y, length int, o Orientation, size int) ([]Cell, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: ship length must be positive", ErrInvalidShip)
	}
	cells := make([]Cell, 0, length)
	for i := 0; i < length; i++ {
		c := Cell{X: x, Y: y}
		if o == Vertical {
			c.Y += i
		} else {
			c.X += i
		}
		if !InBounds(c.X, c.Y, size) {
			return nil, fmt.Errorf("%w: (%d, %d) is off the %dx%d board", ErrOutOfBounds, c.X, c.Y, size, size)
		}
		cells = append(cells, c)
	}
	return cells, nil
}
