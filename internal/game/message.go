package game

import "fmt"

func placedMessage(name string, remaining []ShipKind) string {
	if len(remaining) == 0 {
		return fmt.Sprintf("Success! No remaining ships to add, %s.", name)
	}
	return fmt.Sprintf("Success! %s needs to add %s.", name, joinKinds(remaining))
}

func remainingMessage(remaining []ShipKind) string {
	if len(remaining) == 0 {
		return "No ships remaining to place."
	}
	return "The remaining ships for that player are " + joinKinds(remaining)
}

func startedMessage(m *Match) string {
	return fmt.Sprintf("All ships are placed. %s moves first!", m.Player1.Name)
}

func missMessage(x, y int) string {
	return fmt.Sprintf("Miss at %d, %d!", x, y)
}

func hitMessage(kind ShipKind) string {
	return fmt.Sprintf("Hit on %s!", kind)
}

func sunkMessage(kind ShipKind) string {
	return fmt.Sprintf("Hit! Sunk %s!", kind)
}

const winMessage = "Hit! Sunk! Game over! You win!"

// shotNotice is the text both participants receive about a shot.
func shotNotice(shooter string, x, y int, kind *ShipKind, sunk, won bool) string {
	switch {
	case kind == nil:
		return fmt.Sprintf("Your turn! %s missed at (%d, %d).", shooter, x, y)
	case won:
		return fmt.Sprintf("%s sunk %s at (%d, %d)! The game is over and %s won!", shooter, *kind, x, y, shooter)
	case sunk:
		return fmt.Sprintf("Your turn! %s sunk your %s at (%d, %d).", shooter, *kind, x, y)
	}
	return fmt.Sprintf("Your turn! %s hit your %s at (%d, %d).", shooter, *kind, x, y)
}

func reminderMessage(matchID string) string {
	return fmt.Sprintf("Just a reminder: it's your turn in the Battleship game with id %s!", matchID)
}
