package session

import (
	"sort"

	"github.com/f11game/f11api/models"
	"github.com/google/uuid"
)

// Accuracy is the share of correct answers as a percentage. A flawless run
// scores 100 even with zero questions answered.
func Accuracy(r models.GameResults) float64 {
	if r.Wrong == 0 {
		return 100
	}
	return float64(r.Correct) / float64(r.Correct+r.Wrong) * 100
}

// TotalTimeMillis sums the per-question times for correct answers.
func TotalTimeMillis(r models.GameResults) int64 {
	var total int64
	for _, t := range r.Times {
		total += t
	}
	return total
}

// AverageTimeMillis is the mean per-question time, or 0 with no correct
// answers.
func AverageTimeMillis(r models.GameResults) float64 {
	if len(r.Times) == 0 {
		return 0
	}
	return float64(TotalTimeMillis(r)) / float64(len(r.Times))
}

// TotalMistakes sums the per-operator mistake counters; always equals Wrong.
func TotalMistakes(r models.GameResults) int {
	total := 0
	for _, n := range r.Mistakes {
		total += n
	}
	return total
}

// MostStruggled returns the operators tied for the highest mistake count, or
// nothing when the run was mistake-free.
func MostStruggled(r models.GameResults) []models.Operator {
	highest := 0
	for _, n := range r.Mistakes {
		if n > highest {
			highest = n
		}
	}
	if highest == 0 {
		return nil
	}

	var ops []models.Operator
	for _, op := range []models.Operator{
		models.OperatorAdd, models.OperatorSubtract, models.OperatorMultiply, models.OperatorDivide,
	} {
		if r.Mistakes[op] == highest {
			ops = append(ops, op)
		}
	}
	return ops
}

// Standing is one row of the final race ranking.
type Standing struct {
	Player   uuid.UUID `json:"player"`
	Username string    `json:"username"`
	Position int       `json:"position"`
}

// Standings ranks players by their race position, best first. Positions are a
// client-local display derivation, so two clients may disagree on close
// races; ties break deterministically by player id.
func Standings(positions map[uuid.UUID]int, players []models.RoomPlayer) []Standing {
	names := make(map[uuid.UUID]string, len(players))
	for _, p := range players {
		names[p.PlayerID] = p.Username
	}

	standings := make([]Standing, 0, len(positions))
	for id, pos := range positions {
		standings = append(standings, Standing{Player: id, Username: names[id], Position: pos})
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Position != standings[j].Position {
			return standings[i].Position > standings[j].Position
		}
		return standings[i].Player.String() < standings[j].Player.String()
	})
	return standings
}
