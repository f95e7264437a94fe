// Package session holds the per-client game controllers: the multiplayer
// room session state machine and the solo variant. All game logic runs on
// each participant's client and is not authoritative; independent clients
// converge through the room store and its realtime channel.
package session

import (
	"time"

	"github.com/f11game/f11api/game"
	"github.com/f11game/f11api/models"
)

// Settings is the local mirror of the game configuration. It is an immutable
// value: every change goes through a With method returning a new value, and
// consumers read whole snapshots rather than individual mutable fields.
type Settings struct {
	Mode      models.Mode
	Duration  time.Duration
	Digits    int
	Operators []models.Operator
}

func DefaultSettings() Settings {
	return Settings{
		Mode:      models.ModeTimeBased,
		Duration:  game.DefaultDuration * time.Millisecond,
		Digits:    2,
		Operators: []models.Operator{models.OperatorAdd},
	}
}

func (s Settings) WithConfig(config models.RoomConfig) Settings {
	s.Digits = config.Digits
	s.Operators = append([]models.Operator(nil), config.Operators...)
	return s
}

func (s Settings) WithMode(mode models.Mode) Settings {
	s.Mode = mode
	return s
}

func (s Settings) WithDigits(digits int) Settings {
	s.Digits = digits
	return s
}

func (s Settings) WithOperators(operators []models.Operator) Settings {
	if len(operators) == 0 {
		return s
	}
	s.Operators = append([]models.Operator(nil), operators...)
	return s
}

// Difficulty scores the current configuration between 0 and 1. Recomputed on
// every read, never cached.
func (s Settings) Difficulty() float64 {
	return game.Difficulty(s.Digits, s.Operators)
}

// EveryoneReady reports whether every non-owner member has readied up. The
// owner's own ready flag is meaningless and ignored.
func EveryoneReady(players []models.RoomPlayer) bool {
	for _, p := range players {
		if !p.IsOwner && !p.IsReady {
			return false
		}
	}
	return true
}
