package session

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/f11game/f11api/game"
	"github.com/f11game/f11api/models"
	"github.com/jonboulle/clockwork"
)

// entryCycleInterval is how often the idle entry view rolls a fresh
// decorative combination.
const entryCycleInterval = 4 * time.Second

// EntryCycler produces the decorative cycling operands shown while a session
// idles at the entry view. The combinations are display-only and never enter
// a game.
type EntryCycler struct {
	clock clockwork.Clock
	rng   *rand.Rand

	mu      sync.Mutex
	current models.Question
}

func NewEntryCycler(clock clockwork.Clock, rng *rand.Rand) *EntryCycler {
	return &EntryCycler{clock: clock, rng: rng}
}

// Run rolls a combination immediately and then every cycle interval until
// ctx is cancelled. settings supplies the live configuration so the display
// follows digit and operator changes; update is called with each roll.
func (e *EntryCycler) Run(ctx context.Context, settings func() (digits int, operators []models.Operator), update func(models.Question)) {
	roll := func() {
		digits, operators := settings()
		if len(operators) == 0 {
			return
		}
		q := models.Question{
			Number1:  game.RandomNumber(e.rng, digits),
			Number2:  game.RandomNumber(e.rng, digits),
			Operator: game.RandomOperator(e.rng, operators),
		}
		e.mu.Lock()
		e.current = q
		e.mu.Unlock()
		if update != nil {
			update(q)
		}
	}

	roll()
	ticker := e.clock.NewTicker(entryCycleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			roll()
		case <-ctx.Done():
			return
		}
	}
}

// Current returns the most recently rolled combination.
func (e *EntryCycler) Current() models.Question {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}
