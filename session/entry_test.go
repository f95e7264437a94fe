package session

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/f11game/f11api/models"
	"github.com/jonboulle/clockwork"
)

func TestEntryCyclerFollowsSettings(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cycler := NewEntryCycler(clock, rand.New(rand.NewSource(1)))

	var mu sync.Mutex
	digits := 1
	operators := []models.Operator{models.OperatorAdd}
	rolls := 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		cycler.Run(ctx,
			func() (int, []models.Operator) {
				mu.Lock()
				defer mu.Unlock()
				return digits, operators
			},
			func(models.Question) {
				mu.Lock()
				rolls++
				mu.Unlock()
			},
		)
	}()

	waitFor(t, "initial roll", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return rolls == 1
	})
	q := cycler.Current()
	if q.Number1 < 1 || q.Number1 > 9 || q.Number2 < 1 || q.Number2 > 9 {
		t.Fatalf("single-digit roll out of range: %+v", q)
	}
	if q.Operator != models.OperatorAdd {
		t.Fatalf("operator = %q, want add", q.Operator)
	}

	mu.Lock()
	digits = 3
	operators = []models.Operator{models.OperatorMultiply}
	mu.Unlock()

	clock.BlockUntil(1)
	clock.Advance(4 * time.Second)
	waitFor(t, "second roll", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return rolls == 2
	})
	q = cycler.Current()
	if q.Number1 < 100 || q.Number1 > 999 {
		t.Fatalf("triple-digit roll out of range: %+v", q)
	}
	if q.Operator != models.OperatorMultiply {
		t.Fatalf("operator = %q, want multiply", q.Operator)
	}

	cancel()
	<-done
}
