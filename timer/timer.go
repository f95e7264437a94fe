// Package timer provides the resettable stopwatch used for per-question and
// per-game timing. The full start/pause/reset surface and the 10ms Watch
// stream are part of the stopwatch contract; the session controllers consume
// only the subset they need and read Elapsed on demand.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Resolution is how often Watch emits while the stopwatch runs.
const Resolution = 10 * time.Millisecond

// Stopwatch accumulates elapsed wall time against an injectable clock.
// It is process-local; nothing about it is persisted.
type Stopwatch struct {
	clock clockwork.Clock

	mu          sync.Mutex
	running     bool
	startedAt   time.Time
	accumulated time.Duration
}

func New(clock clockwork.Clock) *Stopwatch {
	return &Stopwatch{clock: clock}
}

// Start begins counting from the current accumulated value. Starting a
// running stopwatch is a no-op.
func (s *Stopwatch) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.startedAt = s.clock.Now()
	s.running = true
}

// Pause halts counting without zeroing.
func (s *Stopwatch) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.accumulated += s.clock.Since(s.startedAt)
	s.running = false
}

// Reset zeroes the accumulator and immediately restarts counting.
func (s *Stopwatch) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accumulated = 0
	s.startedAt = s.clock.Now()
	s.running = true
}

// ResetStop zeroes the accumulator and halts.
func (s *Stopwatch) ResetStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accumulated = 0
	s.running = false
}

// Elapsed returns the accumulated running time.
func (s *Stopwatch) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return s.accumulated
	}
	return s.accumulated + s.clock.Since(s.startedAt)
}

// ElapsedMillis returns the accumulated running time in milliseconds.
func (s *Stopwatch) ElapsedMillis() int64 {
	return s.Elapsed().Milliseconds()
}

// Watch emits the elapsed duration every Resolution until ctx is cancelled.
// The channel is closed on cancellation.
func (s *Stopwatch) Watch(ctx context.Context) <-chan time.Duration {
	out := make(chan time.Duration, 1)
	ticker := s.clock.NewTicker(Resolution)

	go func() {
		defer close(out)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				select {
				case out <- s.Elapsed():
				default:
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
