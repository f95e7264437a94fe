package timer

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestStopwatchStartPause(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sw := New(clock)

	if got := sw.Elapsed(); got != 0 {
		t.Fatalf("fresh stopwatch elapsed = %v, want 0", got)
	}

	sw.Start()
	clock.Advance(500 * time.Millisecond)
	if got := sw.Elapsed(); got != 500*time.Millisecond {
		t.Fatalf("elapsed = %v, want 500ms", got)
	}

	sw.Pause()
	clock.Advance(time.Second)
	if got := sw.Elapsed(); got != 500*time.Millisecond {
		t.Fatalf("elapsed after pause = %v, want 500ms", got)
	}

	// Start resumes from the accumulated value.
	sw.Start()
	clock.Advance(250 * time.Millisecond)
	if got := sw.ElapsedMillis(); got != 750 {
		t.Fatalf("elapsed after resume = %dms, want 750ms", got)
	}
}

func TestStopwatchReset(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sw := New(clock)

	sw.Start()
	clock.Advance(3 * time.Second)
	sw.Reset()

	if got := sw.Elapsed(); got != 0 {
		t.Fatalf("elapsed right after reset = %v, want 0", got)
	}

	// Reset keeps the stopwatch counting.
	clock.Advance(100 * time.Millisecond)
	if got := sw.Elapsed(); got != 100*time.Millisecond {
		t.Fatalf("elapsed after reset + 100ms = %v, want 100ms", got)
	}
}

func TestStopwatchResetStop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sw := New(clock)

	sw.Start()
	clock.Advance(time.Second)
	sw.ResetStop()

	clock.Advance(time.Second)
	if got := sw.Elapsed(); got != 0 {
		t.Fatalf("elapsed after reset-and-stop = %v, want 0", got)
	}
}

func TestStopwatchWatch(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sw := New(clock)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sw.Start()
	out := sw.Watch(ctx)

	clock.BlockUntil(1) // ticker registered
	clock.Advance(Resolution)

	select {
	case d := <-out:
		if d < Resolution {
			t.Fatalf("observed %v, want at least %v", d, Resolution)
		}
	case <-time.After(time.Second):
		t.Fatal("no tick observed after advancing the clock")
	}

	cancel()
	for range out {
	}
}
