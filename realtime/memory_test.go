package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

// counter is incremented on the dispatch goroutine and read by the test.
type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *counter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestBroadcastSkipsSender(t *testing.T) {
	hub := NewHub()
	roomID := uuid.New()
	ctx := context.Background()

	sender := hub.Channel(roomID, uuid.New())
	receiver := hub.Channel(roomID, uuid.New())

	var senderGot, receiverGot counter
	sender.OnBroadcast(EventCorrectAnswer, func(json.RawMessage) { senderGot.inc() })
	receiver.OnBroadcast(EventCorrectAnswer, func(json.RawMessage) { receiverGot.inc() })

	if err := sender.Subscribe(ctx); err != nil {
		t.Fatal(err)
	}
	if err := receiver.Subscribe(ctx); err != nil {
		t.Fatal(err)
	}

	if err := sender.Broadcast(ctx, EventCorrectAnswer, AnswerPayload{Player: uuid.New()}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return receiverGot.value() == 1 })
	if got := senderGot.value(); got != 0 {
		t.Errorf("sender observed its own broadcast %d times, want 0", got)
	}
}

func TestUnsubscribedClientNeverReceives(t *testing.T) {
	hub := NewHub()
	roomID := uuid.New()
	ctx := context.Background()

	sender := hub.Channel(roomID, uuid.New())
	late := hub.Channel(roomID, uuid.New())

	var lateGot counter
	late.OnBroadcast(EventInitQuestions, func(json.RawMessage) { lateGot.inc() })

	if err := sender.Subscribe(ctx); err != nil {
		t.Fatal(err)
	}
	if err := sender.Broadcast(ctx, EventInitQuestions, InitQuestionsPayload{}); err != nil {
		t.Fatal(err)
	}

	// Subscribing after the send yields nothing: no replay, no backfill.
	if err := late.Subscribe(ctx); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if got := lateGot.value(); got != 0 {
		t.Errorf("late subscriber received %d messages, want 0", got)
	}
}

func TestChangeDeliveredToOriginator(t *testing.T) {
	hub := NewHub()
	roomID := uuid.New()
	ctx := context.Background()

	me := hub.Channel(roomID, uuid.New())
	var got []Change
	done := make(chan struct{})
	me.OnChange(TableRooms, func(c Change) {
		got = append(got, c)
		close(done)
	})
	if err := me.Subscribe(ctx); err != nil {
		t.Fatal(err)
	}

	hub.PublishChange(roomID, Change{Kind: ChangeUpdate, Table: TableRooms})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("change not delivered")
	}
	if got[0].Kind != ChangeUpdate {
		t.Errorf("change kind = %q, want %q", got[0].Kind, ChangeUpdate)
	}
}

func TestChangeHandlersScopedByTable(t *testing.T) {
	hub := NewHub()
	roomID := uuid.New()
	ctx := context.Background()

	me := hub.Channel(roomID, uuid.New())
	var roomChanges, playerChanges counter
	me.OnChange(TableRooms, func(Change) { roomChanges.inc() })
	me.OnChange(TableRoomPlayers, func(Change) { playerChanges.inc() })
	if err := me.Subscribe(ctx); err != nil {
		t.Fatal(err)
	}

	hub.PublishChange(roomID, Change{Kind: ChangeInsert, Table: TableRoomPlayers})

	waitFor(t, func() bool { return playerChanges.value() == 1 })
	if got := roomChanges.value(); got != 0 {
		t.Errorf("rooms handler fired %d times for a room_players change", got)
	}
}

func TestRoomsAreIsolated(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	a := hub.Channel(uuid.New(), uuid.New())
	b := hub.Channel(uuid.New(), uuid.New())

	var bGot counter
	b.OnBroadcast(EventResetGame, func(json.RawMessage) { bGot.inc() })
	if err := a.Subscribe(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.Subscribe(ctx); err != nil {
		t.Fatal(err)
	}

	if err := a.Broadcast(ctx, EventResetGame, struct{}{}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if got := bGot.value(); got != 0 {
		t.Errorf("client in another room received %d messages, want 0", got)
	}
}
