// Package realtime implements the per-room bidirectional channel. A channel
// carries two kinds of traffic: change notifications mirroring room store
// mutations, and named broadcast messages with opaque payloads. Delivery is
// best effort with no ordering guarantee beyond per-sender FIFO; late joiners
// catch up from the room store snapshot, never from replayed messages.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

type Table string

const (
	TableRooms       Table = "rooms"
	TableRoomPlayers Table = "room_players"
)

// Change describes one room store mutation: the kind, the affected table and
// the row before and after.
type Change struct {
	Kind  ChangeKind      `json:"kind"`
	Table Table           `json:"table"`
	Old   json.RawMessage `json:"old,omitempty"`
	New   json.RawMessage `json:"new,omitempty"`
}

// Envelope is the wire frame on a room channel.
type Envelope struct {
	Type    string          `json:"type"` // "change" or "broadcast"
	Sender  uuid.UUID       `json:"sender,omitempty"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Change  *Change         `json:"change,omitempty"`
}

const (
	typeChange    = "change"
	typeBroadcast = "broadcast"
)

type Handler func(payload json.RawMessage)

type ChangeHandler func(change Change)

// Channel is one client's attachment to a room. Handlers must be registered
// before Subscribe; a sender never sees its own broadcasts but does observe
// change notifications for its own mutations.
type Channel interface {
	OnBroadcast(event string, h Handler)
	OnChange(table Table, h ChangeHandler)
	Subscribe(ctx context.Context) error
	Broadcast(ctx context.Context, event string, payload any) error
	Close() error
}

// handlerSet maps event names and tables to handlers and runs the single
// inbound dispatch loop's routing.
type handlerSet struct {
	mu        sync.RWMutex
	broadcast map[string][]Handler
	changes   map[Table][]ChangeHandler
}

func (h *handlerSet) OnBroadcast(event string, fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.broadcast == nil {
		h.broadcast = make(map[string][]Handler)
	}
	h.broadcast[event] = append(h.broadcast[event], fn)
}

func (h *handlerSet) OnChange(table Table, fn ChangeHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.changes == nil {
		h.changes = make(map[Table][]ChangeHandler)
	}
	h.changes[table] = append(h.changes[table], fn)
}

// dispatch routes one envelope. Broadcasts from self are dropped; change
// notifications are delivered regardless of originator.
func (h *handlerSet) dispatch(env Envelope, self uuid.UUID) {
	switch env.Type {
	case typeChange:
		if env.Change == nil {
			return
		}
		h.mu.RLock()
		handlers := h.changes[env.Change.Table]
		h.mu.RUnlock()
		for _, fn := range handlers {
			fn(*env.Change)
		}
	case typeBroadcast:
		if env.Sender == self {
			return
		}
		h.mu.RLock()
		handlers := h.broadcast[env.Event]
		h.mu.RUnlock()
		for _, fn := range handlers {
			fn(env.Payload)
		}
	}
}
