package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Hub is an in-process fan-out for room channels: the same contract as the
// redis transport without the network. The session packages are wired against
// the Channel interface, so a Hub stands in for redis wherever all
// participants share one process, tests included.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID][]*MemoryChannel
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[uuid.UUID][]*MemoryChannel)}
}

// Channel creates an unattached channel for one client. It receives nothing
// until Subscribe.
func (h *Hub) Channel(roomID, clientID uuid.UUID) *MemoryChannel {
	return &MemoryChannel{hub: h, roomID: roomID, clientID: clientID}
}

// PublishChange delivers a store mutation to every subscribed client in the
// room, the originator included.
func (h *Hub) PublishChange(roomID uuid.UUID, change Change) {
	h.deliver(roomID, Envelope{Type: typeChange, Change: &change})
}

func (h *Hub) deliver(roomID uuid.UUID, env Envelope) {
	h.mu.RLock()
	subscribers := h.rooms[roomID]
	h.mu.RUnlock()

	for _, ch := range subscribers {
		// Best effort: a subscriber with a full inbox misses the message.
		select {
		case ch.inbox <- env:
		default:
		}
	}
}

func (h *Hub) attach(ch *MemoryChannel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rooms[ch.roomID] = append(h.rooms[ch.roomID], ch)
}

func (h *Hub) detach(ch *MemoryChannel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subscribers := h.rooms[ch.roomID]
	for i, sub := range subscribers {
		if sub == ch {
			h.rooms[ch.roomID] = append(subscribers[:i], subscribers[i+1:]...)
			break
		}
	}
}

// MemoryChannel is one client's in-process attachment to a room.
type MemoryChannel struct {
	handlerSet

	hub      *Hub
	roomID   uuid.UUID
	clientID uuid.UUID

	inbox  chan Envelope
	cancel context.CancelFunc
}

func (c *MemoryChannel) Subscribe(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	c.inbox = make(chan Envelope, 64)
	c.hub.attach(c)

	go func() {
		for {
			select {
			case env := <-c.inbox:
				c.dispatch(env, c.clientID)
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (c *MemoryChannel) Broadcast(ctx context.Context, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	c.hub.deliver(c.roomID, Envelope{Type: typeBroadcast, Sender: c.clientID, Event: event, Payload: raw})
	return nil
}

func (c *MemoryChannel) Close() error {
	c.hub.detach(c)
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}
