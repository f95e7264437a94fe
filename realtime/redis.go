package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ChannelName is the redis pub/sub channel for one room.
func ChannelName(roomID uuid.UUID) string {
	return fmt.Sprintf("room:%s", roomID)
}

// RedisChannel attaches a client to a room over redis pub/sub.
type RedisChannel struct {
	handlerSet

	rdb      *redis.Client
	roomID   uuid.UUID
	clientID uuid.UUID
	cancel   context.CancelFunc
}

func NewRedisChannel(rdb *redis.Client, roomID, clientID uuid.UUID) *RedisChannel {
	return &RedisChannel{rdb: rdb, roomID: roomID, clientID: clientID}
}

// Subscribe starts the inbound dispatch loop. Messages that fail to decode
// are dropped; sender and receiver share the same contract version, so a
// malformed frame is noise, not an error to recover from.
func (c *RedisChannel) Subscribe(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	pubsub := c.rdb.Subscribe(ctx, ChannelName(c.roomID))
	if _, err := pubsub.Receive(ctx); err != nil {
		c.cancel()
		return fmt.Errorf("subscribe to room channel: %w", err)
	}

	go func() {
		defer pubsub.Close()
		for {
			msg, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				return
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Debug().Str("room_id", c.roomID.String()).Err(err).Msg("dropping undecodable frame")
				continue
			}
			c.dispatch(env, c.clientID)
		}
	}()

	return nil
}

// Broadcast publishes a named event to every currently-subscribed client in
// the room except the sender.
func (c *RedisChannel) Broadcast(ctx context.Context, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	env := Envelope{Type: typeBroadcast, Sender: c.clientID, Event: event, Payload: raw}
	frame, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return c.rdb.Publish(ctx, ChannelName(c.roomID), frame).Err()
}

func (c *RedisChannel) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// PublishChange fans a store mutation out to every client subscribed to the
// room, the originator included.
func PublishChange(ctx context.Context, rdb *redis.Client, roomID uuid.UUID, change Change) error {
	env := Envelope{Type: typeChange, Change: &change}
	frame, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal change envelope: %w", err)
	}
	return rdb.Publish(ctx, ChannelName(roomID), frame).Err()
}
