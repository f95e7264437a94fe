// Package db is the durable room state store. Rooms, membership rosters,
// profiles and finished-game records live in redis; every room or membership
// mutation is mirrored onto the room's realtime channel as a change
// notification so subscribed clients converge without polling.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/f11game/f11api/models"
	"github.com/f11game/f11api/realtime"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrProfileNotFound = errors.New("profile not found")
	// ErrNotOwner rejects a guarded mutation issued by someone other than the
	// current room owner.
	ErrNotOwner = errors.New("not the room owner")
)

type Store struct {
	client *redis.Client
}

func NewStore(opts *redis.Options) *Store {
	return &Store{client: redis.NewClient(opts)}
}

// Client exposes the underlying redis client so callers can attach realtime
// channels to the same connection pool.
func (s *Store) Client() *redis.Client {
	return s.client
}

func roomKey(id uuid.UUID) string        { return fmt.Sprintf("rooms:%s", id) }
func playersKey(id uuid.UUID) string     { return fmt.Sprintf("room_players:%s", id) }
func profileKey(id uuid.UUID) string     { return fmt.Sprintf("profiles:%s", id) }
func recordsKey(player uuid.UUID) string { return fmt.Sprintf("games:%s", player) }

const openRoomsKey = "rooms:open"

// Profile operations

func (s *Store) CreateProfile(ctx context.Context, profile *models.Profile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, profileKey(profile.ID), raw, 0).Err()
}

func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	raw, err := s.client.Get(ctx, profileKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	var profile models.Profile
	err = json.Unmarshal(raw, &profile)
	return &profile, err
}

// Room operations

// CreateRoom persists a new room and its owner's membership row. The room
// starts open and joinable.
func (s *Store) CreateRoom(ctx context.Context, room *models.Room, ownerName string) error {
	room.Status = models.RoomStatusOpen
	room.CreatedAt = time.Now()
	if err := s.saveRoom(ctx, room); err != nil {
		return err
	}
	if err := s.client.SAdd(ctx, openRoomsKey, room.ID.String()).Err(); err != nil {
		return err
	}

	owner := models.RoomPlayer{
		RoomID:   room.ID,
		PlayerID: room.Owner,
		Username: ownerName,
		IsOwner:  true,
	}
	return s.savePlayer(ctx, owner, realtime.ChangeInsert, nil)
}

// GetRoom returns the room and its membership roster, or ErrRoomNotFound.
func (s *Store) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, []models.RoomPlayer, error) {
	raw, err := s.client.Get(ctx, roomKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	var room models.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, nil, err
	}

	players, err := s.roster(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return &room, players, nil
}

// ListOpenRooms returns the ids of rooms currently joinable, for quick join.
func (s *Store) ListOpenRooms(ctx context.Context) ([]uuid.UUID, error) {
	members, err := s.client.SMembers(ctx, openRoomsKey).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// UpdateRoomConfig replaces the room configuration. Owner only.
func (s *Store) UpdateRoomConfig(ctx context.Context, roomID, actor uuid.UUID, config models.RoomConfig) error {
	if config.Digits < 1 || config.Digits > 3 {
		return fmt.Errorf("digits must be 1, 2 or 3, got %d", config.Digits)
	}
	if len(config.Operators) == 0 {
		return errors.New("operator set must not be empty")
	}
	return s.updateRoom(ctx, roomID, actor, func(room *models.Room) {
		room.Configuration = config
	})
}

// UpdateRoomMode switches between time-based and fastest-first. Owner only.
func (s *Store) UpdateRoomMode(ctx context.Context, roomID, actor uuid.UUID, mode models.Mode) error {
	return s.updateRoom(ctx, roomID, actor, func(room *models.Room) {
		room.Mode = mode
	})
}

// UpdateRoomStatus drives the room lifecycle. Open and progress transitions
// are owner-only; marking a room ended is a systemic transition any member
// may perform, because in fastest-first mode the winning client ends the game
// for everyone.
func (s *Store) UpdateRoomStatus(ctx context.Context, roomID, actor uuid.UUID, status models.RoomStatus) error {
	room, players, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Owner != actor {
		member := false
		for _, p := range players {
			if p.PlayerID == actor {
				member = true
				break
			}
		}
		if status != models.RoomStatusEnded || !member {
			return ErrNotOwner
		}
	}

	room.Status = status
	if err := s.saveRoom(ctx, room); err != nil {
		return err
	}

	if status == models.RoomStatusOpen {
		err = s.client.SAdd(ctx, openRoomsKey, roomID.String()).Err()
	} else {
		err = s.client.SRem(ctx, openRoomsKey, roomID.String()).Err()
	}
	return err
}

func (s *Store) updateRoom(ctx context.Context, roomID, actor uuid.UUID, mutate func(*models.Room)) error {
	room, _, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Owner != actor {
		return ErrNotOwner
	}
	mutate(room)
	return s.saveRoom(ctx, room)
}

func (s *Store) saveRoom(ctx context.Context, room *models.Room) error {
	raw, err := json.Marshal(room)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, roomKey(room.ID), raw, 0).Err(); err != nil {
		return err
	}
	s.publish(ctx, room.ID, realtime.Change{
		Kind: realtime.ChangeUpdate, Table: realtime.TableRooms, New: raw,
	})
	return nil
}

// Membership operations

// AddPlayer inserts a membership row for a player entering the room.
func (s *Store) AddPlayer(ctx context.Context, roomID, playerID uuid.UUID, username string) error {
	row := models.RoomPlayer{RoomID: roomID, PlayerID: playerID, Username: username}
	return s.savePlayer(ctx, row, realtime.ChangeInsert, nil)
}

// SetReady toggles the is-ready flag on the player's own row.
func (s *Store) SetReady(ctx context.Context, roomID, playerID uuid.UUID, ready bool) error {
	row, err := s.getPlayer(ctx, roomID, playerID)
	if err != nil {
		return err
	}
	old := *row
	row.IsReady = ready
	return s.savePlayer(ctx, *row, realtime.ChangeUpdate, &old)
}

// RemovePlayer deletes a membership row, covering both leaving and being
// kicked. If the departing player owned the room and at least one member
// remains, exactly one remaining member is promoted and the room's owner
// field follows.
func (s *Store) RemovePlayer(ctx context.Context, roomID, playerID uuid.UUID) error {
	row, err := s.getPlayer(ctx, roomID, playerID)
	if err != nil {
		return err
	}

	raw, _ := json.Marshal(row)
	if err := s.client.HDel(ctx, playersKey(roomID), playerID.String()).Err(); err != nil {
		return err
	}
	s.publish(ctx, roomID, realtime.Change{
		Kind: realtime.ChangeDelete, Table: realtime.TableRoomPlayers, Old: raw,
	})

	if !row.IsOwner {
		return nil
	}

	remaining, err := s.roster(ctx, roomID)
	if err != nil || len(remaining) == 0 {
		return err
	}

	// Deterministic pick: the remaining member with the smallest id.
	sort.Slice(remaining, func(i, j int) bool {
		return remaining[i].PlayerID.String() < remaining[j].PlayerID.String()
	})
	next := remaining[0]
	old := next
	next.IsOwner = true
	if err := s.savePlayer(ctx, next, realtime.ChangeUpdate, &old); err != nil {
		return err
	}

	room, _, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	room.Owner = next.PlayerID
	return s.saveRoom(ctx, room)
}

func (s *Store) getPlayer(ctx context.Context, roomID, playerID uuid.UUID) (*models.RoomPlayer, error) {
	raw, err := s.client.HGet(ctx, playersKey(roomID), playerID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("player %s has no membership row in room %s", playerID, roomID)
	}
	if err != nil {
		return nil, err
	}
	var row models.RoomPlayer
	err = json.Unmarshal(raw, &row)
	return &row, err
}

func (s *Store) savePlayer(ctx context.Context, row models.RoomPlayer, kind realtime.ChangeKind, old *models.RoomPlayer) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, playersKey(row.RoomID), row.PlayerID.String(), raw).Err(); err != nil {
		return err
	}

	change := realtime.Change{Kind: kind, Table: realtime.TableRoomPlayers, New: raw}
	if old != nil {
		change.Old, _ = json.Marshal(old)
	}
	s.publish(ctx, row.RoomID, change)
	return nil
}

func (s *Store) roster(ctx context.Context, roomID uuid.UUID) ([]models.RoomPlayer, error) {
	rows, err := s.client.HGetAll(ctx, playersKey(roomID)).Result()
	if err != nil {
		return nil, err
	}
	players := make([]models.RoomPlayer, 0, len(rows))
	for _, raw := range rows {
		var row models.RoomPlayer
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			continue
		}
		players = append(players, row)
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].PlayerID.String() < players[j].PlayerID.String()
	})
	return players, nil
}

// Game record operations

// InsertGameRecord appends one immutable result record to the player's
// history.
func (s *Store) InsertGameRecord(ctx context.Context, record *models.GameRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.CreatedAt = time.Now()
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, recordsKey(record.Player), raw).Err()
}

// ListGameRecords returns the player's history, oldest first.
func (s *Store) ListGameRecords(ctx context.Context, player uuid.UUID) ([]models.GameRecord, error) {
	rows, err := s.client.LRange(ctx, recordsKey(player), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	records := make([]models.GameRecord, 0, len(rows))
	for _, raw := range rows {
		var record models.GameRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// publish mirrors a mutation onto the room channel. Failures are logged and
// swallowed: change fan-out is best effort and a missed notification is
// recovered by the next store read.
func (s *Store) publish(ctx context.Context, roomID uuid.UUID, change realtime.Change) {
	if err := realtime.PublishChange(ctx, s.client, roomID, change); err != nil {
		log.Warn().Str("room_id", roomID.String()).Err(err).Msg("failed to publish change notification")
	}
}
