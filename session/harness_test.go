package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/f11game/f11api/models"
	"github.com/f11game/f11api/realtime"
	"github.com/google/uuid"
)

// fakeStore is an in-memory stand-in for the durable room store. It mirrors
// every mutation onto the hub as a change notification, the same way the
// redis-backed store does, so controllers under test observe a realistic
// event flow.
type fakeStore struct {
	hub *realtime.Hub

	mu       sync.Mutex
	room     *models.Room
	players  map[uuid.UUID]models.RoomPlayer
	records  []*models.GameRecord
	addCalls map[uuid.UUID]int
}

func newFakeStore(hub *realtime.Hub, room *models.Room) *fakeStore {
	return &fakeStore{
		hub:      hub,
		room:     room,
		players:  make(map[uuid.UUID]models.RoomPlayer),
		addCalls: make(map[uuid.UUID]int),
	}
}

func (f *fakeStore) GetRoom(_ context.Context, id uuid.UUID) (*models.Room, []models.RoomPlayer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.room == nil || f.room.ID != id {
		return nil, nil, fmt.Errorf("room not found")
	}
	room := *f.room
	players := make([]models.RoomPlayer, 0, len(f.players))
	for _, p := range f.players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].PlayerID.String() < players[j].PlayerID.String()
	})
	return &room, players, nil
}

func (f *fakeStore) AddPlayer(_ context.Context, roomID, playerID uuid.UUID, username string) error {
	f.mu.Lock()
	row := models.RoomPlayer{RoomID: roomID, PlayerID: playerID, Username: username}
	f.players[playerID] = row
	f.addCalls[playerID]++
	f.mu.Unlock()

	raw, _ := json.Marshal(row)
	f.hub.PublishChange(roomID, realtime.Change{Kind: realtime.ChangeInsert, Table: realtime.TableRoomPlayers, New: raw})
	return nil
}

func (f *fakeStore) SetReady(_ context.Context, roomID, playerID uuid.UUID, ready bool) error {
	f.mu.Lock()
	row := f.players[playerID]
	old := row
	row.IsReady = ready
	f.players[playerID] = row
	f.mu.Unlock()

	oldRaw, _ := json.Marshal(old)
	newRaw, _ := json.Marshal(row)
	f.hub.PublishChange(roomID, realtime.Change{Kind: realtime.ChangeUpdate, Table: realtime.TableRoomPlayers, Old: oldRaw, New: newRaw})
	return nil
}

func (f *fakeStore) RemovePlayer(_ context.Context, roomID, playerID uuid.UUID) error {
	f.mu.Lock()
	row, ok := f.players[playerID]
	if !ok {
		f.mu.Unlock()
		return fmt.Errorf("no membership row for %s", playerID)
	}
	delete(f.players, playerID)

	var promoted *models.RoomPlayer
	if row.IsOwner && len(f.players) > 0 {
		ids := make([]uuid.UUID, 0, len(f.players))
		for id := range f.players {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
		next := f.players[ids[0]]
		next.IsOwner = true
		f.players[ids[0]] = next
		f.room.Owner = next.PlayerID
		promoted = &next
	}
	roomCopy := *f.room
	f.mu.Unlock()

	oldRaw, _ := json.Marshal(row)
	f.hub.PublishChange(roomID, realtime.Change{Kind: realtime.ChangeDelete, Table: realtime.TableRoomPlayers, Old: oldRaw})
	if promoted != nil {
		newRaw, _ := json.Marshal(promoted)
		f.hub.PublishChange(roomID, realtime.Change{Kind: realtime.ChangeUpdate, Table: realtime.TableRoomPlayers, New: newRaw})
		roomRaw, _ := json.Marshal(roomCopy)
		f.hub.PublishChange(roomID, realtime.Change{Kind: realtime.ChangeUpdate, Table: realtime.TableRooms, New: roomRaw})
	}
	return nil
}

func (f *fakeStore) UpdateRoomStatus(_ context.Context, roomID, actor uuid.UUID, status models.RoomStatus) error {
	f.mu.Lock()
	if f.room.Owner != actor {
		_, member := f.players[actor]
		if status != models.RoomStatusEnded || !member {
			f.mu.Unlock()
			return fmt.Errorf("not the room owner")
		}
	}
	f.room.Status = status
	roomCopy := *f.room
	f.mu.Unlock()

	raw, _ := json.Marshal(roomCopy)
	f.hub.PublishChange(roomID, realtime.Change{Kind: realtime.ChangeUpdate, Table: realtime.TableRooms, New: raw})
	return nil
}

func (f *fakeStore) InsertGameRecord(_ context.Context, record *models.GameRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

func (f *fakeStore) recordsFor(player uuid.UUID) []*models.GameRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.GameRecord
	for _, r := range f.records {
		if r.Player == player {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeStore) roomStatus() models.RoomStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.room.Status
}

func (f *fakeStore) owner() uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.room.Owner
}

func (f *fakeStore) seedPlayer(row models.RoomPlayer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players[row.PlayerID] = row
}

// answerFor computes the input string that answers q correctly.
func answerFor(q models.Question) string {
	switch q.Operator {
	case models.OperatorAdd:
		return strconv.Itoa(q.Number1 + q.Number2)
	case models.OperatorSubtract:
		return strconv.Itoa(q.Number1 - q.Number2)
	case models.OperatorMultiply:
		return strconv.Itoa(q.Number1 * q.Number2)
	default:
		return fmt.Sprintf("%.2f", float64(q.Number1)/float64(q.Number2))
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// noticeLog captures notices surfaced by a controller.
type noticeLog struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *noticeLog) add(notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *noticeLog) has(kind string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, notice := range n.notices {
		if notice.Kind == kind {
			return true
		}
	}
	return false
}
