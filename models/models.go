package models

import (
	"time"

	"github.com/google/uuid"
)

type Profile struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

type Operator string

const (
	OperatorAdd      Operator = "add"
	OperatorSubtract Operator = "subtract"
	OperatorMultiply Operator = "multiply"
	OperatorDivide   Operator = "divide"
)

type Mode string

const (
	ModeTimeBased    Mode = "time-based"
	ModeFastestFirst Mode = "fastest-first"
)

type RoomStatus string

const (
	RoomStatusOpen     RoomStatus = "open"
	RoomStatusProgress RoomStatus = "progress"
	RoomStatusEnded    RoomStatus = "ended"
)

// RoomConfig is the owner-controlled game configuration. Operators is never
// empty and Digits is always one of 1, 2 or 3.
type RoomConfig struct {
	Digits    int        `json:"digits"`
	Operators []Operator `json:"operators"`
}

type Room struct {
	ID            uuid.UUID  `json:"id"`
	Owner         uuid.UUID  `json:"owner"`
	Mode          Mode       `json:"mode"`
	Configuration RoomConfig `json:"configuration"`
	Status        RoomStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
}

// RoomPlayer is one membership row. Exactly one row per room has IsOwner set
// at steady state; IsReady is meaningless for the owner.
type RoomPlayer struct {
	RoomID   uuid.UUID `json:"room_id"`
	PlayerID uuid.UUID `json:"player_id"`
	Username string    `json:"username"`
	IsOwner  bool      `json:"is_owner"`
	IsReady  bool      `json:"is_ready"`
}

// Question is immutable once generated. A session holds an ordered sequence
// of these, generated once and distributed verbatim to every member.
type Question struct {
	Number1  int      `json:"number1"`
	Number2  int      `json:"number2"`
	Operator Operator `json:"operator"`
}

type OpMistakes map[Operator]int

// GameResults accumulates client-side during a session. Times holds the
// per-question elapsed milliseconds for correct answers only, in answer
// order, so len(Times) always equals Correct.
type GameResults struct {
	Correct  int        `json:"correct"`
	Wrong    int        `json:"wrong"`
	Times    []int64    `json:"times"`
	Mistakes OpMistakes `json:"mistakes"`
}

type GameType string

const (
	GameTypePrivate GameType = "private"
	GameTypePublic  GameType = "public"
)

// GameRecord is the immutable historical record persisted once per player
// per completed session.
type GameRecord struct {
	ID            uuid.UUID  `json:"id"`
	Player        uuid.UUID  `json:"player"`
	Type          GameType   `json:"type"`
	Mode          Mode       `json:"mode"`
	Configuration RoomConfig `json:"configuration"`
	GameResults
	CreatedAt time.Time `json:"created_at"`
}

// SocketMessage is the inbound client frame on the room websocket.
type SocketMessage struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}
