package realtime

import (
	"github.com/f11game/f11api/models"
	"github.com/google/uuid"
)

// Broadcast event names carried on a room channel. These are ephemeral:
// delivered at most once to currently-subscribed clients, never persisted,
// never replayed.
const (
	EventInitQuestions = "init-questions"
	EventCorrectAnswer = "correct-answer"
	EventWrongAnswer   = "wrong-answer"
	EventNextQuestion  = "next-question"
	EventResetGame     = "reset-game"
	EventKickPlayer    = "kick-player"
)

// InitQuestionsPayload carries the full question sequence, sent once by the
// room owner at game start so every member races on identical questions.
type InitQuestionsPayload struct {
	Questions []models.Question `json:"questions"`
}

// AnswerPayload identifies the player behind a correct-answer or wrong-answer
// event in time-based mode.
type AnswerPayload struct {
	Player   uuid.UUID `json:"player"`
	Username string    `json:"username"`
}

// NextQuestionPayload reports a player's advance through their own copy of
// the question sequence in fastest-first mode.
type NextQuestionPayload struct {
	Player   uuid.UUID `json:"player"`
	Username string    `json:"username"`
	Index    int       `json:"index"`
}

// KickPayload names the player removed by the room owner.
type KickPayload struct {
	ID uuid.UUID `json:"id"`
}
