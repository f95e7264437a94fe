package session

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/f11game/f11api/game"
	"github.com/f11game/f11api/models"
	"github.com/f11game/f11api/timer"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// RecordStore is the one persistence operation a solo game needs.
type RecordStore interface {
	InsertGameRecord(ctx context.Context, record *models.GameRecord) error
}

// Solo is the single-player variant of the session controller: same
// question, answer and timer mechanics, but no room, no realtime channel and
// no cross-client coordination. The question sequence is generated locally
// and privately, and the game always ends when the configured duration
// elapses.
type Solo struct {
	store    RecordStore
	clock    clockwork.Clock
	rng      *rand.Rand
	playerID uuid.UUID

	baseCtx   context.Context
	runCancel context.CancelFunc

	mu          sync.Mutex
	phase       Phase
	settings    Settings
	questions   []models.Question
	questionIdx int
	countdown   int
	answerError bool
	correct     int
	wrong       int
	times       []int64
	mistakes    models.OpMistakes
	results     *models.GameResults

	qTimer    *timer.Stopwatch
	gameTimer *timer.Stopwatch
}

// SoloOptions configures a Solo controller. Store and PlayerID may be zero
// for an anonymous player, whose results are simply not persisted.
type SoloOptions struct {
	Store    RecordStore
	PlayerID uuid.UUID
	Duration time.Duration // game length; defaults to 30s
	Clock    clockwork.Clock
	Rand     *rand.Rand
}

func NewSolo(opts SoloOptions) *Solo {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	settings := DefaultSettings()
	if opts.Duration > 0 {
		settings.Duration = opts.Duration
	}
	return &Solo{
		store:     opts.Store,
		clock:     opts.Clock,
		rng:       opts.Rand,
		playerID:  opts.PlayerID,
		phase:     PhaseEntry,
		settings:  settings,
		mistakes:  newMistakes(),
		qTimer:    timer.New(opts.Clock),
		gameTimer: timer.New(opts.Clock),
	}
}

// SetDigits and SetOperators adjust the local configuration between games.

func (s *Solo) SetDigits(digits int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseEntry && digits >= 1 && digits <= 3 {
		s.settings = s.settings.WithDigits(digits)
	}
}

func (s *Solo) SetOperators(operators []models.Operator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseEntry {
		s.settings = s.settings.WithOperators(operators)
	}
}

// Start generates a private question sequence and begins the countdown.
func (s *Solo) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseEntry {
		return
	}
	s.baseCtx = ctx
	s.results = nil
	s.correct, s.wrong = 0, 0
	s.times = nil
	s.mistakes = newMistakes()
	s.questionIdx = 0
	s.answerError = false
	s.questions = game.GenerateQuestionSet(
		s.rng, game.TimeBasedQuestionCount, s.settings.Digits, s.settings.Operators,
	)
	s.phase = PhaseCountdown
	s.countdown = 3

	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel
	go s.countdownLoop(runCtx)
}

func (s *Solo) countdownLoop(ctx context.Context) {
	ticker := s.clock.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			s.mu.Lock()
			if s.phase != PhaseCountdown {
				s.mu.Unlock()
				return
			}
			s.countdown--
			if s.countdown > 0 {
				s.mu.Unlock()
				continue
			}
			s.phase = PhasePlaying
			s.qTimer.Reset()
			s.gameTimer.Reset()
			duration := s.settings.Duration
			s.mu.Unlock()

			go s.awaitDuration(ctx, duration)
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Solo) awaitDuration(ctx context.Context, duration time.Duration) {
	t := s.clock.NewTimer(duration)
	defer t.Stop()
	select {
	case <-t.Chan():
		s.complete()
	case <-ctx.Done():
	}
}

// SubmitAnswer evaluates the typed input against the current question.
func (s *Solo) SubmitAnswer(input string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhasePlaying || s.questionIdx >= len(s.questions) {
		return false
	}

	q := s.questions[s.questionIdx]
	if game.CheckAnswer(q, input) {
		s.correct++
		s.times = append(s.times, s.qTimer.ElapsedMillis())
		s.qTimer.Reset()
		s.answerError = false
		s.questionIdx++
		return true
	}

	s.wrong++
	s.mistakes[q.Operator]++
	s.answerError = true
	return false
}

// Reset returns to the entry view from any phase. Solo games have no other
// client to coordinate with, so the reset is always purely local.
func (s *Solo) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runCancel != nil {
		s.runCancel()
		s.runCancel = nil
	}
	s.qTimer.ResetStop()
	s.gameTimer.ResetStop()
	s.phase = PhaseEntry
	s.results = nil
	s.correct, s.wrong = 0, 0
	s.times = nil
	s.mistakes = newMistakes()
	s.questions = nil
	s.questionIdx = 0
	s.answerError = false
	s.countdown = 0
}

func (s *Solo) complete() {
	s.mu.Lock()
	if s.phase != PhasePlaying {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseResults
	s.qTimer.ResetStop()
	s.gameTimer.ResetStop()

	results := models.GameResults{
		Correct:  s.correct,
		Wrong:    s.wrong,
		Times:    append([]int64(nil), s.times...),
		Mistakes: copyMistakes(s.mistakes),
	}
	s.results = &results
	record := &models.GameRecord{
		Player: s.playerID,
		Type:   models.GameTypePrivate,
		Mode:   models.ModeTimeBased,
		Configuration: models.RoomConfig{
			Digits:    s.settings.Digits,
			Operators: append([]models.Operator(nil), s.settings.Operators...),
		},
		GameResults: results,
	}
	ctx := s.baseCtx
	s.mu.Unlock()

	if s.store == nil || s.playerID == uuid.Nil {
		return
	}
	go func() {
		if err := s.store.InsertGameRecord(ctx, record); err != nil {
			log.Warn().Str("player_id", s.playerID.String()).Err(err).Msg("failed to persist solo game record")
		}
	}()
}

// SoloSnapshot is a point-in-time copy of the solo controller state.
type SoloSnapshot struct {
	Phase         Phase               `json:"phase"`
	Status        Status              `json:"status"`
	Countdown     int                 `json:"countdown"`
	Digits        int                 `json:"digits"`
	Operators     []models.Operator   `json:"operators"`
	Difficulty    float64             `json:"difficulty"`
	Question      *models.Question    `json:"question,omitempty"`
	Correct       int                 `json:"correct"`
	Wrong         int                 `json:"wrong"`
	AnswerError   bool                `json:"answer_error"`
	ElapsedMillis int64               `json:"elapsed_millis"`
	Results       *models.GameResults `json:"results,omitempty"`
}

func (s *Solo) Snapshot() SoloSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SoloSnapshot{
		Phase:         s.phase,
		Status:        s.phase.Status(),
		Countdown:     s.countdown,
		Digits:        s.settings.Digits,
		Operators:     append([]models.Operator(nil), s.settings.Operators...),
		Difficulty:    s.settings.Difficulty(),
		Correct:       s.correct,
		Wrong:         s.wrong,
		AnswerError:   s.answerError,
		ElapsedMillis: s.gameTimer.ElapsedMillis(),
	}
	if s.phase == PhasePlaying && s.questionIdx < len(s.questions) {
		q := s.questions[s.questionIdx]
		snap.Question = &q
	}
	if s.results != nil {
		results := *s.results
		snap.Results = &results
	}
	return snap
}
