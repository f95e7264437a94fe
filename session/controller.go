package session

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/f11game/f11api/game"
	"github.com/f11game/f11api/models"
	"github.com/f11game/f11api/realtime"
	"github.com/f11game/f11api/timer"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Phase is the controller's view state.
type Phase string

const (
	PhaseEntry     Phase = "entry"
	PhaseCountdown Phase = "countdown"
	PhasePlaying   Phase = "playing"
	PhaseResults   Phase = "results"
)

// Status is the coarse session status layered under Phase: idle before a
// game, start while one runs, end once results are computable.
type Status string

const (
	StatusIdle  Status = "idle"
	StatusStart Status = "start"
	StatusEnd   Status = "end"
)

func (p Phase) Status() Status {
	switch p {
	case PhaseCountdown, PhasePlaying:
		return StatusStart
	case PhaseResults:
		return StatusEnd
	default:
		return StatusIdle
	}
}

// Notice is a user-facing message surfaced by the controller; the transport
// decides how to display it.
type Notice struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

const (
	NoticeInfo      = "info"
	NoticeSuccess   = "success"
	NoticeError     = "error"
	NoticeCelebrate = "celebrate"
)

// Store is the durable room state collaborator the controller needs.
type Store interface {
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, []models.RoomPlayer, error)
	AddPlayer(ctx context.Context, roomID, playerID uuid.UUID, username string) error
	RemovePlayer(ctx context.Context, roomID, playerID uuid.UUID) error
	SetReady(ctx context.Context, roomID, playerID uuid.UUID, ready bool) error
	UpdateRoomStatus(ctx context.Context, roomID, actor uuid.UUID, status models.RoomStatus) error
	InsertGameRecord(ctx context.Context, record *models.GameRecord) error
}

// Channel is the realtime collaborator scoped to the controller's room.
type Channel interface {
	OnBroadcast(event string, h realtime.Handler)
	OnChange(table realtime.Table, h realtime.ChangeHandler)
	Subscribe(ctx context.Context) error
	Broadcast(ctx context.Context, event string, payload any) error
	Close() error
}

// Controller drives one client's multiplayer game session: it reacts to
// local input, remote broadcasts and room status changes, and derives the
// local view of the race from them. Nothing it computes is authoritative.
type Controller struct {
	store    Store
	channel  Channel
	clock    clockwork.Clock
	rng      *rand.Rand
	roomID   uuid.UUID
	playerID uuid.UUID
	username string
	notify   func(Notice)

	baseCtx   context.Context
	runCancel context.CancelFunc

	mu          sync.Mutex
	phase       Phase
	settings    Settings
	room        *models.Room
	players     []models.RoomPlayer
	questions   []models.Question
	questionIdx int
	countdown   int
	answerError bool
	correct     int
	wrong       int
	times       []int64
	mistakes    models.OpMistakes
	positions   map[uuid.UUID]int
	results     *models.GameResults
	removed     bool

	qTimer    *timer.Stopwatch
	gameTimer *timer.Stopwatch
}

// Options configures a Controller. Clock, Rand and Notify are optional.
type Options struct {
	RoomID   uuid.UUID
	PlayerID uuid.UUID
	Username string
	Duration time.Duration // time-based game length; defaults to 30s
	Clock    clockwork.Clock
	Rand     *rand.Rand
	Notify   func(Notice)
}

func NewController(store Store, channel Channel, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Notify == nil {
		opts.Notify = func(Notice) {}
	}
	settings := DefaultSettings()
	if opts.Duration > 0 {
		settings.Duration = opts.Duration
	}
	return &Controller{
		store:     store,
		channel:   channel,
		clock:     opts.Clock,
		rng:       opts.Rand,
		roomID:    opts.RoomID,
		playerID:  opts.PlayerID,
		username:  opts.Username,
		notify:    opts.Notify,
		phase:     PhaseEntry,
		settings:  settings,
		mistakes:  newMistakes(),
		positions: make(map[uuid.UUID]int),
		qTimer:    timer.New(opts.Clock),
		gameTimer: timer.New(opts.Clock),
	}
}

func newMistakes() models.OpMistakes {
	return models.OpMistakes{
		models.OperatorAdd:      0,
		models.OperatorSubtract: 0,
		models.OperatorMultiply: 0,
		models.OperatorDivide:   0,
	}
}

// Join loads the room, subscribes to its channel and inserts this client's
// membership row when absent. A db.ErrRoomNotFound from the store surfaces
// unchanged so the caller can redirect away.
func (c *Controller) Join(ctx context.Context) error {
	c.baseCtx = ctx

	c.channel.OnChange(realtime.TableRooms, c.onRoomChange)
	c.channel.OnChange(realtime.TableRoomPlayers, c.onPlayersChange)
	c.channel.OnBroadcast(realtime.EventInitQuestions, c.onInitQuestions)
	c.channel.OnBroadcast(realtime.EventCorrectAnswer, c.onRemoteCorrect)
	c.channel.OnBroadcast(realtime.EventWrongAnswer, c.onRemoteWrong)
	c.channel.OnBroadcast(realtime.EventNextQuestion, c.onRemoteNextQuestion)
	c.channel.OnBroadcast(realtime.EventResetGame, c.onRemoteReset)
	c.channel.OnBroadcast(realtime.EventKickPlayer, c.onKickPlayer)

	room, players, err := c.store.GetRoom(ctx, c.roomID)
	if err != nil {
		return err
	}

	if err := c.channel.Subscribe(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.room = room
	c.players = players
	c.settings = c.settings.WithMode(room.Mode).WithConfig(room.Configuration)
	for _, p := range players {
		c.positions[p.PlayerID] = 0
	}
	absent := !c.inRoster(players)
	c.mu.Unlock()

	// First load counts as "previous roster was empty", so an absent member
	// inserts its row exactly once here.
	if absent && len(players) > 0 {
		if err := c.store.AddPlayer(ctx, c.roomID, c.playerID, c.username); err != nil {
			return err
		}
	}
	return nil
}

// Leave is terminal: it drops the channel subscription and deletes this
// client's membership row.
func (c *Controller) Leave(ctx context.Context) error {
	c.mu.Lock()
	c.stopRunLocked()
	c.mu.Unlock()
	if err := c.channel.Close(); err != nil {
		return err
	}
	return c.store.RemovePlayer(ctx, c.roomID, c.playerID)
}

// ToggleReady flips this player's ready flag. Owners have no ready flag and
// the call is silently ignored for them, as it is outside the lobby.
func (c *Controller) ToggleReady(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseEntry || c.isOwnerLocked() {
		c.mu.Unlock()
		return nil
	}
	ready := !c.isReadyLocked()
	c.mu.Unlock()
	return c.store.SetReady(ctx, c.roomID, c.playerID, ready)
}

// Start launches the game for everyone: owner only, and only once every
// other member is ready. A lone owner cannot start; a race needs at least
// two members. The owner generates the question set, broadcasts it verbatim,
// then persists the status flip that moves every client into the countdown.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseEntry || !c.isOwnerLocked() || len(c.players) < 2 || !EveryoneReady(c.players) {
		c.mu.Unlock()
		return nil
	}
	settings := c.settings
	questions := game.GenerateQuestionSet(
		c.rng, game.QuestionCount(settings.Mode), settings.Digits, settings.Operators,
	)
	c.questions = questions
	c.mu.Unlock()

	if err := c.channel.Broadcast(ctx, realtime.EventInitQuestions, realtime.InitQuestionsPayload{Questions: questions}); err != nil {
		return err
	}
	log.Debug().Str("room_id", c.roomID.String()).Int("questions", len(questions)).Msg("broadcasted question set")

	return c.store.UpdateRoomStatus(ctx, c.roomID, c.playerID, models.RoomStatusProgress)
}

// SubmitAnswer evaluates the typed input against the current question and
// reports whether it was correct. Wrong answers keep the per-question clock
// running; the error flag clears on the next question transition.
func (c *Controller) SubmitAnswer(ctx context.Context, input string) (bool, error) {
	c.mu.Lock()
	if c.phase != PhasePlaying || c.questionIdx >= len(c.questions) {
		c.mu.Unlock()
		return false, nil
	}

	q := c.questions[c.questionIdx]
	correct := game.CheckAnswer(q, input)
	mode := c.settings.Mode

	var event string
	var payload any
	var endRace, exhausted bool

	if correct {
		c.correct++
		c.times = append(c.times, c.qTimer.ElapsedMillis())
		c.qTimer.Reset()
		c.answerError = false
		c.questionIdx++

		if mode == models.ModeFastestFirst {
			c.positions[c.playerID] = c.questionIdx
			event = realtime.EventNextQuestion
			payload = realtime.NextQuestionPayload{Player: c.playerID, Username: c.username, Index: c.questionIdx}
			endRace = c.questionIdx >= game.FastestFirstMaxQuestions
		} else {
			c.positions[c.playerID]++
			event = realtime.EventCorrectAnswer
			payload = realtime.AnswerPayload{Player: c.playerID, Username: c.username}
			exhausted = c.questionIdx >= len(c.questions)
		}
	} else {
		c.wrong++
		c.mistakes[q.Operator]++
		c.answerError = true
		event = realtime.EventWrongAnswer
		payload = realtime.AnswerPayload{Player: c.playerID, Username: c.username}
	}
	c.mu.Unlock()

	if err := c.channel.Broadcast(ctx, event, payload); err != nil {
		log.Warn().Str("room_id", c.roomID.String()).Err(err).Msg("failed to broadcast answer event")
	}

	if endRace {
		// Systemic transition: the winner ends the game for every member.
		if err := c.store.UpdateRoomStatus(ctx, c.roomID, c.playerID, models.RoomStatusEnded); err != nil {
			log.Warn().Str("room_id", c.roomID.String()).Err(err).Msg("failed to persist race end")
		}
	}
	if exhausted {
		c.complete(false)
	}
	return correct, nil
}

// Reset aborts back to the lobby. Mid-game only the owner may abort, and the
// abort fans out to everyone. From the results view any player may reset
// locally; the owner's reset additionally reopens the room for all.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	phase := c.phase
	owner := c.isOwnerLocked()
	c.mu.Unlock()

	switch {
	case (phase == PhasePlaying || phase == PhaseCountdown) && owner:
		if err := c.channel.Broadcast(ctx, realtime.EventResetGame, struct{}{}); err != nil {
			log.Warn().Str("room_id", c.roomID.String()).Err(err).Msg("failed to broadcast reset")
		}
		c.resetToEntry()
		return c.store.UpdateRoomStatus(ctx, c.roomID, c.playerID, models.RoomStatusOpen)
	case phase == PhaseResults:
		if owner {
			if err := c.channel.Broadcast(ctx, realtime.EventResetGame, struct{}{}); err != nil {
				log.Warn().Str("room_id", c.roomID.String()).Err(err).Msg("failed to broadcast reset")
			}
			c.resetToEntry()
			return c.store.UpdateRoomStatus(ctx, c.roomID, c.playerID, models.RoomStatusOpen)
		}
		c.resetToEntry()
	}
	return nil
}

// Kick removes another member: owner only. The row deletion reaches everyone
// as a change notification; the broadcast names the victim so their client
// can explain the removal.
func (c *Controller) Kick(ctx context.Context, playerID uuid.UUID) error {
	c.mu.Lock()
	allowed := c.isOwnerLocked() && playerID != c.playerID
	c.mu.Unlock()
	if !allowed {
		return nil
	}
	if err := c.store.RemovePlayer(ctx, c.roomID, playerID); err != nil {
		return err
	}
	return c.channel.Broadcast(ctx, realtime.EventKickPlayer, realtime.KickPayload{ID: playerID})
}

// Change notification handlers. These run on the channel's dispatch loop.

func (c *Controller) onRoomChange(change realtime.Change) {
	var room models.Room
	if err := json.Unmarshal(change.New, &room); err != nil {
		return
	}

	c.mu.Lock()
	c.room = &room
	switch room.Status {
	case models.RoomStatusOpen:
		c.settings = c.settings.WithMode(room.Mode).WithConfig(room.Configuration)
		c.mu.Unlock()
	case models.RoomStatusProgress:
		c.startGameSessionLocked()
		c.mu.Unlock()
	case models.RoomStatusEnded:
		c.mu.Unlock()
		c.complete(true)
	default:
		c.mu.Unlock()
	}

	c.refreshRoster()
}

func (c *Controller) onPlayersChange(change realtime.Change) {
	var row models.RoomPlayer
	switch change.Kind {
	case realtime.ChangeDelete:
		if err := json.Unmarshal(change.Old, &row); err == nil && row.PlayerID == c.playerID {
			c.mu.Lock()
			c.removed = true
			c.stopRunLocked()
			c.mu.Unlock()
			c.notify(Notice{Kind: NoticeError, Text: "You are no longer in this room"})
			return
		}
	case realtime.ChangeUpdate:
		if err := json.Unmarshal(change.New, &row); err == nil && row.PlayerID == c.playerID && row.IsOwner {
			c.notify(Notice{Kind: NoticeSuccess, Text: "You've been assigned as the new room owner!"})
		}
	}

	c.refreshRoster()
}

// refreshRoster refetches the membership list after any observed change. If
// this client's own row is missing and the previous roster was empty, the
// row is inserted; the previous-roster-empty guard is what keeps the
// non-idempotent insert from duplicating.
func (c *Controller) refreshRoster() {
	room, players, err := c.store.GetRoom(c.baseCtx, c.roomID)
	if err != nil {
		log.Warn().Str("room_id", c.roomID.String()).Err(err).Msg("failed to refresh roster")
		return
	}

	c.mu.Lock()
	prev := c.players
	c.room = room
	c.players = players
	for _, p := range players {
		if _, ok := c.positions[p.PlayerID]; !ok {
			c.positions[p.PlayerID] = 0
		}
	}
	absent := !c.inRoster(players) && !c.removed
	c.mu.Unlock()

	if absent && len(prev) == 0 && len(players) > 0 {
		if err := c.store.AddPlayer(c.baseCtx, c.roomID, c.playerID, c.username); err != nil {
			log.Warn().Str("room_id", c.roomID.String()).Err(err).Msg("failed to auto-join room")
		}
	}
}

// Broadcast handlers.

func (c *Controller) onInitQuestions(payload json.RawMessage) {
	var p realtime.InitQuestionsPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return
	}
	c.mu.Lock()
	c.questions = p.Questions
	c.mu.Unlock()
	log.Debug().Str("room_id", c.roomID.String()).Int("questions", len(p.Questions)).Msg("received question set")
}

// onRemoteCorrect advances the shared question stream in time-based mode:
// any player's correct answer consumes the question for everyone.
func (c *Controller) onRemoteCorrect(payload json.RawMessage) {
	var p realtime.AnswerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return
	}

	c.mu.Lock()
	if c.phase != PhasePlaying {
		c.mu.Unlock()
		return
	}
	c.positions[p.Player]++
	c.questionIdx++
	c.answerError = false
	exhausted := c.questionIdx >= len(c.questions)
	c.mu.Unlock()

	c.notify(Notice{Kind: NoticeInfo, Text: p.Username + " stole the question!"})
	if exhausted {
		c.complete(false)
	}
}

func (c *Controller) onRemoteWrong(payload json.RawMessage) {
	var p realtime.AnswerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return
	}
	c.notify(Notice{Kind: NoticeInfo, Text: p.Username + " answered it wrongly!"})
}

// onRemoteNextQuestion tracks another player's independent progress in
// fastest-first mode; the reported index becomes their position directly.
func (c *Controller) onRemoteNextQuestion(payload json.RawMessage) {
	var p realtime.NextQuestionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return
	}
	c.mu.Lock()
	if c.phase == PhasePlaying {
		c.positions[p.Player] = p.Index
	}
	c.mu.Unlock()
}

func (c *Controller) onRemoteReset(json.RawMessage) {
	c.resetToEntry()
	c.notify(Notice{Kind: NoticeInfo, Text: "The room owner has reset the game for everyone"})
}

func (c *Controller) onKickPlayer(payload json.RawMessage) {
	var p realtime.KickPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return
	}
	if p.ID == c.playerID {
		c.notify(Notice{Kind: NoticeError, Text: "The room owner removed you from the room"})
	}
}

// Session lifecycle internals.

// startGameSessionLocked moves entry into the 3-2-1 countdown. Triggered by
// the room's progress transition, on the owner's client and members' alike.
func (c *Controller) startGameSessionLocked() {
	if c.phase == PhaseCountdown || c.phase == PhasePlaying {
		return
	}
	c.results = nil
	c.correct, c.wrong = 0, 0
	c.times = nil
	c.mistakes = newMistakes()
	c.questionIdx = 0
	c.answerError = false
	for id := range c.positions {
		c.positions[id] = 0
	}
	c.phase = PhaseCountdown
	c.countdown = 3

	ctx, cancel := context.WithCancel(c.baseCtx)
	c.runCancel = cancel
	go c.countdownLoop(ctx)
}

func (c *Controller) countdownLoop(ctx context.Context) {
	ticker := c.clock.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			c.mu.Lock()
			if c.phase != PhaseCountdown {
				c.mu.Unlock()
				return
			}
			c.countdown--
			if c.countdown > 0 {
				c.mu.Unlock()
				continue
			}
			c.phase = PhasePlaying
			c.qTimer.Reset()
			c.gameTimer.Reset()
			timeBased := c.settings.Mode == models.ModeTimeBased
			duration := c.settings.Duration
			c.mu.Unlock()

			if timeBased {
				go c.awaitDuration(ctx, duration)
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

// awaitDuration ends a time-based game when the configured duration elapses.
// Purely local: each player's game ends independently even though the
// question stream is shared.
func (c *Controller) awaitDuration(ctx context.Context, duration time.Duration) {
	t := c.clock.NewTimer(duration)
	defer t.Stop()
	select {
	case <-t.Chan():
		c.complete(false)
	case <-ctx.Done():
	}
}

// complete freezes the session into the results view and persists this
// player's record. Persistence is fire and forget; a failed insert costs the
// historical record, nothing else.
func (c *Controller) complete(celebrate bool) {
	c.mu.Lock()
	if c.phase != PhasePlaying && c.phase != PhaseCountdown {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseResults
	c.qTimer.ResetStop()
	c.gameTimer.ResetStop()

	results := models.GameResults{
		Correct:  c.correct,
		Wrong:    c.wrong,
		Times:    append([]int64(nil), c.times...),
		Mistakes: copyMistakes(c.mistakes),
	}
	c.results = &results
	record := &models.GameRecord{
		Player: c.playerID,
		Type:   models.GameTypePublic,
		Mode:   c.settings.Mode,
		Configuration: models.RoomConfig{
			Digits:    c.settings.Digits,
			Operators: append([]models.Operator(nil), c.settings.Operators...),
		},
		GameResults: results,
	}
	c.mu.Unlock()

	if celebrate {
		c.notify(Notice{Kind: NoticeCelebrate, Text: "The race is over!"})
	}

	go func() {
		if err := c.store.InsertGameRecord(c.baseCtx, record); err != nil {
			log.Warn().Str("player_id", c.playerID.String()).Err(err).Msg("failed to persist game record")
		}
	}()
}

func (c *Controller) resetToEntry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopRunLocked()
	c.phase = PhaseEntry
	c.results = nil
	c.correct, c.wrong = 0, 0
	c.times = nil
	c.mistakes = newMistakes()
	c.questions = nil
	c.questionIdx = 0
	c.answerError = false
	c.countdown = 0
	for id := range c.positions {
		c.positions[id] = 0
	}
}

func (c *Controller) stopRunLocked() {
	if c.runCancel != nil {
		c.runCancel()
		c.runCancel = nil
	}
	c.qTimer.ResetStop()
	c.gameTimer.ResetStop()
}

func (c *Controller) isOwnerLocked() bool {
	for _, p := range c.players {
		if p.PlayerID == c.playerID {
			return p.IsOwner
		}
	}
	return false
}

func (c *Controller) isReadyLocked() bool {
	for _, p := range c.players {
		if p.PlayerID == c.playerID {
			return p.IsReady
		}
	}
	return false
}

func (c *Controller) inRoster(players []models.RoomPlayer) bool {
	for _, p := range players {
		if p.PlayerID == c.playerID {
			return true
		}
	}
	return false
}

func copyMistakes(m models.OpMistakes) models.OpMistakes {
	out := make(models.OpMistakes, len(m))
	for op, n := range m {
		out[op] = n
	}
	return out
}

// Snapshot is a point-in-time copy of the controller state for display.
type Snapshot struct {
	Phase         Phase               `json:"phase"`
	Status        Status              `json:"status"`
	Countdown     int                 `json:"countdown"`
	Mode          models.Mode         `json:"mode"`
	Digits        int                 `json:"digits"`
	Operators     []models.Operator   `json:"operators"`
	Difficulty    float64             `json:"difficulty"`
	Players       []models.RoomPlayer `json:"players"`
	IsOwner       bool                `json:"is_owner"`
	IsReady       bool                `json:"is_ready"`
	EveryoneReady bool                `json:"everyone_ready"`
	Question      *models.Question    `json:"question,omitempty"`
	QuestionIdx   int                 `json:"question_idx"`
	Correct       int                 `json:"correct"`
	Wrong         int                 `json:"wrong"`
	AnswerError   bool                `json:"answer_error"`
	ElapsedMillis int64               `json:"elapsed_millis"`
	Positions     map[uuid.UUID]int   `json:"positions"`
	Results       *models.GameResults `json:"results,omitempty"`
	Removed       bool                `json:"removed"`
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Phase:         c.phase,
		Status:        c.phase.Status(),
		Countdown:     c.countdown,
		Mode:          c.settings.Mode,
		Digits:        c.settings.Digits,
		Operators:     append([]models.Operator(nil), c.settings.Operators...),
		Difficulty:    c.settings.Difficulty(),
		Players:       append([]models.RoomPlayer(nil), c.players...),
		IsOwner:       c.isOwnerLocked(),
		IsReady:       c.isReadyLocked(),
		EveryoneReady: EveryoneReady(c.players),
		QuestionIdx:   c.questionIdx,
		Correct:       c.correct,
		Wrong:         c.wrong,
		AnswerError:   c.answerError,
		ElapsedMillis: c.gameTimer.ElapsedMillis(),
		Positions:     make(map[uuid.UUID]int, len(c.positions)),
		Removed:       c.removed,
	}
	for id, pos := range c.positions {
		snap.Positions[id] = pos
	}
	if c.phase == PhasePlaying && c.questionIdx < len(c.questions) {
		q := c.questions[c.questionIdx]
		snap.Question = &q
	}
	if c.results != nil {
		results := *c.results
		snap.Results = &results
	}
	return snap
}
