package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/f11game/f11api/db"
	"github.com/f11game/f11api/models"
	"github.com/f11game/f11api/realtime"
	"github.com/f11game/f11api/session"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin filtering happens at the CORS layer.
	},
}

// snapshotInterval paces outbound state pushes; remote events mutate the
// session between client commands, so the socket polls the controller and
// pushes only when something changed.
const snapshotInterval = 100 * time.Millisecond

type snapshotFrame struct {
	Type     string           `json:"type"`
	Snapshot session.Snapshot `json:"snapshot"`
}

type soloSnapshotFrame struct {
	Type     string               `json:"type"`
	Snapshot session.SoloSnapshot `json:"snapshot"`
}

type noticeFrame struct {
	Type   string         `json:"type"`
	Notice session.Notice `json:"notice"`
}

type entryQuestionFrame struct {
	Type     string          `json:"type"`
	Question models.Question `json:"question"`
}

// runEntryCycler feeds the decorative entry-view combinations into rolls
// until ctx is cancelled. settings supplies the live configuration.
func runEntryCycler(ctx context.Context, settings func() (int, []models.Operator), rolls chan<- models.Question) {
	cycler := session.NewEntryCycler(clockwork.NewRealClock(), rand.New(rand.NewSource(time.Now().UnixNano())))
	go cycler.Run(ctx, settings, func(q models.Question) {
		select {
		case rolls <- q:
		default:
		}
	})
}

// ConnectToRoom joins the caller to a room and bridges its session onto a
// websocket: inbound frames are commands, outbound frames are state
// snapshots and notices.
func ConnectToRoom(store *db.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		roomID, err := uuid.Parse(c.Param("room_id"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid room ID"})
		}
		userID, username, ok := identity(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid user"})
		}

		notices := make(chan session.Notice, 16)
		ctrl := session.NewController(store, realtime.NewRedisChannel(store.Client(), roomID, userID), session.Options{
			RoomID:   roomID,
			PlayerID: userID,
			Username: username,
			Notify: func(n session.Notice) {
				select {
				case notices <- n:
				default:
				}
			},
		})

		ctx, cancel := context.WithCancel(c.Request().Context())
		defer cancel()

		if err := ctrl.Join(ctx); err != nil {
			if errors.Is(err, db.ErrRoomNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "Room not found"})
			}
			log.Error().Str("room_id", roomID.String()).Err(err).Msg("failed to join room")
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to join room"})
		}

		ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			ctrl.Leave(context.Background())
			log.Error().Err(err).Msg("websocket upgrade failed")
			return nil
		}
		defer func() {
			ws.Close()
			if err := ctrl.Leave(context.Background()); err != nil {
				log.Warn().Str("room_id", roomID.String()).Err(err).Msg("failed to leave room")
			}
		}()

		commands := make(chan models.SocketMessage, 16)
		readErr := make(chan error, 1)
		go readLoop(ws, commands, readErr)

		entryRolls := make(chan models.Question, 1)
		runEntryCycler(ctx, func() (int, []models.Operator) {
			snap := ctrl.Snapshot()
			return snap.Digits, snap.Operators
		}, entryRolls)

		var lastSnapshot []byte
		push := func() {
			frame := snapshotFrame{Type: "snapshot", Snapshot: ctrl.Snapshot()}
			raw, err := json.Marshal(frame)
			if err != nil || bytes.Equal(raw, lastSnapshot) {
				return
			}
			lastSnapshot = raw
			if err := ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				cancel()
			}
		}
		push()

		ticker := time.NewTicker(snapshotInterval)
		defer ticker.Stop()

		for {
			select {
			case msg := <-commands:
				handleRoomCommand(ctx, ctrl, store, roomID, userID, msg)
				push()
			case notice := <-notices:
				if err := ws.WriteJSON(noticeFrame{Type: "notice", Notice: notice}); err != nil {
					return nil
				}
				push()
			case q := <-entryRolls:
				if ctrl.Snapshot().Phase == session.PhaseEntry {
					if err := ws.WriteJSON(entryQuestionFrame{Type: "entry-question", Question: q}); err != nil {
						return nil
					}
				}
			case <-ticker.C:
				push()
			case err := <-readErr:
				log.Debug().Str("room_id", roomID.String()).Err(err).Msg("websocket closed")
				return nil
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func readLoop(ws *websocket.Conn, commands chan<- models.SocketMessage, readErr chan<- error) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		var msg models.SocketMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Debug().Err(err).Msg("dropping malformed client frame")
			continue
		}
		commands <- msg
	}
}

func handleRoomCommand(ctx context.Context, ctrl *session.Controller, store *db.Store, roomID, userID uuid.UUID, msg models.SocketMessage) {
	var err error
	switch msg.Type {
	case "toggle-ready":
		err = ctrl.ToggleReady(ctx)
	case "start-game":
		err = ctrl.Start(ctx)
	case "submit-answer":
		answer, _ := msg.Payload["answer"].(string)
		_, err = ctrl.SubmitAnswer(ctx, answer)
	case "reset-game":
		err = ctrl.Reset(ctx)
	case "kick-player":
		raw, _ := msg.Payload["id"].(string)
		var target uuid.UUID
		if target, err = uuid.Parse(raw); err == nil {
			err = ctrl.Kick(ctx, target)
		}
	case "set-config":
		err = store.UpdateRoomConfig(ctx, roomID, userID, configFromPayload(msg.Payload))
	case "set-mode":
		mode, _ := msg.Payload["mode"].(string)
		err = store.UpdateRoomMode(ctx, roomID, userID, models.Mode(mode))
	default:
		log.Debug().Str("type", msg.Type).Msg("unknown client command")
	}
	if err != nil {
		log.Warn().Str("type", msg.Type).Str("room_id", roomID.String()).Err(err).Msg("command failed")
	}
}

func configFromPayload(payload map[string]any) models.RoomConfig {
	config := models.RoomConfig{}
	if digits, ok := payload["digits"].(float64); ok {
		config.Digits = int(digits)
	}
	if raw, ok := payload["operators"].([]any); ok {
		for _, op := range raw {
			if s, ok := op.(string); ok {
				config.Operators = append(config.Operators, models.Operator(s))
			}
		}
	}
	return config
}

// ConnectSolo runs a single-player session over a websocket. Works without
// authentication; anonymous games are simply not persisted.
func ConnectSolo(store *db.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		var playerID uuid.UUID
		if rawID, ok := c.Get("userID").(string); ok {
			playerID, _ = uuid.Parse(rawID)
		}

		var recordStore session.RecordStore
		if playerID != uuid.Nil {
			recordStore = store
		}
		solo := session.NewSolo(session.SoloOptions{Store: recordStore, PlayerID: playerID})

		ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			log.Error().Err(err).Msg("websocket upgrade failed")
			return nil
		}
		defer ws.Close()
		defer solo.Reset()

		ctx, cancel := context.WithCancel(c.Request().Context())
		defer cancel()

		commands := make(chan models.SocketMessage, 16)
		readErr := make(chan error, 1)
		go readLoop(ws, commands, readErr)

		entryRolls := make(chan models.Question, 1)
		runEntryCycler(ctx, func() (int, []models.Operator) {
			snap := solo.Snapshot()
			return snap.Digits, snap.Operators
		}, entryRolls)

		var lastSnapshot []byte
		push := func() {
			frame := soloSnapshotFrame{Type: "snapshot", Snapshot: solo.Snapshot()}
			raw, err := json.Marshal(frame)
			if err != nil || bytes.Equal(raw, lastSnapshot) {
				return
			}
			lastSnapshot = raw
			if err := ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				cancel()
			}
		}
		push()

		ticker := time.NewTicker(snapshotInterval)
		defer ticker.Stop()

		for {
			select {
			case msg := <-commands:
				handleSoloCommand(ctx, solo, msg)
				push()
			case q := <-entryRolls:
				if solo.Snapshot().Phase == session.PhaseEntry {
					if err := ws.WriteJSON(entryQuestionFrame{Type: "entry-question", Question: q}); err != nil {
						return nil
					}
				}
			case <-ticker.C:
				push()
			case err := <-readErr:
				log.Debug().Err(err).Msg("websocket closed")
				return nil
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func handleSoloCommand(ctx context.Context, solo *session.Solo, msg models.SocketMessage) {
	switch msg.Type {
	case "set-digits":
		if digits, ok := msg.Payload["digits"].(float64); ok {
			solo.SetDigits(int(digits))
		}
	case "set-operators":
		if raw, ok := msg.Payload["operators"].([]any); ok {
			var operators []models.Operator
			for _, op := range raw {
				if s, ok := op.(string); ok {
					operators = append(operators, models.Operator(s))
				}
			}
			solo.SetOperators(operators)
		}
	case "start-game":
		solo.Start(ctx)
	case "submit-answer":
		answer, _ := msg.Payload["answer"].(string)
		solo.SubmitAnswer(answer)
	case "reset-game":
		solo.Reset()
	default:
		log.Debug().Str("type", msg.Type).Msg("unknown client command")
	}
}
