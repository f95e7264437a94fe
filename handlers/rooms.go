package handlers

import (
	"errors"
	"math/rand"
	"net/http"

	"github.com/f11game/f11api/db"
	"github.com/f11game/f11api/models"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type CreateRoomRequest struct {
	Mode          models.Mode        `json:"mode"`
	Configuration *models.RoomConfig `json:"configuration"`
}

// CreateRoom opens a room owned by the caller. Mode and configuration are
// optional and default to a time-based two-digit addition game.
func CreateRoom(store *db.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, username, ok := identity(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid user"})
		}

		var req CreateRoomRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
		}

		room := &models.Room{
			ID:    uuid.New(),
			Owner: userID,
			Mode:  models.ModeTimeBased,
			Configuration: models.RoomConfig{
				Digits:    2,
				Operators: []models.Operator{models.OperatorAdd},
			},
		}
		if req.Mode != "" {
			room.Mode = req.Mode
		}
		if req.Configuration != nil {
			room.Configuration = *req.Configuration
		}

		if err := store.CreateRoom(c.Request().Context(), room, username); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create room"})
		}
		return c.JSON(http.StatusCreated, room)
	}
}

// GetRoom returns a room and its roster.
func GetRoom(store *db.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		roomID, err := uuid.Parse(c.Param("room_id"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid room ID"})
		}

		room, players, err := store.GetRoom(c.Request().Context(), roomID)
		if errors.Is(err, db.ErrRoomNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Room not found"})
		}
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve room"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"room":    room,
			"players": players,
		})
	}
}

// ListOpenRooms returns the IDs of rooms accepting members.
func ListOpenRooms(store *db.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		ids, err := store.ListOpenRooms(c.Request().Context())
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list rooms"})
		}
		return c.JSON(http.StatusOK, map[string]any{"rooms": ids})
	}
}

// QuickJoin picks a random open room for the caller. The membership row is
// inserted when the caller connects to the room, not here.
func QuickJoin(store *db.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		ids, err := store.ListOpenRooms(c.Request().Context())
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list rooms"})
		}
		if len(ids) == 0 {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "No open rooms"})
		}
		return c.JSON(http.StatusOK, map[string]any{"room_id": ids[rand.Intn(len(ids))]})
	}
}

type UpdateConfigRequest struct {
	Digits    int               `json:"digits"`
	Operators []models.Operator `json:"operators"`
}

// UpdateRoomConfig applies an owner's configuration change; the store fans
// it out to every member.
func UpdateRoomConfig(store *db.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, _, ok := identity(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid user"})
		}
		roomID, err := uuid.Parse(c.Param("room_id"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid room ID"})
		}

		var req UpdateConfigRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
		}

		err = store.UpdateRoomConfig(c.Request().Context(), roomID, userID, models.RoomConfig{
			Digits:    req.Digits,
			Operators: req.Operators,
		})
		return roomMutationResponse(c, err)
	}
}

type UpdateModeRequest struct {
	Mode models.Mode `json:"mode"`
}

func UpdateRoomMode(store *db.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, _, ok := identity(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid user"})
		}
		roomID, err := uuid.Parse(c.Param("room_id"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid room ID"})
		}

		var req UpdateModeRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
		}
		if req.Mode != models.ModeTimeBased && req.Mode != models.ModeFastestFirst {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown mode"})
		}

		err = store.UpdateRoomMode(c.Request().Context(), roomID, userID, req.Mode)
		return roomMutationResponse(c, err)
	}
}

func roomMutationResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, db.ErrRoomNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Room not found"})
	case errors.Is(err, db.ErrNotOwner):
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Only the room owner can do that"})
	case err != nil:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Room updated"})
}

// identity pulls the authenticated caller out of the request context.
func identity(c echo.Context) (uuid.UUID, string, bool) {
	rawID, ok := c.Get("userID").(string)
	if !ok {
		return uuid.Nil, "", false
	}
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, "", false
	}
	username, _ := c.Get("username").(string)
	return userID, username, true
}
