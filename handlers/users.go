package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/f11game/f11api/auth"
	"github.com/f11game/f11api/db"
	"github.com/f11game/f11api/models"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type RegisterRequest struct {
	Username string `json:"username"`
}

// Register creates a profile and issues the initial token pair.
func Register(store *db.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req RegisterRequest
		if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
		}

		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Username is required"})
		}

		profile := &models.Profile{
			ID:       uuid.New(),
			Username: strings.ToLower(req.Username),
		}

		if err := store.CreateProfile(c.Request().Context(), profile); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create profile"})
		}

		refreshToken, err := auth.GenerateRefreshToken(profile.ID.String(), profile.Username)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to generate refresh token"})
		}
		c.SetCookie(createRefreshTokenCookie(refreshToken))

		accessToken, err := auth.GenerateAccessToken(profile.ID.String(), profile.Username)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to generate access token"})
		}

		return c.JSON(http.StatusCreated, map[string]any{
			"t":        accessToken,
			"user_id":  profile.ID,
			"username": profile.Username,
		})
	}
}

// GetProfile returns the authenticated caller's profile.
func GetProfile(store *db.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := uuid.Parse(c.Get("userID").(string))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid user"})
		}

		profile, err := store.GetProfile(c.Request().Context(), userID)
		if err != nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Profile not found"})
		}
		return c.JSON(http.StatusOK, profile)
	}
}

// GameHistory returns the caller's finished games, oldest first.
func GameHistory(store *db.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := uuid.Parse(c.Get("userID").(string))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid user"})
		}

		records, err := store.ListGameRecords(c.Request().Context(), userID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve game history"})
		}
		return c.JSON(http.StatusOK, records)
	}
}
