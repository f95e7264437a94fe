package handlers

import (
	"net/http"
	"time"

	"github.com/f11game/f11api/auth"
	"github.com/f11game/f11api/db"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const refreshTokenCookieName = "mt"

func createRefreshTokenCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    token,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

// AuthMiddleware authenticates the refresh token cookie and stashes the
// caller's identity in the request context.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(refreshTokenCookieName)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Refresh token cookie is missing"})
		}

		claims, err := auth.ValidateToken(cookie.Value, true)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid refresh token"})
		}

		c.Set("userID", claims.UserID)
		c.Set("username", claims.Username)

		return next(c)
	}
}

func RefreshToken(c echo.Context) error {
	cookie, err := c.Cookie(refreshTokenCookieName)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Refresh token cookie is missing"})
	}

	newAccessToken, newRefreshToken, err := auth.RefreshTokens(cookie.Value)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid refresh token"})
	}

	c.SetCookie(createRefreshTokenCookie(newRefreshToken))

	return c.JSON(http.StatusOK, map[string]string{
		"t": newAccessToken,
	})
}

// Login re-issues the token pair off a valid refresh token cookie and
// returns the caller's profile.
func Login(store *db.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(refreshTokenCookieName)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Refresh token cookie is missing"})
		}

		claims, err := auth.ValidateToken(cookie.Value, true)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid refresh token"})
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid refresh token"})
		}

		profile, err := store.GetProfile(c.Request().Context(), userID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve profile"})
		}

		newRefreshToken, err := auth.GenerateRefreshToken(profile.ID.String(), profile.Username)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to generate new refresh token"})
		}
		c.SetCookie(createRefreshTokenCookie(newRefreshToken))

		newAccessToken, err := auth.GenerateAccessToken(profile.ID.String(), profile.Username)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to generate new access token"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"t":        newAccessToken,
			"user_id":  profile.ID,
			"username": profile.Username,
		})
	}
}
