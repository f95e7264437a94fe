package auth

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 30 * 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID   string `json:"ui"`
	Username string `json:"un"`
	jwt.RegisteredClaims
}

func tokenSecret(isRefresh bool) []byte {
	if isRefresh {
		return []byte(os.Getenv("REFRESH_TOKEN_SECRET"))
	}
	return []byte(os.Getenv("ACCESS_TOKEN_SECRET"))
}

func GenerateAccessToken(userID, username string) (string, error) {
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(accessTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tokenSecret(false))
}

func GenerateRefreshToken(userID, username string) (string, error) {
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(refreshTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tokenSecret(true))
}

func ValidateToken(tokenString string, isRefresh bool) (*Claims, error) {
	secret := tokenSecret(isRefresh)

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// RefreshTokens rotates both tokens off a valid refresh token.
func RefreshTokens(refreshTokenString string) (string, string, error) {
	claims, err := ValidateToken(refreshTokenString, true)
	if err != nil {
		return "", "", err
	}

	newAccessToken, err := GenerateAccessToken(claims.UserID, claims.Username)
	if err != nil {
		return "", "", err
	}

	newRefreshToken, err := GenerateRefreshToken(claims.UserID, claims.Username)
	if err != nil {
		return "", "", err
	}

	return newAccessToken, newRefreshToken, nil
}
