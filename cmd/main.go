package main

import (
	"net/http"
	"os"

	"github.com/f11game/f11api/config"
	"github.com/f11game/f11api/db"
	"github.com/f11game/f11api/handlers"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func homePath(c echo.Context) error {
	return c.String(http.StatusOK, "Welcome to Figure It Out Fast")
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()

	store := db.NewStore(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "credentials"},
		AllowCredentials: true,
		ExposeHeaders:    []string{"Set-Cookie", "Access-Control-Allow-Origin"},
	}))

	e.OPTIONS("/*", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	e.GET("/", homePath)
	e.POST("/register", handlers.Register(store))
	e.POST("/login", handlers.Login(store))
	e.POST("/refresh", handlers.RefreshToken)
	e.GET("/rooms", handlers.ListOpenRooms(store))
	e.GET("/solo", handlers.ConnectSolo(store))

	api := e.Group("/v1/api")
	api.Use(handlers.AuthMiddleware)
	api.GET("/me", handlers.GetProfile(store))
	api.GET("/history", handlers.GameHistory(store))
	api.POST("/rooms", handlers.CreateRoom(store))
	api.GET("/rooms/quick-join", handlers.QuickJoin(store))
	api.GET("/rooms/:room_id", handlers.GetRoom(store))
	api.PUT("/rooms/:room_id/config", handlers.UpdateRoomConfig(store))
	api.PUT("/rooms/:room_id/mode", handlers.UpdateRoomMode(store))
	api.GET("/rooms/:room_id/ws", handlers.ConnectToRoom(store))
	api.GET("/solo/ws", handlers.ConnectSolo(store))

	e.Logger.Fatal(e.Start("0.0.0.0:" + cfg.ServerPort))
}
