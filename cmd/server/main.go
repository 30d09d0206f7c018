package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lobby/internal/config"
	"lobby/internal/game"
	"lobby/internal/game/tictactoe"
	"lobby/internal/room"
	"lobby/internal/server"
	"lobby/internal/storage"
)

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}
	logger := newLogger(cfg.Log)
	log.Logger = logger

	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Storage.Path).Msg("open history database")
	}
	rec := storage.NewRecorder(store, cfg.Storage.Buffer, logger)

	games := game.NewRegistry()
	games.Register(tictactoe.TicTacToe{})

	rooms := room.NewRegistry(room.WithMaxPlayers(cfg.Rooms.MaxPlayers))

	var web fs.FS
	if cfg.Server.WebDir != "" {
		web = os.DirFS(cfg.Server.WebDir)
	}

	lobby := server.New(rooms, games, server.Options{
		Logger:         logger,
		History:        rec,
		Store:          store,
		WebFS:          web,
		PingInterval:   cfg.Server.PingInterval,
		SendBuffer:     cfg.Server.SendBuffer,
		ReadLimit:      cfg.Server.ReadLimit,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           lobby,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Int("max_players", cfg.Rooms.MaxPlayers).
			Str("storage", cfg.Storage.Path).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Websocket connections are hijacked, so http.Server.Shutdown does not
	// close them; the lobby disconnects them itself.
	lobby.Shutdown()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	rec.Close()
	if err := store.Close(); err != nil {
		logger.Error().Err(err).Msg("close history database")
	}
	logger.Info().Msg("stopped")
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
