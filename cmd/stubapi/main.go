package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/user/vidlib-bot-go/internal/stubapi"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 30 * time.Second
)

// Runs the in-memory development backend the bot talks to when no real
// deployment is around. All state resets on restart.
func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if err := godotenv.Load(); err == nil {
		log.Info().Msg("Loaded .env file")
	}

	cfg, err := stubapi.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	srv := stubapi.NewServer(cfg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Stub backend error")
		}
	}()

	log.Info().
		Int("port", cfg.Port).
		Str("email", stubapi.SeedEmail).
		Str("password", stubapi.SeedPassword).
		Msg("Stub backend ready, log in with the seed account")

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping stub backend")
	} else {
		log.Info().Msg("Stub backend stopped")
	}
}
