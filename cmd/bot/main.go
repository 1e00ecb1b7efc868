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

	"github.com/user/vidlib-bot-go/internal/api"
	"github.com/user/vidlib-bot-go/internal/bot"
	"github.com/user/vidlib-bot-go/internal/config"
	"github.com/user/vidlib-bot-go/internal/linkmeta"
	"github.com/user/vidlib-bot-go/internal/push"
	"github.com/user/vidlib-bot-go/internal/server"
	"github.com/user/vidlib-bot-go/internal/store"
	"github.com/user/vidlib-bot-go/internal/watch"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 30 * time.Second
)

func main() {
	// Initialize structured JSON logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	// A local .env is optional; real deployments set the environment.
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("Loaded .env file")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	// Create root context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the session store. Without DB_HOST sessions live in
	// memory and every restart logs all chats out.
	var sessionStore store.Store
	if cfg.DB.InMemory() {
		sessionStore = store.NewMemoryStore()
		log.Warn().Msg("No DB_HOST set, using in-memory session store")
	} else {
		mysqlStore, err := store.NewMySQLStore(&cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		sessionStore = mysqlStore
		log.Info().Msg("Database connection established")
	}

	// Initialize the backend API client
	apiClient := api.New(&api.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		UserAgent: cfg.API.UserAgent,
	})
	apiClient.OnRequest = server.RecordAPIRequest
	log.Info().Str("baseURL", cfg.API.BaseURL).Msg("API client initialized")

	// Initialize Telegram client
	telegramClient, err := bot.NewClient(cfg.Bot.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Telegram client")
	}
	log.Info().Msg("Telegram client initialized")

	// Initialize push service
	pushService := push.NewService(telegramClient, cfg.Web.BaseURL)
	log.Info().Msg("Push service initialized")

	// Link previews for /import
	linkFetcher := linkmeta.NewFetcher(cfg.API.Timeout, cfg.API.UserAgent)

	// Initialize bot handler
	username := telegramClient.Username()
	if username == "" {
		username = cfg.Bot.Username
	}
	botHandler := bot.NewHandler(sessionStore, apiClient, telegramClient, linkFetcher, &bot.Config{
		Username:       username,
		WebBaseURL:     cfg.Web.BaseURL,
		SearchDebounce: cfg.Bot.SearchDebounce,
		ScenesTTL:      cfg.API.ScenesTTL,
		PlansTTL:       cfg.API.PlansTTL,
		MaxRetries:     cfg.API.MaxRetries,
	})
	log.Info().Str("username", username).Msg("Bot handler initialized")

	// Initialize the upload status watcher
	watcher := watch.NewWatcher(sessionStore, apiClient, pushService, &watch.Config{
		Enabled:      cfg.Watch.Enabled,
		Interval:     cfg.Watch.Interval,
		InitialDelay: cfg.Watch.InitialDelay,
	})

	// Initialize HTTP server for health and metrics
	httpServer := server.NewServer(sessionStore, apiClient)

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server in goroutine
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.Start(cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Start the watcher
	watcher.Start(ctx)
	log.Info().Msg("Upload watcher started")

	// Start Telegram bot polling in goroutine
	go func() {
		log.Info().Msg("Starting Telegram bot polling")
		updates := telegramClient.GetUpdates()
		for update := range updates {
			botHandler.HandleUpdate(ctx, update)
		}
	}()

	log.Info().Msg("VidLib Bot started successfully")

	// Wait for shutdown signal
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	// Graceful shutdown sequence
	log.Info().Msg("Starting graceful shutdown...")

	// 1. Stop the watcher from starting new poll cycles
	watcher.Stop()
	log.Info().Msg("Upload watcher stopped")

	// 2. Stop Telegram bot polling
	telegramClient.StopReceivingUpdates()
	log.Info().Msg("Telegram bot polling stopped")

	// 3. Stop HTTP server
	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping HTTP server")
	} else {
		log.Info().Msg("HTTP server stopped")
	}

	// 4. Close the session store
	if err := sessionStore.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing session store")
	} else {
		log.Info().Msg("Session store closed")
	}

	// Cancel root context
	cancel()

	// Check if shutdown completed within timeout
	select {
	case <-shutdownCtx.Done():
		if shutdownCtx.Err() == context.DeadlineExceeded {
			log.Warn().Msg("Shutdown timeout exceeded, forcing exit")
		}
	default:
		log.Info().Msg("Graceful shutdown completed")
	}
}
