// Package push formats and delivers Telegram notifications about watched
// uploads, pacing sends against the global Telegram rate limit.
package push

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/user/vidlib-bot-go/internal/model"
	"golang.org/x/time/rate"
)

// TelegramClient defines the interface for sending Telegram messages
type TelegramClient interface {
	SendMessage(chatID int64, text string) error
	SendMarkdown(chatID int64, text string) error
}

// Service delivers upload-status notifications to chats
type Service struct {
	telegram TelegramClient
	webBase  string
	limiter  *rate.Limiter // Telegram rate limit: max 30 msg/sec globally
}

// NewService creates a new push service. webBase is the web player root
// used for deep links in notifications.
func NewService(telegram TelegramClient, webBase string) *Service {
	return &Service{
		telegram: telegram,
		webBase:  webBase,
		// Telegram rate limit: 30 messages per second globally
		limiter: rate.NewLimiter(rate.Limit(30), 1),
	}
}

// VideoReady notifies a chat that one of its watched uploads reached a
// terminal status. The send waits on the global rate limiter first.
func (s *Service) VideoReady(ctx context.Context, chatID int64, video *model.Video) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	message := FormatVideoReady(video, s.webBase)
	if err := s.telegram.SendMarkdown(chatID, message); err != nil {
		log.Error().
			Err(err).
			Int64("chatId", chatID).
			Str("videoId", video.ID).
			Msg("Failed to send upload notification")
		return err
	}

	log.Info().
		Int64("chatId", chatID).
		Str("videoId", video.ID).
		Str("status", string(video.Status)).
		Msg("Upload notification delivered")
	return nil
}
