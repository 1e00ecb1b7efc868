package store

import (
	"context"

	"github.com/user/vidlib-bot-go/internal/model"
)

// Store defines the interface for the bot's own persistence: backend
// sessions and upload watches. Library entities (videos, groups, chat
// logs) are never stored here; the backend owns those.
type Store interface {
	// Session operations
	SaveSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, chatID int64) (*model.Session, error)
	DeleteSession(ctx context.Context, chatID int64) error
	GetAllSessions(ctx context.Context) ([]*model.Session, error)

	// Watch operations
	AddWatch(ctx context.Context, watch *model.Watch) error
	GetWatches(ctx context.Context, chatID int64) ([]*model.Watch, error)
	GetAllWatches(ctx context.Context) ([]*model.Watch, error)
	DeleteWatch(ctx context.Context, chatID int64, videoID string) error
	DeleteWatches(ctx context.Context, chatID int64) error

	// Health check
	Ping(ctx context.Context) error
	Close() error
}
