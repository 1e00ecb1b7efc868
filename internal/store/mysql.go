package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/vidlib-bot-go/internal/config"
	"github.com/user/vidlib-bot-go/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// MySQLStore implements Store interface using MySQL database
type MySQLStore struct {
	db *gorm.DB
}

// NewMySQLStore creates a new MySQL store instance
func NewMySQLStore(cfg *config.DBConfig) (*MySQLStore, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.MaxConns / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Auto migrate tables
	if err := db.AutoMigrate(&model.Session{}, &model.Watch{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

// SaveSession creates or updates the session for a chat. Each chat holds
// at most one row, keyed by chat_id.
func (s *MySQLStore) SaveSession(ctx context.Context, session *model.Session) error {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"token", "email", "active_group_id", "share_token", "chat_mode", "updated_at",
		}),
	}).Create(session)

	if result.Error != nil {
		return fmt.Errorf("failed to save session: %w", result.Error)
	}
	return nil
}

// GetSession retrieves the session for a chat, or nil when none exists
func (s *MySQLStore) GetSession(ctx context.Context, chatID int64) (*model.Session, error) {
	var session model.Session
	result := s.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&session)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", result.Error)
	}
	return &session, nil
}

// DeleteSession removes the session for a chat
func (s *MySQLStore) DeleteSession(ctx context.Context, chatID int64) error {
	result := s.db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&model.Session{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete session: %w", result.Error)
	}
	return nil
}

// GetAllSessions retrieves every stored session
func (s *MySQLStore) GetAllSessions(ctx context.Context) ([]*model.Session, error) {
	var sessions []*model.Session
	result := s.db.WithContext(ctx).Find(&sessions)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", result.Error)
	}
	return sessions, nil
}

// AddWatch records an upload watch. Re-adding the same (chat, video)
// pair is a no-op.
func (s *MySQLStore) AddWatch(ctx context.Context, watch *model.Watch) error {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "video_id"}},
		DoNothing: true,
	}).Create(watch)

	if result.Error != nil {
		return fmt.Errorf("failed to add watch: %w", result.Error)
	}
	return nil
}

// GetWatches retrieves all watches for a chat
func (s *MySQLStore) GetWatches(ctx context.Context, chatID int64) ([]*model.Watch, error) {
	var watches []*model.Watch
	result := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&watches)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get watches: %w", result.Error)
	}
	return watches, nil
}

// GetAllWatches retrieves every open watch across chats
func (s *MySQLStore) GetAllWatches(ctx context.Context) ([]*model.Watch, error) {
	var watches []*model.Watch
	result := s.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&watches)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get all watches: %w", result.Error)
	}
	return watches, nil
}

// DeleteWatch removes one (chat, video) watch
func (s *MySQLStore) DeleteWatch(ctx context.Context, chatID int64, videoID string) error {
	result := s.db.WithContext(ctx).
		Where("chat_id = ? AND video_id = ?", chatID, videoID).
		Delete(&model.Watch{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete watch: %w", result.Error)
	}
	return nil
}

// DeleteWatches removes every watch held by a chat
func (s *MySQLStore) DeleteWatches(ctx context.Context, chatID int64) error {
	result := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Delete(&model.Watch{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete watches: %w", result.Error)
	}
	return nil
}

// Ping checks database connectivity
func (s *MySQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying db: %w", err)
	}
	return sqlDB.Close()
}

// DB returns the underlying gorm.DB instance (for testing purposes)
func (s *MySQLStore) DB() *gorm.DB {
	return s.db
}
