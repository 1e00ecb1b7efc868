package model

import (
	"time"
)

// Session is the bot's own per-chat state: the backend credential plus the
// piece of UI context that must survive a restart. Library entities are never
// persisted here; the backend owns those.
type Session struct {
	ID            uint   `gorm:"primaryKey"`
	ChatID        int64  `gorm:"uniqueIndex;not null"`
	Token         string `gorm:"size:500"`
	Email         string `gorm:"size:255"`
	ActiveGroupID string `gorm:"size:64"`
	ShareToken    string `gorm:"size:128"`
	ChatMode      bool   `gorm:"default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName returns the table name for Session
func (Session) TableName() string {
	return "sessions"
}

// LoggedIn reports whether the chat holds a backend credential
func (s *Session) LoggedIn() bool {
	return s.Token != ""
}

// Watch marks an uploaded video whose processing outcome the chat is waiting
// to hear about. One row per (chat, video).
type Watch struct {
	ID        uint   `gorm:"primaryKey"`
	ChatID    int64  `gorm:"uniqueIndex:idx_chat_video;not null"`
	VideoID   string `gorm:"size:64;uniqueIndex:idx_chat_video;not null"`
	Title     string `gorm:"size:500"`
	CreatedAt time.Time
}

// TableName returns the table name for Watch
func (Watch) TableName() string {
	return "watches"
}
