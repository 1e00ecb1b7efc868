package store

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/user/vidlib-bot-go/internal/config"
	"github.com/user/vidlib-bot-go/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestStore connects to a local MySQL test database, skipping the
// test when none is reachable.
func setupTestStore(t *testing.T) (*MySQLStore, func()) {
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		host = "localhost"
	}
	user := os.Getenv("TEST_DB_USER")
	if user == "" {
		user = "root"
	}
	password := os.Getenv("TEST_DB_PASSWORD")
	if password == "" {
		password = "root"
	}
	database := os.Getenv("TEST_DB_NAME")
	if database == "" {
		database = "vidlib_bot_test"
	}

	cfg := &config.DBConfig{
		Host:     host,
		Port:     3306,
		User:     user,
		Password: password,
		Database: database,
		MaxConns: 5,
	}

	// First connect without a database to create it if needed
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User, cfg.Password, cfg.Host, cfg.Port)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("Skipping test: cannot connect to MySQL: %v", err)
	}

	db.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database))
	sqlDB, _ := db.DB()
	sqlDB.Close()

	store, err := NewMySQLStore(cfg)
	if err != nil {
		t.Skipf("Skipping test: cannot create store: %v", err)
	}

	cleanup := func() {
		store.db.Exec("DELETE FROM watches")
		store.db.Exec("DELETE FROM sessions")
		store.Close()
	}
	return store, cleanup
}

func TestMySQLStore_SessionUpsert(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.SaveSession(ctx, &model.Session{ChatID: 42, Token: "first"}); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	if err := store.SaveSession(ctx, &model.Session{ChatID: 42, Token: "second", ChatMode: true}); err != nil {
		t.Fatalf("SaveSession() upsert error = %v", err)
	}

	got, err := store.GetSession(ctx, 42)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got == nil || got.Token != "second" || !got.ChatMode {
		t.Errorf("GetSession() = %+v, want upserted row", got)
	}

	var count int64
	store.db.Model(&model.Session{}).Where("chat_id = ?", 42).Count(&count)
	if count != 1 {
		t.Errorf("session rows = %d, want exactly 1", count)
	}
}

func TestMySQLStore_SessionMissing(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	got, err := store.GetSession(context.Background(), 99999)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetSession() = %+v, want nil for unknown chat", got)
	}
}

func TestMySQLStore_WatchDeduplication(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.AddWatch(ctx, &model.Watch{ChatID: 42, VideoID: "v1", Title: "Demo"}); err != nil {
		t.Fatalf("AddWatch() error = %v", err)
	}
	if err := store.AddWatch(ctx, &model.Watch{ChatID: 42, VideoID: "v1", Title: "Demo"}); err != nil {
		t.Fatalf("AddWatch() duplicate error = %v", err)
	}

	watches, err := store.GetWatches(ctx, 42)
	if err != nil {
		t.Fatalf("GetWatches() error = %v", err)
	}
	if len(watches) != 1 {
		t.Errorf("watches = %d, want 1 after duplicate add", len(watches))
	}
}

func TestMySQLStore_LogoutClearsSessionAndWatches(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	store.SaveSession(ctx, &model.Session{ChatID: 42, Token: "tok"})
	store.AddWatch(ctx, &model.Watch{ChatID: 42, VideoID: "v1"})
	store.AddWatch(ctx, &model.Watch{ChatID: 42, VideoID: "v2"})

	if err := store.DeleteSession(ctx, 42); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if err := store.DeleteWatches(ctx, 42); err != nil {
		t.Fatalf("DeleteWatches() error = %v", err)
	}

	session, _ := store.GetSession(ctx, 42)
	if session != nil {
		t.Errorf("session = %+v, want nil after logout", session)
	}
	watches, _ := store.GetWatches(ctx, 42)
	if len(watches) != 0 {
		t.Errorf("watches = %d, want 0 after logout", len(watches))
	}
}

func TestMySQLStore_Ping(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
