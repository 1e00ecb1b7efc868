package store

import (
	"context"
	"testing"

	"github.com/user/vidlib-bot-go/internal/model"
)

func TestMemoryStore_SessionLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	got, err := s.GetSession(ctx, 100)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetSession() = %+v, want nil before save", got)
	}

	session := &model.Session{ChatID: 100, Token: "tok", Email: "dev@example.com"}
	if err := s.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	got, err = s.GetSession(ctx, 100)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got == nil || got.Token != "tok" || !got.LoggedIn() {
		t.Errorf("GetSession() = %+v, want stored logged-in session", got)
	}

	if err := s.DeleteSession(ctx, 100); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	got, _ = s.GetSession(ctx, 100)
	if got != nil {
		t.Errorf("GetSession() after delete = %+v, want nil", got)
	}
}

func TestMemoryStore_SaveSessionUpserts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.SaveSession(ctx, &model.Session{ChatID: 100, Token: "old"})
	s.SaveSession(ctx, &model.Session{ChatID: 100, Token: "new", ActiveGroupID: "g1", ChatMode: true})

	got, _ := s.GetSession(ctx, 100)
	if got.Token != "new" || got.ActiveGroupID != "g1" || !got.ChatMode {
		t.Errorf("GetSession() = %+v, want updated fields", got)
	}

	sessions, err := s.GetAllSessions(ctx)
	if err != nil {
		t.Fatalf("GetAllSessions() error = %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("sessions = %d, want 1 (upsert, not insert)", len(sessions))
	}
}

func TestMemoryStore_WatchDeduplication(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.AddWatch(ctx, &model.Watch{ChatID: 100, VideoID: "v1", Title: "Demo"})
	s.AddWatch(ctx, &model.Watch{ChatID: 100, VideoID: "v1", Title: "Demo again"})
	s.AddWatch(ctx, &model.Watch{ChatID: 100, VideoID: "v2"})
	s.AddWatch(ctx, &model.Watch{ChatID: 200, VideoID: "v1"})

	watches, err := s.GetWatches(ctx, 100)
	if err != nil {
		t.Fatalf("GetWatches() error = %v", err)
	}
	if len(watches) != 2 {
		t.Errorf("watches for chat 100 = %d, want 2", len(watches))
	}

	all, err := s.GetAllWatches(ctx)
	if err != nil {
		t.Fatalf("GetAllWatches() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all watches = %d, want 3", len(all))
	}
}

func TestMemoryStore_DeleteWatch(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.AddWatch(ctx, &model.Watch{ChatID: 100, VideoID: "v1"})
	s.AddWatch(ctx, &model.Watch{ChatID: 100, VideoID: "v2"})

	if err := s.DeleteWatch(ctx, 100, "v1"); err != nil {
		t.Fatalf("DeleteWatch() error = %v", err)
	}

	watches, _ := s.GetWatches(ctx, 100)
	if len(watches) != 1 || watches[0].VideoID != "v2" {
		t.Errorf("watches = %+v, want only v2", watches)
	}
}

func TestMemoryStore_DeleteWatchesClearsChat(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.AddWatch(ctx, &model.Watch{ChatID: 100, VideoID: "v1"})
	s.AddWatch(ctx, &model.Watch{ChatID: 100, VideoID: "v2"})
	s.AddWatch(ctx, &model.Watch{ChatID: 200, VideoID: "v3"})

	if err := s.DeleteWatches(ctx, 100); err != nil {
		t.Fatalf("DeleteWatches() error = %v", err)
	}

	watches, _ := s.GetWatches(ctx, 100)
	if len(watches) != 0 {
		t.Errorf("watches for chat 100 = %d, want 0", len(watches))
	}
	other, _ := s.GetWatches(ctx, 200)
	if len(other) != 1 {
		t.Errorf("watches for chat 200 = %d, want 1 untouched", len(other))
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.SaveSession(ctx, &model.Session{ChatID: 100, Token: "tok"})
	got, _ := s.GetSession(ctx, 100)
	got.Token = "mutated"

	again, _ := s.GetSession(ctx, 100)
	if again.Token != "tok" {
		t.Errorf("stored session mutated through returned pointer")
	}
}
