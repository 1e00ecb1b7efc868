package push

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/user/vidlib-bot-go/internal/model"
)

type fakeTelegram struct {
	markdown []struct {
		chatID int64
		text   string
	}
	err error
}

func (f *fakeTelegram) SendMessage(chatID int64, text string) error {
	return f.err
}

func (f *fakeTelegram) SendMarkdown(chatID int64, text string) error {
	if f.err != nil {
		return f.err
	}
	f.markdown = append(f.markdown, struct {
		chatID int64
		text   string
	}{chatID, text})
	return nil
}

func TestService_VideoReady(t *testing.T) {
	tg := &fakeTelegram{}
	svc := NewService(tg, "https://app.vidlib.example")

	video := &model.Video{ID: "vid1", Title: "Talk", Status: model.StatusCompleted, Transcript: "t"}
	if err := svc.VideoReady(context.Background(), 42, video); err != nil {
		t.Fatalf("VideoReady() error = %v", err)
	}

	if len(tg.markdown) != 1 {
		t.Fatalf("sent %d messages, want 1", len(tg.markdown))
	}
	if tg.markdown[0].chatID != 42 {
		t.Errorf("chatID = %d, want 42", tg.markdown[0].chatID)
	}
	if !strings.Contains(tg.markdown[0].text, "Talk") {
		t.Errorf("message %q missing title", tg.markdown[0].text)
	}
}

func TestService_VideoReadySendFailure(t *testing.T) {
	tg := &fakeTelegram{err: errors.New("telegram down")}
	svc := NewService(tg, "")

	video := &model.Video{ID: "vid1", Title: "Talk", Status: model.StatusError}
	if err := svc.VideoReady(context.Background(), 42, video); err == nil {
		t.Fatal("expected send error, got nil")
	}
}

func TestService_VideoReadyCancelledContext(t *testing.T) {
	tg := &fakeTelegram{}
	svc := NewService(tg, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	video := &model.Video{ID: "vid1", Title: "Talk", Status: model.StatusCompleted}
	if err := svc.VideoReady(ctx, 42, video); err == nil {
		t.Fatal("expected limiter error for cancelled context, got nil")
	}
	if len(tg.markdown) != 0 {
		t.Errorf("sent %d messages, want 0 after cancellation", len(tg.markdown))
	}
}
