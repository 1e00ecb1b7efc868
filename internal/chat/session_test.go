package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/user/vidlib-bot-go/internal/model"
)

// fakeBackend answers chat requests deterministically and stores
// per-log feedback the way the server would.
type fakeBackend struct {
	requests    []model.ChatRequest
	sendErr     error
	feedbackErr error
	feedback    map[string]model.Feedback
	history     []model.ChatLogEntry
	historyErr  error
	csv         []byte
	lastLogID   string
}

var _ Backend = (*fakeBackend)(nil)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{feedback: map[string]model.Feedback{}}
}

func (f *fakeBackend) SendChat(ctx context.Context, req model.ChatRequest) (*model.ChatReply, error) {
	f.requests = append(f.requests, req)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.lastLogID = "log-1"
	return &model.ChatReply{
		Content: "The demo starts after the intro.",
		RelatedVideos: []model.RelatedVideo{
			{VideoID: "v1", Title: "Keynote", StartTime: "00:01:30"},
		},
		LogID: f.lastLogID,
	}, nil
}

func (f *fakeBackend) SendChatFeedback(ctx context.Context, logID string, value model.Feedback) (*model.FeedbackResult, error) {
	if f.feedbackErr != nil {
		return nil, f.feedbackErr
	}
	f.feedback[logID] = value
	return &model.FeedbackResult{LogID: logID, Feedback: value}, nil
}

func (f *fakeBackend) ChatHistory(ctx context.Context, groupID string) ([]model.ChatLogEntry, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

func (f *fakeBackend) ExportChatHistory(ctx context.Context, groupID string) ([]byte, error) {
	return f.csv, nil
}

func TestSession_SendAppendsBothSides(t *testing.T) {
	backend := newFakeBackend()
	s := NewSession(backend, "g1", "https://app.example")

	msg, err := s.Send(context.Background(), "where does the demo start?")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if msg.Role != model.RoleAssistant || msg.LogID != "log-1" {
		t.Errorf("reply = %+v, want assistant message with log id", msg)
	}
	if len(msg.RelatedVideos) != 1 {
		t.Errorf("citations = %d, want 1", len(msg.RelatedVideos))
	}

	transcript := s.Messages()
	if len(transcript) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(transcript))
	}
	if transcript[0].Role != model.RoleUser || transcript[0].Content != "where does the demo start?" {
		t.Errorf("transcript[0] = %+v, want the user echo", transcript[0])
	}
	if transcript[1].Role != model.RoleAssistant {
		t.Errorf("transcript[1] = %+v, want the assistant reply", transcript[1])
	}
}

func TestSession_SendCarriesOnlyLatestMessage(t *testing.T) {
	backend := newFakeBackend()
	s := NewSession(backend, "g1", "https://app.example")

	s.Send(context.Background(), "first question")
	s.Send(context.Background(), "second question")

	if len(backend.requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(backend.requests))
	}
	last := backend.requests[1]
	if last.Message != "second question" {
		t.Errorf("request message = %q, want only the latest text", last.Message)
	}
	if last.GroupID != "g1" || last.ShareToken != "" {
		t.Errorf("request context = %+v, want group context", last)
	}
}

func TestSession_SendEmptyRejectedLocally(t *testing.T) {
	backend := newFakeBackend()
	s := NewSession(backend, "g1", "https://app.example")

	if _, err := s.Send(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("Send() error = %v, want ErrEmptyMessage", err)
	}
	if len(backend.requests) != 0 {
		t.Errorf("requests = %d, want 0", len(backend.requests))
	}
	if len(s.Messages()) != 0 {
		t.Errorf("transcript = %v, want empty", s.Messages())
	}
}

func TestSession_SendFailureAppendsInlineError(t *testing.T) {
	backend := newFakeBackend()
	backend.sendErr = errors.New("backend down")
	s := NewSession(backend, "g1", "https://app.example")

	msg, err := s.Send(context.Background(), "hello?")
	if !errors.Is(err, backend.sendErr) {
		t.Fatalf("Send() error = %v, want %v", err, backend.sendErr)
	}
	if !msg.IsError || msg.Role != model.RoleAssistant {
		t.Errorf("reply = %+v, want assistant-role error entry", msg)
	}

	transcript := s.Messages()
	if len(transcript) != 2 {
		t.Fatalf("transcript length = %d, want user echo + error entry", len(transcript))
	}
	if !transcript[1].IsError {
		t.Error("transcript[1].IsError = false, want true")
	}
	// One request only: failures are not retried.
	if len(backend.requests) != 1 {
		t.Errorf("requests = %d, want 1", len(backend.requests))
	}
}

func TestSession_ShareContextCarriesToken(t *testing.T) {
	backend := newFakeBackend()
	s := NewSharedSession(backend, "tok-9", "https://app.example")

	s.Send(context.Background(), "q")

	req := backend.requests[0]
	if req.ShareToken != "tok-9" || req.GroupID != "" {
		t.Errorf("request = %+v, want share-token context", req)
	}
	if !s.Shared() {
		t.Error("Shared() = false, want true")
	}
}

func TestSession_ToggleFeedbackCycle(t *testing.T) {
	backend := newFakeBackend()
	s := NewSession(backend, "g1", "https://app.example")
	s.Send(context.Background(), "q")

	// none -> good
	got, err := s.ToggleFeedback(context.Background(), "log-1", model.FeedbackGood)
	if err != nil {
		t.Fatalf("ToggleFeedback() error = %v", err)
	}
	if got != model.FeedbackGood {
		t.Errorf("feedback = %q, want good", got)
	}

	// good -> clicking good again clears
	got, _ = s.ToggleFeedback(context.Background(), "log-1", model.FeedbackGood)
	if got != model.FeedbackNone {
		t.Errorf("feedback = %q, want cleared", got)
	}

	// none -> bad, then good replaces bad without stacking
	s.ToggleFeedback(context.Background(), "log-1", model.FeedbackBad)
	got, _ = s.ToggleFeedback(context.Background(), "log-1", model.FeedbackGood)
	if got != model.FeedbackGood {
		t.Errorf("feedback = %q, want good after switching from bad", got)
	}

	transcript := s.Messages()
	if transcript[1].Feedback != model.FeedbackGood {
		t.Errorf("transcript feedback = %q, want good", transcript[1].Feedback)
	}
}

func TestSession_ToggleFeedbackPatchesHistory(t *testing.T) {
	backend := newFakeBackend()
	backend.history = []model.ChatLogEntry{
		{LogID: "log-7", Question: "q", Answer: "a", Feedback: model.FeedbackNone},
	}
	s := NewSession(backend, "g1", "https://app.example")

	if _, err := s.History(context.Background()); err != nil {
		t.Fatalf("History() error = %v", err)
	}

	if _, err := s.ToggleFeedback(context.Background(), "log-7", model.FeedbackBad); err != nil {
		t.Fatalf("ToggleFeedback() error = %v", err)
	}

	// The loaded history is patched in place; reloading is not needed.
	s.mu.Lock()
	got := s.history[0].Feedback
	s.mu.Unlock()
	if got != model.FeedbackBad {
		t.Errorf("history feedback = %q, want bad", got)
	}
}

func TestSession_ToggleFeedbackFailureLeavesState(t *testing.T) {
	backend := newFakeBackend()
	s := NewSession(backend, "g1", "https://app.example")
	s.Send(context.Background(), "q")
	s.ToggleFeedback(context.Background(), "log-1", model.FeedbackGood)

	backend.feedbackErr = errors.New("backend down")
	got, err := s.ToggleFeedback(context.Background(), "log-1", model.FeedbackBad)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if got != model.FeedbackGood {
		t.Errorf("feedback = %q, want unchanged good", got)
	}
	if s.Messages()[1].Feedback != model.FeedbackGood {
		t.Errorf("transcript feedback changed on failure")
	}
}

func TestSession_OpenCitationSeeksInPage(t *testing.T) {
	s := NewSession(newFakeBackend(), "g1", "https://app.example")

	var gotVideo string
	var gotSeconds int
	s.OnSeek = func(videoID string, seconds int) {
		gotVideo = videoID
		gotSeconds = seconds
	}

	link := s.OpenCitation(model.RelatedVideo{VideoID: "v1", StartTime: "00:01:30"})
	if link != "" {
		t.Errorf("link = %q, want empty when OnSeek handles it", link)
	}
	if gotVideo != "v1" || gotSeconds != 90 {
		t.Errorf("seek = (%q, %d), want (v1, 90)", gotVideo, gotSeconds)
	}
}

func TestSession_OpenCitationDeepLinks(t *testing.T) {
	s := NewSession(newFakeBackend(), "g1", "https://app.example")

	link := s.OpenCitation(model.RelatedVideo{VideoID: "v1", StartTime: "01:30"})
	if link != "https://app.example/videos/v1?t=90" {
		t.Errorf("link = %q, want group-context deep link", link)
	}

	shared := NewSharedSession(newFakeBackend(), "tok-9", "https://app.example")
	link = shared.OpenCitation(model.RelatedVideo{VideoID: "v1", StartTime: "01:30"})
	if link != "https://app.example/share/tok-9?t=90&v=v1" {
		t.Errorf("link = %q, want share-context deep link", link)
	}
}

func TestSession_ExportCSV(t *testing.T) {
	backend := newFakeBackend()
	backend.csv = []byte("question,answer\nq,a\n")
	s := NewSession(backend, "g1", "https://app.example")

	data, err := s.ExportCSV(context.Background())
	if err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}
	if string(data) != "question,answer\nq,a\n" {
		t.Errorf("csv = %q", data)
	}
}
