package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/user/vidlib-bot-go/internal/model"
)

// ErrEmptyMessage rejects a blank question before any request is sent.
var ErrEmptyMessage = errors.New("empty chat message")

// errorReplyContent is appended as an inline assistant-role message when
// a chat request fails. There is no automatic retry.
const errorReplyContent = "Something went wrong answering that. Please try again."

// Backend is the slice of the API client the session needs.
type Backend interface {
	SendChat(ctx context.Context, req model.ChatRequest) (*model.ChatReply, error)
	SendChatFeedback(ctx context.Context, logID string, value model.Feedback) (*model.FeedbackResult, error)
	ChatHistory(ctx context.Context, groupID string) ([]model.ChatLogEntry, error)
	ExportChatHistory(ctx context.Context, groupID string) ([]byte, error)
}

// Session is one chat transcript bound to either a group (authenticated)
// or a share token (public). The user's message is echoed into the
// transcript before the network call; the backend holds prior turns, so
// each request carries only the latest text plus context.
type Session struct {
	// OnSeek, when set, handles citation opens in-page instead of a
	// deep link.
	OnSeek func(videoID string, seconds int)

	backend    Backend
	groupID    string
	shareToken string
	webBase    string

	mu       sync.Mutex
	messages []model.ChatMessage
	history  []model.ChatLogEntry
}

// NewSession opens a chat bound to a group the user owns.
func NewSession(backend Backend, groupID, webBase string) *Session {
	return &Session{backend: backend, groupID: groupID, webBase: webBase}
}

// NewSharedSession opens a chat bound to a public share token.
func NewSharedSession(backend Backend, shareToken, webBase string) *Session {
	return &Session{backend: backend, shareToken: shareToken, webBase: webBase}
}

// GroupID returns the bound group id, empty in share context.
func (s *Session) GroupID() string {
	return s.groupID
}

// Shared reports whether the session runs in public share context.
func (s *Session) Shared() bool {
	return s.shareToken != ""
}

// Send submits one question and returns the assistant message appended to
// the transcript. On failure that message is an inline error entry and
// the send error is returned alongside it.
func (s *Session) Send(ctx context.Context, text string) (model.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.ChatMessage{}, ErrEmptyMessage
	}

	// Optimistic echo: the question shows up before the network call.
	s.append(model.ChatMessage{Role: model.RoleUser, Content: text})

	reply, err := s.backend.SendChat(ctx, model.ChatRequest{
		Message:    text,
		GroupID:    s.groupID,
		ShareToken: s.shareToken,
	})
	if err != nil {
		log.Warn().Err(err).Str("group", s.groupID).Msg("Chat request failed")
		msg := model.ChatMessage{
			Role:    model.RoleAssistant,
			Content: errorReplyContent,
			IsError: true,
		}
		s.append(msg)
		return msg, err
	}

	msg := model.ChatMessage{
		Role:          model.RoleAssistant,
		Content:       reply.Content,
		RelatedVideos: reply.RelatedVideos,
		LogID:         reply.LogID,
	}
	s.append(msg)
	return msg, nil
}

// ToggleFeedback flips the rating on one answer: clicking the active
// value clears it, any other click sets the clicked value. The
// server-confirmed state is patched into the transcript and any loaded
// history. Failures leave local state untouched; feedback is best-effort.
func (s *Session) ToggleFeedback(ctx context.Context, logID string, value model.Feedback) (model.Feedback, error) {
	current := s.feedbackOf(logID)
	next := value
	if current == value {
		next = model.FeedbackNone
	}

	res, err := s.backend.SendChatFeedback(ctx, logID, next)
	if err != nil {
		log.Warn().Err(err).Str("logId", logID).Msg("Feedback update failed")
		return current, err
	}

	s.patchFeedback(logID, res.Feedback)
	return res.Feedback, nil
}

// OpenCitation resolves a citation click. With an OnSeek handler set the
// seek happens in-page and the returned link is empty; otherwise the
// deep link for the bound context is returned.
func (s *Session) OpenCitation(rv model.RelatedVideo) string {
	seconds := ParseTimestamp(rv.StartTime)
	if s.OnSeek != nil {
		s.OnSeek(rv.VideoID, seconds)
		return ""
	}
	if s.shareToken != "" {
		return ShareWatchLink(s.webBase, s.shareToken, rv.VideoID, seconds)
	}
	return WatchLink(s.webBase, rv.VideoID, seconds)
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []model.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ChatMessage(nil), s.messages...)
}

// History loads the persisted exchanges for the bound group and keeps
// them for feedback patching.
func (s *Session) History(ctx context.Context) ([]model.ChatLogEntry, error) {
	entries, err := s.backend.ChatHistory(ctx, s.groupID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.history = entries
	out := append([]model.ChatLogEntry(nil), entries...)
	s.mu.Unlock()
	return out, nil
}

// ExportCSV returns the bound group's chat log as CSV bytes.
func (s *Session) ExportCSV(ctx context.Context) ([]byte, error) {
	return s.backend.ExportChatHistory(ctx, s.groupID)
}

func (s *Session) append(msg model.ChatMessage) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

func (s *Session) feedbackOf(logID string) model.Feedback {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].LogID == logID {
			return s.messages[i].Feedback
		}
	}
	for _, e := range s.history {
		if e.LogID == logID {
			return e.Feedback
		}
	}
	return model.FeedbackNone
}

func (s *Session) patchFeedback(logID string, value model.Feedback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].LogID == logID {
			s.messages[i].Feedback = value
		}
	}
	for i := range s.history {
		if s.history[i].LogID == logID {
			s.history[i].Feedback = value
		}
	}
}
