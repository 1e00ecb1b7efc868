package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/user/vidlib-bot-go/internal/model"
)

// SendChat asks the LLM about the bound context. The request carries only
// the latest user message; prior turns live server-side in the chat log.
// A client bound via WithShareToken fills the share context automatically.
func (c *Client) SendChat(ctx context.Context, req model.ChatRequest) (*model.ChatReply, error) {
	if req.GroupID == "" && req.ShareToken == "" {
		req.ShareToken = c.shareToken
	}

	var out model.ChatReply
	if err := c.do(ctx, http.MethodPost, "/api/chat", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendChatFeedback sets or clears the feedback on one logged exchange.
// value FeedbackNone clears. The server echoes the stored value back.
func (c *Client) SendChatFeedback(ctx context.Context, logID string, value model.Feedback) (*model.FeedbackResult, error) {
	body := struct {
		LogID      string         `json:"logId"`
		Feedback   model.Feedback `json:"feedback"`
		ShareToken string         `json:"shareToken,omitempty"`
	}{
		LogID:      logID,
		Feedback:   value,
		ShareToken: c.shareToken,
	}

	var out model.FeedbackResult
	if err := c.do(ctx, http.MethodPost, "/api/chat/feedback", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChatHistory returns the stored exchanges for a group, oldest first.
func (c *Client) ChatHistory(ctx context.Context, groupID string) ([]model.ChatLogEntry, error) {
	q := url.Values{}
	if groupID != "" {
		q.Set("groupId", groupID)
	}

	var out struct {
		Entries []model.ChatLogEntry `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chat/history", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// ExportChatHistory returns the group's chat log as CSV bytes.
func (c *Client) ExportChatHistory(ctx context.Context, groupID string) ([]byte, error) {
	q := url.Values{}
	if groupID != "" {
		q.Set("groupId", groupID)
	}
	return c.raw(ctx, http.MethodGet, "/api/chat/history/export", q)
}
