package api

import (
	"context"
	"net/http"

	"github.com/user/vidlib-bot-go/internal/model"
)

// SetOpenAIKey stores the user's own OpenAI API key for chat answering.
func (c *Client) SetOpenAIKey(ctx context.Context, apiKey string) error {
	body := map[string]string{"apiKey": apiKey}
	return c.do(ctx, http.MethodPut, "/api/settings/openai-key", nil, body, nil)
}

// DeleteOpenAIKey removes the stored key.
func (c *Client) DeleteOpenAIKey(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/settings/openai-key", nil, nil, nil)
}

// OpenAIKeyStatus reports whether a key is stored, with its last four
// characters for display. The key itself is never returned.
func (c *Client) OpenAIKeyStatus(ctx context.Context) (*model.KeyStatus, error) {
	var out model.KeyStatus
	if err := c.do(ctx, http.MethodGet, "/api/settings/openai-key/status", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
