package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/user/vidlib-bot-go/internal/model"
)

// ListTags returns the user's tags.
func (c *Client) ListTags(ctx context.Context) ([]model.Tag, error) {
	var out struct {
		Tags []model.Tag `json:"tags"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/tags", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Tags, nil
}

// CreateTag creates a tag. Color is a hex string like "#ff8800".
func (c *Client) CreateTag(ctx context.Context, name, color string) (*model.Tag, error) {
	body := map[string]string{"name": name, "color": color}
	var out model.Tag
	if err := c.do(ctx, http.MethodPost, "/api/tags", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTag renames and/or recolors a tag.
func (c *Client) UpdateTag(ctx context.Context, id, name, color string) (*model.Tag, error) {
	body := map[string]string{"name": name, "color": color}
	var out model.Tag
	if err := c.do(ctx, http.MethodPatch, "/api/tags/"+url.PathEscape(id), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTag removes the tag from every video that carries it.
func (c *Client) DeleteTag(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tags/"+url.PathEscape(id), nil, nil, nil)
}
