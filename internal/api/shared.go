package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/user/vidlib-bot-go/internal/model"
)

// SharedGroup returns a read-only group view through its share token.
// No authentication is required.
func (c *Client) SharedGroup(ctx context.Context, token string) (*model.VideoGroup, error) {
	var out model.VideoGroup
	if err := c.do(ctx, http.MethodGet, "/api/shared/"+url.PathEscape(token), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SharedVideo returns one member video of a shared group.
func (c *Client) SharedVideo(ctx context.Context, token, videoID string) (*model.Video, error) {
	path := "/api/shared/" + url.PathEscape(token) + "/videos/" + url.PathEscape(videoID)
	var out model.Video
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
