package api

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/user/vidlib-bot-go/internal/model"
)

// ListVideosOptions filters and pages the video library listing. Zero
// values are omitted from the query.
type ListVideosOptions struct {
	Query  string
	Status model.VideoStatus
	Sort   string
	Page   int
	Limit  int
}

// ListVideos returns one page of the user's library.
func (c *Client) ListVideos(ctx context.Context, opts ListVideosOptions) (*model.VideoList, error) {
	q := url.Values{}
	if opts.Query != "" {
		q.Set("query", opts.Query)
	}
	if opts.Status != "" {
		q.Set("status", string(opts.Status))
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}

	var out model.VideoList
	if err := c.do(ctx, http.MethodGet, "/api/videos", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadVideo uploads a video file. The returned record starts in status
// pending; processing happens asynchronously server-side.
func (c *Client) UploadVideo(ctx context.Context, title, description, fileName string, file io.Reader) (*model.Video, error) {
	fields := map[string]string{
		"title":       title,
		"description": description,
	}
	var out model.Video
	if err := c.upload(ctx, "/api/videos", fields, fileName, file, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetVideo returns one video with its transcript when processing finished.
func (c *Client) GetVideo(ctx context.Context, id string) (*model.Video, error) {
	var out model.Video
	if err := c.do(ctx, http.MethodGet, "/api/videos/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateVideo patches title and/or description.
func (c *Client) UpdateVideo(ctx context.Context, id string, patch model.VideoPatch) (*model.Video, error) {
	var out model.Video
	if err := c.do(ctx, http.MethodPatch, "/api/videos/"+url.PathEscape(id), nil, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteVideo removes a video from the library.
func (c *Client) DeleteVideo(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/videos/"+url.PathEscape(id), nil, nil, nil)
}

// SetVideoTags replaces the video's tag set.
func (c *Client) SetVideoTags(ctx context.Context, videoID string, tagIDs []string) (*model.Video, error) {
	body := map[string][]string{"tagIds": tagIDs}
	var out model.Video
	if err := c.do(ctx, http.MethodPut, "/api/videos/"+url.PathEscape(videoID)+"/tags", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
