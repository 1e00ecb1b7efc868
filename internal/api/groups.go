package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/user/vidlib-bot-go/internal/model"
)

// ListGroups returns all of the user's video groups.
func (c *Client) ListGroups(ctx context.Context) ([]model.VideoGroup, error) {
	var out struct {
		Groups []model.VideoGroup `json:"groups"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/groups", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Groups, nil
}

// CreateGroup creates an empty group.
func (c *Client) CreateGroup(ctx context.Context, name, description string) (*model.VideoGroup, error) {
	body := map[string]string{"name": name, "description": description}
	var out model.VideoGroup
	if err := c.do(ctx, http.MethodPost, "/api/groups", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetGroup returns a group with its member videos in display order.
func (c *Client) GetGroup(ctx context.Context, id string) (*model.VideoGroup, error) {
	var out model.VideoGroup
	if err := c.do(ctx, http.MethodGet, "/api/groups/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateGroup patches name and/or description.
func (c *Client) UpdateGroup(ctx context.Context, id string, patch model.GroupPatch) (*model.VideoGroup, error) {
	var out model.VideoGroup
	if err := c.do(ctx, http.MethodPatch, "/api/groups/"+url.PathEscape(id), nil, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteGroup removes the group; member videos stay in the library.
func (c *Client) DeleteGroup(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/groups/"+url.PathEscape(id), nil, nil, nil)
}

// AddGroupVideos bulk-adds videos to the group. Videos already in the
// group are skipped server-side and reported in the result counts.
func (c *Client) AddGroupVideos(ctx context.Context, groupID string, videoIDs []string) (*model.BulkAddResult, error) {
	body := map[string][]string{"videoIds": videoIDs}
	var out model.BulkAddResult
	if err := c.do(ctx, http.MethodPost, "/api/groups/"+url.PathEscape(groupID)+"/videos", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveGroupVideo removes one video from the group.
func (c *Client) RemoveGroupVideo(ctx context.Context, groupID, videoID string) error {
	path := "/api/groups/" + url.PathEscape(groupID) + "/videos/" + url.PathEscape(videoID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// SubmitGroupOrder replaces the group's display order with the given id
// list. The backend answers 400/409 when the list is not a permutation of
// the current membership; the caller must then refetch.
func (c *Client) SubmitGroupOrder(ctx context.Context, groupID string, videoIDs []string) error {
	body := map[string][]string{"videoIds": videoIDs}
	return c.do(ctx, http.MethodPut, "/api/groups/"+url.PathEscape(groupID)+"/order", nil, body, nil)
}

// PopularScenes returns the most-asked-about moments across the group.
func (c *Client) PopularScenes(ctx context.Context, groupID string) ([]model.PopularScene, error) {
	var out struct {
		Scenes []model.PopularScene `json:"scenes"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/groups/"+url.PathEscape(groupID)+"/scenes/popular", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Scenes, nil
}

// ShareGroup enables public read access and returns the share link.
func (c *Client) ShareGroup(ctx context.Context, groupID string) (*model.ShareLink, error) {
	var out model.ShareLink
	if err := c.do(ctx, http.MethodPost, "/api/groups/"+url.PathEscape(groupID)+"/share", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UnshareGroup revokes the group's share token.
func (c *Client) UnshareGroup(ctx context.Context, groupID string) error {
	return c.do(ctx, http.MethodDelete, "/api/groups/"+url.PathEscape(groupID)+"/share", nil, nil, nil)
}
