package api

import (
	"context"
	"net/http"

	"github.com/user/vidlib-bot-go/internal/model"
)

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*model.LoginResult, error) {
	body := map[string]string{"email": email, "password": password}
	var out model.LoginResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout invalidates the bound token server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil)
}

// Session returns the user behind the bound token, or an auth error when
// the token is no longer valid.
func (c *Client) Session(ctx context.Context) (*model.User, error) {
	var out struct {
		User model.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}
