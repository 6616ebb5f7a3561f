package api

import (
	"context"
	"net/http"

	"github.com/solatis/cpq/internal/types"
)

// Credentials is the body of POST /auth/login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a session. The caller persists it.
func (c *Client) Login(ctx context.Context, creds Credentials) (*types.AuthSession, error) {
	var out types.AuthSession
	err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/auth/login",
		endpoint: "POST /auth/login",
		body:     creds,
		shape:    authSchema,
		out:      &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout invalidates the current token server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/auth/logout",
		endpoint: "POST /auth/logout",
	})
}

// Refresh exchanges the current token for a new one.
func (c *Client) Refresh(ctx context.Context) (*types.AuthSession, error) {
	var out types.AuthSession
	err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     "/auth/refresh",
		endpoint: "POST /auth/refresh",
		shape:    authSchema,
		out:      &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile returns the authenticated user.
func (c *Client) Profile(ctx context.Context) (*types.User, error) {
	var out types.User
	err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     "/auth/profile",
		endpoint: "GET /auth/profile",
		shape:    userSchema,
		out:      &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
