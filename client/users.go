package client

import (
	"context"
	"net/http"

	"github.com/aep/parsekit/api"
	"github.com/aep/parsekit/query"
)

// SignUp creates a user. The returned user carries a session token that
// can be passed to WithSession.
func (c *Client) SignUp(ctx context.Context, username, password string, fields map[string]any) (*api.User, error) {
	if err := requireName("username", username); err != nil {
		return nil, err
	}
	if err := requireName("password", password); err != nil {
		return nil, err
	}

	body := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		body[k] = v
	}
	body["username"] = username
	body["password"] = password

	var user api.User
	err := c.doJSON(ctx, request{
		method: http.MethodPost,
		path:   "/users",
		body:   body,
	}, &user)
	if err != nil {
		return nil, err
	}
	user.Username = username
	return &user, nil
}

func (c *Client) Login(ctx context.Context, username, password string) (*api.User, error) {
	if err := requireName("username", username); err != nil {
		return nil, err
	}
	if err := requireName("password", password); err != nil {
		return nil, err
	}

	var user api.User
	err := c.doJSON(ctx, request{
		method: http.MethodGet,
		path:   "/login",
		params: query.Params{"username": username, "password": password},
	}, &user)
	if err != nil {
		return nil, err
	}

	c.log.Debug("logged in", "username", username, "objectId", user.ObjectID)
	return &user, nil
}

// Logout invalidates the session token of c.
func (c *Client) Logout(ctx context.Context) error {
	if err := requireName("sessionToken", c.cfg.SessionToken); err != nil {
		return err
	}
	return c.doJSON(ctx, request{
		method: http.MethodPost,
		path:   "/logout",
	}, nil)
}

// Me returns the user owning the session token of c.
func (c *Client) Me(ctx context.Context) (*api.User, error) {
	if err := requireName("sessionToken", c.cfg.SessionToken); err != nil {
		return nil, err
	}

	var user api.User
	err := c.doJSON(ctx, request{
		method: http.MethodGet,
		path:   "/users/me",
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
