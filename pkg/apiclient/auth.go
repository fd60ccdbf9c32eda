package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	json "github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/moweilong/univadmin/pkg/credstore"
	"github.com/moweilong/univadmin/pkg/errorsx"
	"github.com/moweilong/univadmin/pkg/log"
)

// ErrNotLoggedIn is returned by CurrentUser when no profile is cached.
var ErrNotLoggedIn = errorsx.New(http.StatusUnauthorized, errorsx.ReasonUnauthorized, "not logged in")

// User is the profile returned by the login endpoint.
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role,omitempty"`
}

// FullName returns "first last", falling back to the username.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "" || u.LastName != "":
		return u.FirstName + u.LastName
	default:
		return u.Username
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    *User  `json:"user"`
}

// Login authenticates and stores the access token, the refresh token and the user profile.
// A rejected login is returned as is, it never triggers a refresh.
func (c *Client) Login(ctx context.Context, username, password string) (*User, error) {
	payload, err := json.Marshal(&loginRequest{Username: username, Password: password})
	if err != nil {
		return nil, errorsx.Normalize(err)
	}

	requestID := uuid.NewString()
	ctx = log.WithRequestID(ctx, requestID)
	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set(HeaderRequestID, requestID)

	target, rerr := c.resolve(c.loginPath, nil)
	if rerr != nil {
		return nil, rerr
	}
	resp, rerr := c.roundTrip(ctx, http.MethodPost, target, payload, "application/json", header)
	if rerr != nil {
		return nil, rerr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errorsx.FromResponse(resp.StatusCode, resp.Header, resp.Body, nil)
	}

	var out loginResponse
	if err = resp.Decode(&out); err == nil && (out.Access == "" || out.Refresh == "") {
		err = errors.New("login response has no tokens")
	}
	if err != nil {
		return nil, errorsx.FromResponse(http.StatusInternalServerError, resp.Header, resp.Body, err)
	}

	var userJSON []byte
	if out.User != nil {
		if userJSON, err = json.Marshal(out.User); err != nil {
			return nil, errorsx.Normalize(err)
		}
	}
	if err = c.creds.SaveLogin(ctx, out.Access, out.Refresh, userJSON); err != nil {
		return nil, errorsx.FromTransport(fmt.Errorf("store credentials: %w", err))
	}

	c.logger.W(ctx).Infow("logged in", "username", username)
	if out.User == nil {
		return &User{Username: username}, nil
	}
	return out.User, nil
}

// Logout clears the stored session.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.creds.Clear(ctx); err != nil {
		return errorsx.FromTransport(fmt.Errorf("clear credentials: %w", err))
	}
	return nil
}

// CurrentUser returns the cached profile, ErrNotLoggedIn when there is none.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	u := &User{}
	if err := c.creds.User(ctx, u); err != nil {
		if errors.Is(err, credstore.ErrNotFound) {
			return nil, ErrNotLoggedIn
		}
		return nil, errorsx.Normalize(err)
	}
	return u, nil
}
