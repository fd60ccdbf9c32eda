package credstore

import (
	"context"
	"errors"
	"fmt"

	json "github.com/bytedance/sonic"
)

// Credentials reads and writes the session slots of a Store.
//
// Only the API client writes through it: login fills all three slots, a refresh rewrites
// the access token, logout and a failed refresh clear them as a set.
type Credentials struct {
	store Store
}

// NewCredentials wraps store.
func NewCredentials(store Store) *Credentials {
	return &Credentials{store: store}
}

// Store returns the underlying store.
func (c *Credentials) Store() Store {
	return c.store
}

// AccessToken returns the stored access token, "" when none is stored.
func (c *Credentials) AccessToken(ctx context.Context) (string, error) {
	return c.optional(ctx, KeyAccessToken)
}

// RefreshToken returns the stored refresh token, "" when none is stored.
func (c *Credentials) RefreshToken(ctx context.Context) (string, error) {
	return c.optional(ctx, KeyRefreshToken)
}

// User decodes the cached user profile into out. It returns ErrNotFound when no profile is cached.
func (c *Credentials) User(ctx context.Context, out any) error {
	raw, err := c.store.Get(ctx, KeyUser)
	if err != nil {
		return err
	}
	if err := json.UnmarshalString(raw, out); err != nil {
		return fmt.Errorf("credstore: decode cached user: %w", err)
	}
	return nil
}

// SaveLogin writes the three slots after a successful login.
func (c *Credentials) SaveLogin(ctx context.Context, access, refresh string, user []byte) error {
	if err := c.store.Set(ctx, KeyAccessToken, access); err != nil {
		return err
	}
	if err := c.store.Set(ctx, KeyRefreshToken, refresh); err != nil {
		return err
	}
	if len(user) == 0 {
		return c.store.Delete(ctx, KeyUser)
	}
	return c.store.Set(ctx, KeyUser, string(user))
}

// SetAccessToken replaces the access token after a refresh.
func (c *Credentials) SetAccessToken(ctx context.Context, access string) error {
	return c.store.Set(ctx, KeyAccessToken, access)
}

// SetRefreshToken replaces the refresh token when the backend rotates it.
func (c *Credentials) SetRefreshToken(ctx context.Context, refresh string) error {
	return c.store.Set(ctx, KeyRefreshToken, refresh)
}

// Clear removes every session slot.
func (c *Credentials) Clear(ctx context.Context) error {
	return c.store.Delete(ctx, SessionKeys...)
}

func (c *Credentials) optional(ctx context.Context, key string) (string, error) {
	v, err := c.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}
