// Package store keeps the refresh sessions issued by the mock backend, keyed by jwt id.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned when the jwt id was never issued or has been revoked.
	ErrSessionNotFound = errors.New("refresh session not found")
	// ErrSessionExpired is returned when the session outlived its refresh token.
	ErrSessionExpired = errors.New("refresh session expired")

	errEmptyID = errors.New("jwt id cannot be empty")
)

// Session is what a live refresh token resolves to.
type Session struct {
	UID     string    `json:"uid"`
	Expiry  time.Time `json:"expiry"`
	Created time.Time `json:"created"`
}

// IsExpired reports whether the session is past its expiry.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.Expiry)
}

// TokenStore persists refresh sessions.
type TokenStore interface {
	Set(ctx context.Context, jti string, uid string, expiry time.Time) error
	Get(ctx context.Context, jti string) (*Session, error)
	Delete(ctx context.Context, jti string) error
	Count(ctx context.Context) (int, error)
}
