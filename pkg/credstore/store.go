// Package credstore persists the credentials of an authenticated session.
//
// A Store is an origin scoped key/value store, the Go counterpart of a browser's local
// storage. Credentials layers the three session slots on top of it.
package credstore

import (
	"context"
	"errors"
)

// Slot names shared by every backend.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// SessionKeys lists the slots cleared as a set on logout.
var SessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

var (
	// ErrNotFound is returned by Get when the key holds no value.
	ErrNotFound = errors.New("credstore: key not found")
	// ErrEmptyKey is returned when an operation is given an empty key.
	ErrEmptyKey = errors.New("credstore: key cannot be empty")
)

// Store is an origin scoped key/value store.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set writes value under key.
	Set(ctx context.Context, key, value string) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// Closer is implemented by stores holding a connection.
type Closer interface {
	Close() error
}
