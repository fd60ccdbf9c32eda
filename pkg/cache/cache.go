// Package cache is a small in-process cache for reference data such as departments and rooms.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrCacheNotFound no hit cache
	ErrCacheNotFound = errors.New("cache not found")

	errEmptyKey = errors.New("cache: empty key")
)

const (
	// DefaultExpireTime used when Set receives a non-positive expiration.
	DefaultExpireTime = 5 * time.Minute
)

// Cache driver interface
type Cache interface {
	Set(ctx context.Context, key string, val interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, val interface{}) error
	Del(ctx context.Context, keys ...string) error
}

// BuildCacheKey joins prefix and key.
func BuildCacheKey(keyPrefix string, key string) (string, error) {
	if key == "" {
		return "", errEmptyKey
	}
	if keyPrefix == "" {
		return key, nil
	}
	return strings.Join([]string{keyPrefix, key}, ":"), nil
}
