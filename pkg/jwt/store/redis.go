package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

var _ TokenStore = (*RedisStore)(nil)

// RedisStore keeps sessions in redis, expiry is enforced by the key TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore uses client with the given key prefix, "univadmin-jwt:" when empty.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "univadmin-jwt:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(jti string) string {
	return s.prefix + "session:" + jti
}

// Set stores a session with a TTL matching its expiry.
func (s *RedisStore) Set(ctx context.Context, jti string, uid string, expiry time.Time) error {
	if jti == "" {
		return errEmptyID
	}
	ttl := time.Until(expiry)
	if ttl <= 0 {
		return ErrSessionExpired
	}

	data, err := json.Marshal(&Session{UID: uid, Expiry: expiry, Created: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.client.Set(ctx, s.key(jti), data, ttl).Err()
}

// Get returns the session stored under jti.
func (s *RedisStore) Get(ctx context.Context, jti string) (*Session, error) {
	data, err := s.client.Get(ctx, s.key(jti)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	sess := &Session{}
	if err = json.Unmarshal(data, sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if sess.IsExpired() {
		_ = s.client.Del(ctx, s.key(jti)).Err()
		return nil, ErrSessionExpired
	}
	return sess, nil
}

// Delete revokes a session.
func (s *RedisStore) Delete(ctx context.Context, jti string) error {
	return s.client.Del(ctx, s.key(jti)).Err()
}

// Count scans the session keys under the prefix.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"session:*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count, iter.Err()
}
