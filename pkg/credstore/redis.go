package credstore

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisConfig holds the configuration for the Redis store.
type RedisConfig struct {
	Addr     string `json:"addr" mapstructure:"addr"`         // Redis server address (default: "localhost:6379")
	Password string `json:"password" mapstructure:"password"` // Redis password (default: "")
	DB       int    `json:"db" mapstructure:"db"`             // Redis database number (default: 0)

	TLSConfig *tls.Config `json:"-" mapstructure:"-"` // optional

	DialTimeout time.Duration `json:"dial-timeout" mapstructure:"dial-timeout"` // default: 5s
	PoolSize    int           `json:"pool-size" mapstructure:"pool-size"`       // default: 10

	// TTL bounds how long a session survives without being rewritten, 0 keeps it forever.
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix is prepended to every key (default: "univadmin:").
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`
}

// DefaultRedisConfig returns a default Redis configuration.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:        "localhost:6379",
		DialTimeout: 5 * time.Second,
		PoolSize:    10,
		KeyPrefix:   "univadmin:",
	}
}

// RedisStore keeps the slots of one origin in Redis so several processes can share a session.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	owned  bool
}

// NewRedisStore connects to Redis and returns a store for origin.
func NewRedisStore(ctx context.Context, config *RedisConfig, origin string) (*RedisStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}
	if origin == "" {
		return nil, errors.New("credstore: origin cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:        config.Addr,
		Password:    config.Password,
		DB:          config.DB,
		TLSConfig:   config.TLSConfig,
		DialTimeout: config.DialTimeout,
		PoolSize:    config.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("credstore: failed to connect to Redis: %w", err)
	}

	s := NewRedisStoreFromClient(client, config.KeyPrefix, origin, config.TTL)
	s.owned = true
	return s, nil
}

// NewRedisStoreFromClient wraps an existing client. Close leaves the client open.
func NewRedisStoreFromClient(client *redis.Client, keyPrefix, origin string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: keyPrefix + origin + ":",
		ttl:    ttl,
	}
}

func (s *RedisStore) buildKey(key string) string {
	return s.prefix + key
}

// Get returns the value stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	v, err := s.client.Get(ctx, s.buildKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("credstore: redis get %s: %w", key, err)
	}
	return v, nil
}

// Set stores value under key.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}

	if err := s.client.Set(ctx, s.buildKey(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("credstore: redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys in one round trip.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, s.buildKey(k))
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("credstore: redis del: %w", err)
	}
	return nil
}

// Close closes the connection when the store created it.
func (s *RedisStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
