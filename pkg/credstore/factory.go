package credstore

import (
	"context"
	"fmt"
)

// StoreType represents the type of store to create.
type StoreType string

const (
	// MemoryType keeps credentials for the lifetime of the process.
	MemoryType StoreType = "memory"
	// FileType persists credentials to disk.
	FileType StoreType = "file"
	// RedisType shares credentials through Redis.
	RedisType StoreType = "redis"
)

// Config holds the configuration for creating a store.
type Config struct {
	Type  StoreType    `json:"type" mapstructure:"type"`
	Dir   string       `json:"dir" mapstructure:"dir"`     // only used by FileType
	Redis *RedisConfig `json:"redis" mapstructure:"redis"` // only used by RedisType
}

// DefaultConfig returns a memory store configuration.
func DefaultConfig() *Config {
	return &Config{
		Type: MemoryType,
	}
}

// NewStore creates the store described by config for origin.
func NewStore(ctx context.Context, config *Config, origin string) (Store, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Type {
	case MemoryType, "":
		return NewMemoryStore(), nil

	case FileType:
		return NewFileStore(config.Dir, origin)

	case RedisType:
		return NewRedisStore(ctx, config.Redis, origin)

	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}
