package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/dgraph-io/ristretto"
)

type options struct {
	numCounters int64
	maxCost     int64
	bufferItems int64
}

func defaultOptions() *options {
	return &options{
		numCounters: 1e5,     // number of keys to track frequency of (100K).
		maxCost:     1 << 26, // maximum cost of cache (64MB).
		bufferItems: 64,      // number of keys per Get buffer.
	}
}

// Option set the cache options.
type Option func(*options)

func (o *options) apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// WithNumCounters set number of keys.
func WithNumCounters(numCounters int64) Option {
	return func(o *options) {
		o.numCounters = numCounters
	}
}

// WithMaxCost set maximum cost of cache.
func WithMaxCost(maxCost int64) Option {
	return func(o *options) {
		o.maxCost = maxCost
	}
}

// WithBufferItems set number of keys per Get buffer.
func WithBufferItems(bufferItems int64) Option {
	return func(o *options) {
		o.bufferItems = bufferItems
	}
}

// NewRistretto create a ristretto cache
func NewRistretto(opts ...Option) (*ristretto.Cache, error) {
	o := defaultOptions()
	o.apply(opts...)

	// see: https://dgraph.io/blog/post/introducing-ristretto-high-perf-go-cache/
	return ristretto.NewCache(&ristretto.Config{
		NumCounters: o.numCounters,
		MaxCost:     o.maxCost,
		BufferItems: o.bufferItems,
	})
}

// ----------------------------------------------------------------------------

var _ Cache = (*MemoryCache)(nil)

// MemoryCache stores JSON encoded values in ristretto.
type MemoryCache struct {
	client    *ristretto.Cache
	keyPrefix string
}

// NewMemoryCache create a memory cache
func NewMemoryCache(keyPrefix string, opts ...Option) (*MemoryCache, error) {
	client, err := NewRistretto(opts...)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{client: client, keyPrefix: keyPrefix}, nil
}

// Set data
func (m *MemoryCache) Set(_ context.Context, key string, val interface{}, expiration time.Duration) error {
	buf, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("json.Marshal error: %v, key=%s, val=%+v", err, key, val)
	}
	if expiration <= 0 {
		expiration = DefaultExpireTime
	}
	return m.set(key, buf, expiration)
}

// Get data
func (m *MemoryCache) Get(_ context.Context, key string, val interface{}) error {
	cacheKey, err := BuildCacheKey(m.keyPrefix, key)
	if err != nil {
		return fmt.Errorf("BuildCacheKey error: %v, key=%s", err, key)
	}

	data, ok := m.client.Get(cacheKey)
	if !ok {
		return ErrCacheNotFound
	}

	dataBytes, ok := data.([]byte)
	if !ok {
		return fmt.Errorf("data type error, key=%s, type=%T", key, data)
	}
	if len(dataBytes) == 0 {
		return ErrCacheNotFound
	}

	if err = json.Unmarshal(dataBytes, val); err != nil {
		return fmt.Errorf("json.Unmarshal error: %v, key=%s, type=%T", err, key, val)
	}
	return nil
}

// Del delete data
func (m *MemoryCache) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		cacheKey, err := BuildCacheKey(m.keyPrefix, key)
		if err != nil {
			return fmt.Errorf("BuildCacheKey error: %v, key=%s", err, key)
		}
		m.client.Del(cacheKey)
	}
	m.client.Wait()
	return nil
}

// Close stops the ristretto goroutines.
func (m *MemoryCache) Close() {
	m.client.Close()
}

func (m *MemoryCache) set(key string, buf []byte, expiration time.Duration) error {
	cacheKey, err := BuildCacheKey(m.keyPrefix, key)
	if err != nil {
		return fmt.Errorf("BuildCacheKey error: %v, key=%s", err, key)
	}
	if ok := m.client.SetWithTTL(cacheKey, buf, int64(len(buf)), expiration); !ok {
		return errors.New("SetWithTTL failed")
	}
	m.client.Wait()
	return nil
}
