package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test:"), mr
}

func TestTokenStores(t *testing.T) {
	rs, _ := newRedisStore(t)
	stores := map[string]TokenStore{
		"memory": NewMemoryStore(),
		"redis":  rs,
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			assert.Error(t, s.Set(ctx, "", "1", time.Now().Add(time.Hour)))

			_, err := s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrSessionNotFound)

			require.NoError(t, s.Set(ctx, "jti-1", "7", time.Now().Add(time.Hour)))
			require.NoError(t, s.Set(ctx, "jti-2", "8", time.Now().Add(time.Hour)))

			sess, err := s.Get(ctx, "jti-1")
			require.NoError(t, err)
			assert.Equal(t, "7", sess.UID)
			assert.False(t, sess.IsExpired())

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			require.NoError(t, s.Delete(ctx, "jti-1"))
			require.NoError(t, s.Delete(ctx, "jti-1"))
			_, err = s.Get(ctx, "jti-1")
			assert.ErrorIs(t, err, ErrSessionNotFound)

			n, _ = s.Count(ctx)
			assert.Equal(t, 1, n)
		})
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "old", "1", time.Now().Add(-time.Second)))
	require.NoError(t, s.Set(ctx, "older", "2", time.Now().Add(-time.Minute)))
	require.NoError(t, s.Set(ctx, "live", "3", time.Now().Add(time.Hour)))

	_, err := s.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrSessionExpired)

	assert.Equal(t, 1, s.Cleanup(ctx))
	n, _ := s.Count(ctx)
	assert.Equal(t, 1, n)
}

func TestMemoryStoreConcurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Set(ctx, "jti", "1", time.Now().Add(time.Hour))
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Get(ctx, "jti")
		}()
	}
	wg.Wait()

	n, _ := s.Count(ctx)
	assert.Equal(t, 1, n)
}

func TestRedisStoreTTL(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Set(ctx, "past", "1", time.Now().Add(-time.Second)), ErrSessionExpired)

	require.NoError(t, s.Set(ctx, "jti", "1", time.Now().Add(time.Minute)))
	assert.True(t, mr.Exists("test:session:jti"))
	assert.Greater(t, mr.TTL("test:session:jti"), time.Duration(0))

	mr.FastForward(2 * time.Minute)
	_, err := s.Get(ctx, "jti")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
