package cache

import (
	"context"
	"testing"

	"github.com/groupbuy/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachable points at a port nothing listens on
var unreachable = config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}

func TestIdempotencyStoreFactory_RedisDisabled(t *testing.T) {
	f := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: false})
	store, err := f.CreateStore(context.Background())
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &InMemoryIdempotencyStore{}, store)
}

func TestIdempotencyStoreFactory_FallsBackWhenUnreachable(t *testing.T) {
	f := NewIdempotencyStoreFactory(unreachable)
	store, err := f.CreateStore(context.Background())
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &InMemoryIdempotencyStore{}, store)
}

func TestIdempotencyStoreFactory_NoFallback(t *testing.T) {
	f := NewIdempotencyStoreFactory(unreachable, WithInMemoryFallback(false))
	_, err := f.CreateStore(context.Background())
	assert.Error(t, err)
}

func TestIdempotencyStoreFactory_SharedClient(t *testing.T) {
	client := redis.NewClient(RedisOptions(unreachable))
	defer client.Close()

	f := NewIdempotencyStoreFactory(unreachable, WithRedisClient(client))
	store, err := f.CreateStore(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &RedisIdempotencyStore{}, store)
	assert.NoError(t, store.Close(), "a shared client is left open")
}

func TestRedisOptions(t *testing.T) {
	opts := RedisOptions(config.RedisConfig{Host: "cache", Port: 6380, Password: "pw", DB: 2})
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)
}
