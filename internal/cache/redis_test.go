package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Set LETSCOOK_TEST_REDIS=host:port to run against a live server.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("LETSCOOK_TEST_REDIS")
	if addr == "" {
		t.Skip("LETSCOOK_TEST_REDIS not set")
	}

	ctx := context.Background()
	store, err := NewRedisStore(ctx, RedisOptions{Addr: addr}, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	key := "test:" + time.Now().Format(time.RFC3339Nano)
	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, key, []byte(`{"tokens_sold":1}`), time.Minute))
	val, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"tokens_sold":1}`, string(val))
}

func TestNewRedisStoreUnreachable(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisOptions{Addr: "127.0.0.1:1"}, zap.NewNop())
	assert.Error(t, err)
}
