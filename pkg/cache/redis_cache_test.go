package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCacheWithClient(client, "test"), mr
}

func TestGetSetDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, found, err := c.Get(ctx, c.Key("missing"))
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, c.Key("k"), []byte("v"), time.Minute))
	v, found, err := c.Get(ctx, c.Key("k"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", string(v))

	require.NoError(t, c.Delete(ctx, c.Key("k")))
	_, found, err = c.Get(ctx, c.Key("k"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSetHonoursTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, c.Key("ttl"), []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	_, found, err := c.Get(ctx, c.Key("ttl"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIncrAndGetInt(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	n, err := c.GetInt(ctx, c.Key("ver"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = c.Incr(ctx, c.Key("ver"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.GetInt(ctx, c.Key("ver"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPublishSubscribe(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	sub := c.Subscribe(ctx, "events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, c.Publish(ctx, "events", map[string]string{"type": "ping"}))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "test:channel:events", msg.Channel)
		assert.JSONEq(t, `{"type":"ping"}`, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestKey(t *testing.T) {
	c := NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "")
	assert.Equal(t, "newsportal:perm:set:7", c.Key("perm", "set", "7"))
}
