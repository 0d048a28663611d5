package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

// Every helper must be a silent no-op when the client is nil, so the
// API keeps serving when Redis is down.

func TestGetJSONNilClient(t *testing.T) {
	var dest string
	found, err := GetJSON(context.Background(), nil, "some:key", &dest)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSetJSONNilClient(t *testing.T) {
	err := SetJSON(context.Background(), nil, "some:key", "value", time.Minute)
	assert.NoError(t, err)
}

func TestInvalidateNilClient(t *testing.T) {
	assert.NotPanics(t, func() {
		Invalidate(context.Background(), nil, "some:key")
	})
}

func TestCacheAsideNilClientAlwaysFetches(t *testing.T) {
	calls := 0
	var dest int
	fetch := func() error {
		calls++
		dest = 42
		return nil
	}

	for i := 0; i < 2; i++ {
		require.NoError(t, CacheAside(context.Background(), nil, "some:key", &dest, time.Minute, fetch))
	}

	assert.Equal(t, 2, calls)
	assert.Equal(t, 42, dest)
}

func TestGetSetJSONRoundTrip(t *testing.T) {
	client, mr := testClient(t)
	ctx := context.Background()

	type profile struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}

	require.NoError(t, SetJSON(ctx, client, "profile:1", profile{Name: "whiskers", Age: 4}, time.Minute))

	var got profile
	found, err := GetJSON(ctx, client, "profile:1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, profile{Name: "whiskers", Age: 4}, got)

	// Expiry turns the key back into a miss
	mr.FastForward(time.Minute + time.Second)
	found, err = GetJSON(ctx, client, "profile:1", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheAsideServesHitWithoutFetching(t *testing.T) {
	client, _ := testClient(t)
	ctx := context.Background()

	calls := 0
	var dest string
	fetch := func() error {
		calls++
		dest = "from-db"
		return nil
	}

	require.NoError(t, CacheAside(ctx, client, "greeting", &dest, time.Minute, fetch))
	require.Equal(t, 1, calls)

	// Second read is served from the cache without touching the source
	dest = ""
	require.NoError(t, CacheAside(ctx, client, "greeting", &dest, time.Minute, fetch))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "from-db", dest)
}

func TestInvalidateRemovesKey(t *testing.T) {
	client, _ := testClient(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, client, "doomed", "value", time.Minute))
	Invalidate(ctx, client, "doomed")

	var got string
	found, err := GetJSON(ctx, client, "doomed", &got)
	require.NoError(t, err)
	assert.False(t, found)
}
