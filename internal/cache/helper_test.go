package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedUser struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

func TestAside_FetchesOnceThenServesFromCache(t *testing.T) {
	setupMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedUser) func() error {
		return func() error {
			calls++
			*dest = cachedUser{ID: "u1", Status: "active"}
			return nil
		}
	}

	var first cachedUser
	require.NoError(t, Aside(ctx, UserKey("u1"), &first, UserTTL, fetch(&first)))
	var second cachedUser
	require.NoError(t, Aside(ctx, UserKey("u1"), &second, UserTTL, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, "active", second.Status)
}

func TestAside_InvalidateForcesRefetch(t *testing.T) {
	setupMiniredis(t)
	ctx := context.Background()

	var u cachedUser
	require.NoError(t, Aside(ctx, UserKey("u1"), &u, UserTTL, func() error {
		u = cachedUser{ID: "u1", Status: "active"}
		return nil
	}))

	InvalidateUser(ctx, "u1")

	var fresh cachedUser
	require.NoError(t, Aside(ctx, UserKey("u1"), &fresh, UserTTL, func() error {
		fresh = cachedUser{ID: "u1", Status: "banned"}
		return nil
	}))
	assert.Equal(t, "banned", fresh.Status)
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	var u cachedUser
	err := Aside(ctx, UserKey("missing"), &u, UserTTL, func() error { return errors.New("not found") })
	require.Error(t, err)
	assert.False(t, mr.Exists(UserKey("missing")))
}

func TestAside_WithoutClientCallsFetch(t *testing.T) {
	SetClient(nil)

	var u cachedUser
	err := Aside(context.Background(), UserKey("u1"), &u, UserTTL, func() error {
		u.ID = "u1"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
}

func TestInitRedis_InvalidateReachesSharedServer(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Cleanup(func() { SetClient(nil) })
	require.NoError(t, mr.Set(UserKey("u1"), `{"id":"u1","status":"active"}`))

	InitRedis(mr.Addr())
	require.NotNil(t, GetClient())

	InvalidateUser(context.Background(), "u1")
	assert.False(t, mr.Exists(UserKey("u1")))
}

func TestInitRedis_UnreachableLeavesNoClient(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	t.Cleanup(func() { SetClient(nil) })

	InitRedis(addr)
	assert.Nil(t, GetClient())
}
