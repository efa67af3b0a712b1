package redis_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/clauseguard/internal/core/ports"
	infraredis "github.com/avatarctic/clauseguard/internal/infrastructure/redis"
	"github.com/avatarctic/clauseguard/test/redistest"
)

func TestKVStore_GetSetTTL(t *testing.T) {
	client, server := redistest.New(t)
	store := infraredis.NewKVStore(client)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	ttl, err := store.TTL(ctx, "missing")
	require.NoError(t, err)
	require.Equal(t, ports.TTLMissing, ttl)

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))
	v, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)

	ttl, err = store.TTL(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, time.Minute, ttl)

	require.NoError(t, server.Set("forever", "1"))
	ttl, err = store.TTL(ctx, "forever")
	require.NoError(t, err)
	require.Equal(t, ports.TTLNoExpiry, ttl)

	server.FastForward(2 * time.Minute)
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKVStore_IncrSetNXDelete(t *testing.T) {
	client, _ := redistest.New(t)
	store := infraredis.NewKVStore(client)
	ctx := context.Background()

	n, err := store.Incr(ctx, "c")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	n, err = store.Incr(ctx, "c")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	wrote, err := store.SetNX(ctx, "once", "first", time.Minute)
	require.NoError(t, err)
	require.True(t, wrote)
	wrote, err = store.SetNX(ctx, "once", "second", time.Minute)
	require.NoError(t, err)
	require.False(t, wrote)
	v, _, _ := store.Get(ctx, "once")
	require.Equal(t, "first", v)

	require.NoError(t, store.Delete(ctx, "once"))
	require.NoError(t, store.Delete(ctx, "once"), "deleting an absent key is not an error")
}

func TestKVStore_GetDelSingleWinner(t *testing.T) {
	client, _ := redistest.New(t)
	store := infraredis.NewKVStore(client)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "tok", "rec", time.Minute))

	var winners int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := store.GetDel(ctx, "tok")
			if err == nil && ok {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, winners)
}

func TestKVStore_UnreachableReturnsErrors(t *testing.T) {
	store := infraredis.NewKVStore(redistest.Unreachable(t))
	ctx := context.Background()

	_, _, err := store.Get(ctx, "k")
	require.Error(t, err)
	_, err = store.Incr(ctx, "k")
	require.Error(t, err)
	require.Error(t, store.Ping(ctx))
}

func TestKVStore_ScriptedGetDelSingleWinner(t *testing.T) {
	client, mr := redistest.New(t)
	store := infraredis.NewKVStore(client)
	store.PreferScriptedGetDel()
	ctx := context.Background()

	_, ok, err := store.GetDel(ctx, "absent")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "tok", "rec", time.Minute))
	var winners int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, ok, err := store.GetDel(ctx, "tok")
			if err == nil && ok && v == "rec" {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, winners)
	require.False(t, mr.Exists("tok"))
}

type serverError string

func (e serverError) Error() string { return string(e) }
func (serverError) RedisError()     {}

// preGetDelClient answers GETDEL the way a Redis 6.0 server does.
type preGetDelClient struct {
	*redis.Client
	getDelCalls int32
}

func (c *preGetDelClient) GetDel(ctx context.Context, key string) *redis.StringCmd {
	atomic.AddInt32(&c.getDelCalls, 1)
	cmd := redis.NewStringCmd(ctx, "getdel", key)
	cmd.SetErr(serverError("ERR unknown command 'getdel', with args beginning with: 'tok'"))
	return cmd
}

func TestKVStore_GetDelFallsBackWhenCommandUnknown(t *testing.T) {
	client, _ := redistest.New(t)
	legacy := &preGetDelClient{Client: client}
	store := infraredis.NewKVStore(legacy)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "tok", "rec", time.Minute))
	v, ok, err := store.GetDel(ctx, "tok")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "rec", v)

	_, ok, err = store.GetDel(ctx, "tok")
	require.NoError(t, err)
	require.False(t, ok)
	require.EqualValues(t, 1, atomic.LoadInt32(&legacy.getDelCalls))
}
