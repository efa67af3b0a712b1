package redis

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/avatarctic/clauseguard/internal/core/ports"
)

// getDelScript stands in for GETDEL on servers older than 6.2. Scripts run
// atomically, so the read and the delete cannot interleave with another caller.
var getDelScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v then redis.call('DEL', KEYS[1]) end
return v
`)

// KVStore adapts a Redis client to ports.KeyValueStore.
type KVStore struct {
	r          redis.Cmdable
	scriptedGD atomic.Bool
}

var _ ports.KeyValueStore = (*KVStore)(nil)

func NewKVStore(r redis.Cmdable) *KVStore {
	return &KVStore{r: r}
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.r.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.r.Set(ctx, key, value, ttl).Err()
}

func (s *KVStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.r.SetNX(ctx, key, value, ttl).Result()
}

func (s *KVStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.r.Incr(ctx, key).Result()
}

func (s *KVStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.r.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// go-redis passes the raw -2/-1 replies through unscaled.
	switch d {
	case -2:
		return ports.TTLMissing, nil
	case -1:
		return ports.TTLNoExpiry, nil
	}
	return d, nil
}

func (s *KVStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.r.Expire(ctx, key, ttl).Err()
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	return s.r.Del(ctx, key).Err()
}

// PreferScriptedGetDel switches GetDel to the Lua fallback up front, for
// servers already known to lack GETDEL.
func (s *KVStore) PreferScriptedGetDel() {
	s.scriptedGD.Store(true)
}

// GetDel uses GETDEL and falls back to an equivalent script the first time the
// server rejects the command.
func (s *KVStore) GetDel(ctx context.Context, key string) (string, bool, error) {
	if !s.scriptedGD.Load() {
		val, err := s.r.GetDel(ctx, key).Result()
		if !isUnknownCommand(err) {
			return result(val, err)
		}
		s.scriptedGD.Store(true)
	}
	val, err := getDelScript.Run(ctx, s.r, []string{key}).Text()
	return result(val, err)
}

func result(val string, err error) (string, bool, error) {
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func isUnknownCommand(err error) bool {
	var rerr redis.Error
	return errors.As(err, &rerr) && strings.Contains(strings.ToLower(rerr.Error()), "unknown command")
}

func (s *KVStore) Ping(ctx context.Context) error {
	return s.r.Ping(ctx).Err()
}
