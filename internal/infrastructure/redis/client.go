package redis

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	config "github.com/avatarctic/clauseguard/configs"
)

// ErrGetDelUnsupported is returned for servers older than 6.2. Callers should
// switch their KVStore to the scripted GetDel.
var ErrGetDelUnsupported = errors.New("redis server does not support GETDEL (requires 6.2 or newer)")

const connectTimeout = 5 * time.Second

// NewRedisClient builds the shared client. On a connection or version error
// the client is still returned: the limiter fails open and /health reports
// the outage until the store comes back.
func NewRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(options(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return client, fmt.Errorf("failed to connect to Redis at %s: %w", client.Options().Addr, err)
	}
	if err := checkServerVersion(ctx, client); err != nil {
		return client, err
	}
	return client, nil
}

func options(cfg *config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func checkServerVersion(ctx context.Context, client redis.Cmdable) error {
	info, err := client.Info(ctx, "server").Result()
	if err != nil {
		return fmt.Errorf("failed to read Redis server info: %w", err)
	}
	major, minor, ok := parseServerVersion(info)
	if !ok {
		// Managed offerings sometimes hide the version; assume a modern server.
		return nil
	}
	if major < 6 || (major == 6 && minor < 2) {
		return fmt.Errorf("%w: server is %d.%d", ErrGetDelUnsupported, major, minor)
	}
	return nil
}

// parseServerVersion extracts major and minor from the redis_version line of
// an INFO server reply.
func parseServerVersion(info string) (major, minor int, ok bool) {
	sc := bufio.NewScanner(strings.NewReader(info))
	for sc.Scan() {
		v, found := strings.CutPrefix(strings.TrimSpace(sc.Text()), "redis_version:")
		if !found {
			continue
		}
		parts := strings.SplitN(v, ".", 3)
		if len(parts) < 2 {
			return 0, 0, false
		}
		maj, err1 := strconv.Atoi(parts[0])
		mnr, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return 0, 0, false
		}
		return maj, mnr, true
	}
	return 0, 0, false
}
