package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	impl "github.com/avatarctic/clauseguard/internal/application/services"
	"github.com/avatarctic/clauseguard/internal/core/ports"
	infraredis "github.com/avatarctic/clauseguard/internal/infrastructure/redis"
	"github.com/avatarctic/clauseguard/internal/infrastructure/repositories"
	tmocks "github.com/avatarctic/clauseguard/test/mocks"
	"github.com/avatarctic/clauseguard/test/redistest"
)

func newRedisLimiter(t *testing.T) (*impl.RateLimiterService, *tmocks.MetricsMock, func(time.Duration)) {
	t.Helper()
	client, server := redistest.New(t)
	repo := repositories.NewRateLimitRepository(infraredis.NewKVStore(client))
	m := &tmocks.MetricsMock{}
	return impl.NewRateLimiterService(repo, m, logrus.New()), m, server.FastForward
}

func TestRateLimiter_ScenarioLimitThree(t *testing.T) {
	limiter, metrics, _ := newRedisLimiter(t)
	ctx := context.Background()

	for i, want := range []int{2, 1, 0} {
		res := limiter.Check(ctx, "ip:1.2.3.4", 3, 60*time.Second)
		require.True(t, res.Admitted, "call %d", i+1)
		require.Equal(t, want, res.Remaining, "call %d", i+1)
		require.Equal(t, 3, res.Limit)
	}

	res := limiter.Check(ctx, "ip:1.2.3.4", 3, 60*time.Second)
	require.False(t, res.Admitted)
	require.Equal(t, 0, res.Remaining)
	require.WithinDuration(t, time.Now().Add(60*time.Second), res.ResetAt, 2*time.Second)
	require.False(t, res.FailOpen)

	require.Equal(t, 3, metrics.RateLimitCount("ip", "admitted"))
	require.Equal(t, 1, metrics.RateLimitCount("ip", "rejected"))
}

func TestRateLimiter_NewWindowAfterExpiry(t *testing.T) {
	limiter, _, fastForward := newRedisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.True(t, limiter.Check(ctx, "analyze:10.0.0.1", 2, time.Minute).Admitted)
	}
	require.False(t, limiter.Check(ctx, "analyze:10.0.0.1", 2, time.Minute).Admitted)

	fastForward(61 * time.Second)

	res := limiter.Check(ctx, "analyze:10.0.0.1", 2, time.Minute)
	require.True(t, res.Admitted)
	require.Equal(t, 1, res.Remaining, "counter resets with the new window")
}

func TestRateLimiter_IdentifiersAreIndependent(t *testing.T) {
	limiter, _, _ := newRedisLimiter(t)
	ctx := context.Background()

	require.True(t, limiter.Check(ctx, "sample:a", 1, time.Minute).Admitted)
	require.False(t, limiter.Check(ctx, "sample:a", 1, time.Minute).Admitted)
	require.True(t, limiter.Check(ctx, "sample:b", 1, time.Minute).Admitted)
}

func TestRateLimiter_FailsOpenWhenStoreUnreachable(t *testing.T) {
	repo := repositories.NewRateLimitRepository(infraredis.NewKVStore(redistest.Unreachable(t)))
	m := &tmocks.MetricsMock{}
	limiter := impl.NewRateLimiterService(repo, m, logrus.New())

	res := limiter.Check(context.Background(), "ip:1.2.3.4", 5, 30*time.Second)
	require.True(t, res.Admitted)
	require.Equal(t, 5, res.Remaining)
	require.Equal(t, 5, res.Limit)
	require.True(t, res.FailOpen)
	require.WithinDuration(t, time.Now().Add(30*time.Second), res.ResetAt, 2*time.Second)
	require.Equal(t, 1, m.RateLimitCount("ip", "fail_open"))
}

func TestRateLimiter_FailsOpenOnIncrementError(t *testing.T) {
	repo := &tmocks.RateLimitRepositoryMock{
		CountFn:     func(ctx context.Context, id string) (int, bool, error) { return 1, true, nil },
		IncrementFn: func(ctx context.Context, id string) (int, error) { return 0, errors.New("boom") },
	}
	res := impl.NewRateLimiterService(repo, nil, nil).Check(context.Background(), "x:y", 3, time.Minute)
	require.True(t, res.Admitted)
	require.Equal(t, 3, res.Remaining)
	require.True(t, res.FailOpen)
}

func TestRateLimiter_RestoresMissingExpiry(t *testing.T) {
	extended := false
	repo := &tmocks.RateLimitRepositoryMock{
		CountFn:     func(ctx context.Context, id string) (int, bool, error) { return 1, true, nil },
		IncrementFn: func(ctx context.Context, id string) (int, error) { return 1, nil },
		RemainingFn: func(ctx context.Context, id string) (time.Duration, error) { return ports.TTLNoExpiry, nil },
		ExtendFn: func(ctx context.Context, id string, window time.Duration) error {
			extended = true
			require.Equal(t, time.Minute, window)
			return nil
		},
	}
	res := impl.NewRateLimiterService(repo, nil, nil).Check(context.Background(), "x:y", 3, time.Minute)
	require.True(t, res.Admitted)
	require.Equal(t, 2, res.Remaining)
	require.True(t, extended)
}

func TestRateLimiter_OvershootFromConcurrentIncrementIsRejected(t *testing.T) {
	repo := &tmocks.RateLimitRepositoryMock{
		CountFn:     func(ctx context.Context, id string) (int, bool, error) { return 2, true, nil },
		IncrementFn: func(ctx context.Context, id string) (int, error) { return 4, nil },
		RemainingFn: func(ctx context.Context, id string) (time.Duration, error) { return 10 * time.Second, nil },
	}
	res := impl.NewRateLimiterService(repo, nil, nil).Check(context.Background(), "x:y", 3, time.Minute)
	require.False(t, res.Admitted)
	require.Equal(t, 0, res.Remaining)
	require.WithinDuration(t, time.Now().Add(10*time.Second), res.ResetAt, 2*time.Second)
}

func TestRateLimiter_InvalidPolicyAdmits(t *testing.T) {
	res := impl.NewRateLimiterService(&tmocks.RateLimitRepositoryMock{}, nil, nil).Check(context.Background(), "x:y", 0, time.Minute)
	require.True(t, res.Admitted)
}
