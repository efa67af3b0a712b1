package services

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/clauseguard/internal/core/domain/ratelimit"
	"github.com/avatarctic/clauseguard/internal/core/ports"
)

// RateLimiterService implements a fixed window counter per identifier.
// Windows reset hard at expiry, so up to 2*limit requests can pass across a
// boundary.
type RateLimiterService struct {
	repo    ports.RateLimitRepository
	metrics ports.Metrics
	logger  *logrus.Logger
	now     func() time.Time
}

var _ ports.RateLimiterService = (*RateLimiterService)(nil)

func NewRateLimiterService(repo ports.RateLimitRepository, metrics ports.Metrics, logger *logrus.Logger) *RateLimiterService {
	return &RateLimiterService{repo: repo, metrics: metrics, logger: logger, now: time.Now}
}

func (s *RateLimiterService) Check(ctx context.Context, identifier string, limit int, window time.Duration) ratelimit.Result {
	now := s.now()
	if limit <= 0 || window <= 0 {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"identifier": identifier, "limit": limit, "window": window}).Error("rate limiter: invalid policy; admitting request")
		}
		return s.failOpen(identifier, max(limit, 0), window, now, nil)
	}

	count, ok, err := s.repo.Count(ctx, identifier)
	if err != nil {
		return s.failOpen(identifier, limit, window, now, err)
	}

	if !ok {
		if err := s.repo.Open(ctx, identifier, window); err != nil {
			return s.failOpen(identifier, limit, window, now, err)
		}
		return s.decide(identifier, ratelimit.Result{Admitted: true, Limit: limit, Remaining: limit - 1, ResetAt: now.Add(window)})
	}

	if count >= limit {
		ttl, err := s.repo.Remaining(ctx, identifier)
		if err != nil {
			return s.failOpen(identifier, limit, window, now, err)
		}
		ttl = s.repairExpiry(ctx, identifier, ttl, window)
		return s.decide(identifier, ratelimit.Result{Admitted: false, Limit: limit, Remaining: 0, ResetAt: resetAt(now, ttl, window)})
	}

	n, err := s.repo.Increment(ctx, identifier)
	if err != nil {
		return s.failOpen(identifier, limit, window, now, err)
	}
	ttl, err := s.repo.Remaining(ctx, identifier)
	if err != nil {
		return s.failOpen(identifier, limit, window, now, err)
	}
	// n == 1 means the window expired between Count and Increment and INCR
	// recreated the key without an expiry.
	ttl = s.repairExpiry(ctx, identifier, ttl, window)

	if n > limit {
		// Concurrent increments overshot the limit; only the first limit win.
		return s.decide(identifier, ratelimit.Result{Admitted: false, Limit: limit, Remaining: 0, ResetAt: resetAt(now, ttl, window)})
	}
	return s.decide(identifier, ratelimit.Result{Admitted: true, Limit: limit, Remaining: limit - n, ResetAt: resetAt(now, ttl, window)})
}

// repairExpiry restores the window TTL on a counter that has none.
func (s *RateLimiterService) repairExpiry(ctx context.Context, identifier string, ttl, window time.Duration) time.Duration {
	if ttl != ports.TTLNoExpiry {
		return ttl
	}
	if err := s.repo.Extend(ctx, identifier, window); err != nil && s.logger != nil {
		s.logger.WithField("identifier", identifier).WithError(err).Warn("rate limiter: failed to restore window expiry")
	}
	return window
}

func (s *RateLimiterService) decide(identifier string, res ratelimit.Result) ratelimit.Result {
	outcome := "admitted"
	if !res.Admitted {
		outcome = "rejected"
	}
	if s.metrics != nil {
		s.metrics.ObserveRateLimit(bucketOf(identifier), outcome)
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"identifier": identifier, "limit": res.Limit, "remaining": res.Remaining, "outcome": outcome}).Debug("rate limiter window state")
	}
	return res
}

func (s *RateLimiterService) failOpen(identifier string, limit int, window time.Duration, now time.Time, err error) ratelimit.Result {
	if err != nil && s.logger != nil {
		s.logger.WithField("identifier", identifier).WithError(err).Warn("rate limiter error; allowing request (fail-open)")
	}
	if s.metrics != nil {
		s.metrics.ObserveRateLimit(bucketOf(identifier), "fail_open")
	}
	return ratelimit.Result{Admitted: true, Limit: limit, Remaining: limit, ResetAt: now.Add(window), FailOpen: true}
}

func resetAt(now time.Time, ttl, window time.Duration) time.Time {
	if ttl > 0 {
		return now.Add(ttl)
	}
	return now.Add(window)
}

// bucketOf keeps metric label cardinality bounded: "sample:1.2.3.4" -> "sample".
func bucketOf(identifier string) string {
	if i := strings.IndexByte(identifier, ':'); i > 0 {
		return identifier[:i]
	}
	return "default"
}
