package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/avatarctic/clauseguard/internal/core/domain/access"
	"github.com/avatarctic/clauseguard/internal/core/domain/analysis"
	"github.com/avatarctic/clauseguard/internal/core/domain/ratelimit"
	"github.com/avatarctic/clauseguard/internal/core/ports"
)

// AnalysisConfig groups the gate's quotas and cache lifetime.
type AnalysisConfig struct {
	Paid     ratelimit.Policy
	Sample   ratelimit.Policy
	CacheTTL time.Duration
	// UpstreamTimeout bounds one shared analyzer call.
	UpstreamTimeout time.Duration
}

// AnalysisService admits, authorizes and then forwards analysis requests.
type AnalysisService struct {
	limiter  ports.RateLimiterService
	tokens   ports.AccessTokenService
	analyzer ports.RiskAnalyzer
	cache    ports.Cache
	cfg      AnalysisConfig
	inflight singleflight.Group
	logger   *logrus.Logger
}

var _ ports.AnalysisService = (*AnalysisService)(nil)

func NewAnalysisService(limiter ports.RateLimiterService, tokens ports.AccessTokenService, analyzer ports.RiskAnalyzer, cache ports.Cache, cfg *AnalysisConfig, logger *logrus.Logger) *AnalysisService {
	c := AnalysisConfig{
		Paid:            ratelimit.Policy{Limit: 10, Window: time.Hour},
		Sample:          ratelimit.Policy{Limit: 3, Window: 24 * time.Hour},
		CacheTTL:        24 * time.Hour,
		UpstreamTimeout: 90 * time.Second,
	}
	if cfg != nil {
		if cfg.Paid.Valid() {
			c.Paid = cfg.Paid
		}
		if cfg.Sample.Valid() {
			c.Sample = cfg.Sample
		}
		if cfg.CacheTTL > 0 {
			c.CacheTTL = cfg.CacheTTL
		}
		if cfg.UpstreamTimeout > 0 {
			c.UpstreamTimeout = cfg.UpstreamTimeout
		}
	}
	return &AnalysisService{limiter: limiter, tokens: tokens, analyzer: analyzer, cache: cache, cfg: c, logger: logger}
}

// Analyze runs validate -> rate limit -> consume token -> analyze. The token is
// spent before the upstream call; an upstream failure afterwards is recovered
// only by operator reactivation.
func (s *AnalysisService) Analyze(ctx context.Context, req *analysis.Request, clientID string) (*analysis.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tier := req.Tier()
	policy, bucket := s.cfg.Paid, "analyze"
	if tier == analysis.TierSample {
		policy, bucket = s.cfg.Sample, "sample"
	}

	decision := s.limiter.Check(ctx, bucket+":"+clientID, policy.Limit, policy.Window)
	if !decision.Admitted {
		return nil, &analysis.RateLimitedError{Decision: decision}
	}

	if tier == analysis.TierPaid {
		token := strings.TrimSpace(req.AccessToken)
		if token == "" {
			return nil, analysis.ErrTokenRequired
		}
		if !s.tokens.Consume(ctx, token) {
			if s.logger != nil {
				s.logger.WithFields(logrus.Fields{"client": clientID, "token_hash": access.LogFragment(token)}).Info("analysis rejected: token not redeemable")
			}
			return nil, analysis.ErrInvalidToken
		}
	}

	key := cacheKey(tier, req.ContractText)
	if cached, ok := s.lookup(ctx, key); ok {
		return &analysis.Result{Analysis: cached, Cached: true, RateLimit: decision}, nil
	}

	text, err := s.shared(ctx, key, req.ContractText, tier)
	if err != nil {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"client": clientID, "tier": tier}).WithError(err).Error("risk analysis failed")
		}
		return nil, classifyUpstream(err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, []byte(text), s.cfg.CacheTTL); err != nil && s.logger != nil {
			s.logger.WithError(err).Warn("failed to cache analysis")
		}
	}
	return &analysis.Result{Analysis: text, Cached: false, RateLimit: decision}, nil
}

// shared runs one analyzer call per cache key. The call is detached from any
// single caller's context, since every waiter has already spent its token;
// each caller still stops waiting when its own context ends.
func (s *AnalysisService) shared(ctx context.Context, key, text string, tier analysis.Tier) (string, error) {
	ch := s.inflight.DoChan(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.UpstreamTimeout)
		defer cancel()
		return s.analyzer.Analyze(callCtx, text, tier)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *AnalysisService) lookup(ctx context.Context, key string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	b, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		if s.logger != nil {
			s.logger.WithError(err).Warn("analysis cache read failed; treating as miss")
		}
		return "", false
	}
	if !ok || len(b) == 0 {
		return "", false
	}
	return string(b), true
}

func cacheKey(tier analysis.Tier, text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return "analysis:" + string(tier) + ":" + hex.EncodeToString(sum[:])
}

// classifyUpstream keeps the retryable/terminal split and drops upstream detail.
func classifyUpstream(err error) error {
	switch {
	case errors.Is(err, analysis.ErrUpstreamRateLimited):
		return analysis.ErrUpstreamRateLimited
	case errors.Is(err, analysis.ErrUpstreamMisconfigured):
		return analysis.ErrUpstreamMisconfigured
	default:
		return analysis.ErrUpstreamUnavailable
	}
}
