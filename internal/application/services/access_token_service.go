package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/clauseguard/internal/core/domain/access"
	"github.com/avatarctic/clauseguard/internal/core/ports"
)

const secretBytes = 32

// AccessTokenConfig groups the access token lifecycle parameters.
type AccessTokenConfig struct {
	ConsumeDelayMin time.Duration
	ConsumeDelayMax time.Duration
}

// AccessTokenService issues and redeems single-use bearer secrets.
type AccessTokenService struct {
	repo     ports.AccessTokenRepository
	metrics  ports.Metrics
	logger   *logrus.Logger
	delayMin time.Duration
	delayMax time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration)
}

var _ ports.AccessTokenService = (*AccessTokenService)(nil)

func NewAccessTokenService(repo ports.AccessTokenRepository, cfg *AccessTokenConfig, metrics ports.Metrics, logger *logrus.Logger) *AccessTokenService {
	dmin := 100 * time.Millisecond
	dmax := 150 * time.Millisecond
	if cfg != nil {
		if cfg.ConsumeDelayMin >= 0 {
			dmin = cfg.ConsumeDelayMin
		}
		if cfg.ConsumeDelayMax >= dmin {
			dmax = cfg.ConsumeDelayMax
		} else {
			dmax = dmin
		}
	}
	return &AccessTokenService{
		repo:     repo,
		metrics:  metrics,
		logger:   logger,
		delayMin: dmin,
		delayMax: dmax,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Generate returns a fresh 256-bit hex secret.
func (s *AccessTokenService) Generate() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (s *AccessTokenService) Issue(ctx context.Context, secret string) error {
	rec := &access.Record{Created: s.now().UTC(), Status: access.StatusValid}
	if err := s.repo.Save(ctx, access.HashSecret(secret), rec); err != nil {
		s.observe("issue", "error")
		if s.logger != nil {
			s.logger.WithField("token_hash", access.LogFragment(secret)).WithError(err).Error("failed to issue access token")
		}
		return err
	}
	s.observe("issue", "ok")
	if s.logger != nil {
		s.logger.WithField("token_hash", access.LogFragment(secret)).Info("access token issued")
	}
	return nil
}

// Consume redeems the secret. Misses are delayed by a random 100-150ms so
// "never issued" and "already used" look alike and guessing stays slow.
func (s *AccessTokenService) Consume(ctx context.Context, secret string) bool {
	if secret == "" {
		s.delay(ctx)
		s.observe("consume", "miss")
		return false
	}
	_, found, err := s.repo.Take(ctx, access.HashSecret(secret))
	if err != nil {
		// Fail closed: granting access on a store error would be free analysis.
		if s.logger != nil {
			s.logger.WithField("token_hash", access.LogFragment(secret)).WithError(err).Error("access token consume failed; rejecting")
		}
		s.delay(ctx)
		s.observe("consume", "error")
		return false
	}
	if !found {
		s.delay(ctx)
		s.observe("consume", "miss")
		return false
	}
	s.observe("consume", "ok")
	if s.logger != nil {
		s.logger.WithField("token_hash", access.LogFragment(secret)).Info("access token consumed")
	}
	return true
}

func (s *AccessTokenService) Reactivate(ctx context.Context, secret string) bool {
	rec := &access.Record{Created: s.now().UTC(), Status: access.StatusReactivated}
	if err := s.repo.Save(ctx, access.HashSecret(secret), rec); err != nil {
		s.observe("reactivate", "error")
		if s.logger != nil {
			s.logger.WithField("token_hash", access.LogFragment(secret)).WithError(err).Error("failed to reactivate access token")
		}
		return false
	}
	s.observe("reactivate", "ok")
	if s.logger != nil {
		s.logger.WithField("token_hash", access.LogFragment(secret)).Warn("access token reactivated")
	}
	return true
}

// Check is a diagnostic probe; it never changes the record.
func (s *AccessTokenService) Check(ctx context.Context, secret string) bool {
	ok, err := s.repo.Exists(ctx, access.HashSecret(secret))
	if err != nil {
		if s.logger != nil {
			s.logger.WithField("token_hash", access.LogFragment(secret)).WithError(err).Warn("access token check failed")
		}
		return false
	}
	return ok
}

func (s *AccessTokenService) delay(ctx context.Context) {
	d := s.delayMin
	if spread := s.delayMax - s.delayMin; spread > 0 {
		if n, err := rand.Int(rand.Reader, big.NewInt(int64(spread))); err == nil {
			d += time.Duration(n.Int64())
		}
	}
	if d > 0 {
		s.sleep(ctx, d)
	}
}

func (s *AccessTokenService) observe(operation, result string) {
	if s.metrics != nil {
		s.metrics.ObserveTokenOperation(operation, result)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
