package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/avatarctic/clauseguard/internal/core/domain/operator"
	"github.com/avatarctic/clauseguard/internal/core/ports"
)

// OperatorConfig holds the operator credential and token settings.
type OperatorConfig struct {
	PasswordHash string
	JWTSecret    string
	TokenTTL     time.Duration
}

// OperatorService authenticates the operator with a bcrypt hashed password
// and issues HS256 session tokens.
type OperatorService struct {
	cfg    OperatorConfig
	logger *logrus.Logger
	now    func() time.Time
}

var _ ports.OperatorService = (*OperatorService)(nil)

func NewOperatorService(cfg OperatorConfig, logger *logrus.Logger) *OperatorService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	return &OperatorService{cfg: cfg, logger: logger, now: time.Now}
}

func (s *OperatorService) enabled() bool {
	return s.cfg.PasswordHash != "" && s.cfg.JWTSecret != ""
}

func (s *OperatorService) Login(ctx context.Context, password string) (string, time.Time, error) {
	if !s.enabled() {
		return "", time.Time{}, operator.ErrDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(password)); err != nil {
		return "", time.Time{}, operator.ErrInvalidCredentials
	}

	now := s.now()
	expiresAt := now.Add(s.cfg.TokenTTL)
	claims := &operator.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   operator.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign operator token: %w", err)
	}
	if s.logger != nil {
		s.logger.WithField("expires_at", expiresAt).Info("operator session issued")
	}
	return signed, expiresAt, nil
}

func (s *OperatorService) ValidateToken(tokenString string) error {
	if !s.enabled() {
		return operator.ErrDisabled
	}
	token, err := jwt.ParseWithClaims(tokenString, &operator.Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return operator.ErrInvalidToken
	}
	claims, ok := token.Claims.(*operator.Claims)
	if !ok || claims.Subject != operator.Subject {
		return operator.ErrInvalidToken
	}
	return nil
}
