package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/clauseguard/internal/core/domain/audit"
	"github.com/avatarctic/clauseguard/internal/core/ports"
)

type AuditService struct {
	repo   ports.AuditRepository
	logger *logrus.Logger
	now    func() time.Time
}

func NewAuditService(repo ports.AuditRepository, logger *logrus.Logger) *AuditService {
	return &AuditService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

var _ ports.AuditService = (*AuditService)(nil)

// Record persists an audit event. Persistence failures are logged and never
// surface to the caller.
func (s *AuditService) Record(ctx context.Context, req *audit.RecordRequest) {
	if req == nil || s.repo == nil {
		return
	}
	event := &audit.Event{
		ID:        uuid.New(),
		Action:    string(req.Action),
		Subject:   req.Subject,
		Details:   req.Details,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		Timestamp: s.now().UTC(),
	}

	if err := s.repo.Create(ctx, event); err != nil {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"action": req.Action, "subject": req.Subject}).WithError(err).Error("failed to persist audit event")
		}
		return
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"action": req.Action, "subject": req.Subject, "event_id": event.ID}).Debug("audit event persisted")
	}
}

func (s *AuditService) List(ctx context.Context, filter *audit.Filter) ([]*audit.Event, error) {
	if filter == nil {
		filter = &audit.Filter{}
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}
