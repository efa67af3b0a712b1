package ports

import (
	"context"

	"github.com/avatarctic/clauseguard/internal/core/domain/audit"
)

// AuditRepository defines the interface for audit trail storage
type AuditRepository interface {
	Create(ctx context.Context, event *audit.Event) error
	List(ctx context.Context, filter *audit.Filter) ([]*audit.Event, error)
}

// AuditService records security relevant events. Record never fails the caller.
type AuditService interface {
	Record(ctx context.Context, req *audit.RecordRequest)
	List(ctx context.Context, filter *audit.Filter) ([]*audit.Event, error)
}
