package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/clauseguard/internal/core/domain/audit"
	"github.com/avatarctic/clauseguard/internal/core/ports"
)

type auditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewAuditRepository stores audit events in the audit_events table.
func NewAuditRepository(database *sqlx.DB, logger *logrus.Logger) ports.AuditRepository {
	return &auditRepository{
		db:     database,
		logger: logger,
	}
}

func (r *auditRepository) Create(ctx context.Context, event *audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var detailsJSON []byte
	if event.Details != nil {
		b, err := json.Marshal(event.Details)
		if err != nil {
			return err
		}
		detailsJSON = b
	}

	query := `
		INSERT INTO audit_events (id, action, subject, details, ip_address, user_agent, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.Action,
		event.Subject,
		detailsJSON,
		event.IPAddress,
		event.UserAgent,
		event.Timestamp,
	)
	if err != nil {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"action": event.Action, "subject": event.Subject}).WithError(err).Error("db: failed to insert audit event")
		}
		return err
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, filter *audit.Filter) ([]*audit.Event, error) {
	query, args := buildAuditQuery(filter)
	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{"query": query, "args": len(args)}).Debug("db: executing audit list query")
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*audit.Event
	for rows.Next() {
		e := &audit.Event{}
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &e.Subject, &details, &e.IPAddress, &e.UserAgent, &e.Timestamp); err != nil {
			return nil, err
		}
		if details.Valid && details.String != "" {
			var v interface{}
			if err := json.Unmarshal([]byte(details.String), &v); err == nil {
				e.Details = v
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func buildAuditQuery(filter *audit.Filter) (string, []interface{}) {
	query := "SELECT id, action, subject, details, ip_address, user_agent, timestamp FROM audit_events"
	var conditions []string
	var args []interface{}
	next := func(cond string, v interface{}) {
		args = append(args, v)
		conditions = append(conditions, cond+" $"+strconv.Itoa(len(args)))
	}

	if filter != nil {
		if filter.Action != nil {
			next("action =", string(*filter.Action))
		}
		if filter.Subject != nil {
			next("subject =", *filter.Subject)
		}
		if filter.StartTime != nil {
			next("timestamp >=", *filter.StartTime)
		}
		if filter.EndTime != nil {
			next("timestamp <=", *filter.EndTime)
		}
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC"

	if filter != nil {
		if filter.Limit > 0 {
			args = append(args, filter.Limit)
			query += " LIMIT $" + strconv.Itoa(len(args))
		}
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			query += " OFFSET $" + strconv.Itoa(len(args))
		}
	}
	return query, args
}

// logAuditRepository writes events to the structured log when no database is configured.
type logAuditRepository struct {
	logger *logrus.Logger
}

func NewLogAuditRepository(logger *logrus.Logger) ports.AuditRepository {
	return &logAuditRepository{logger: logger}
}

func (r *logAuditRepository) Create(ctx context.Context, event *audit.Event) error {
	if r.logger == nil {
		return nil
	}
	r.logger.WithFields(logrus.Fields{
		"audit":      true,
		"event_id":   event.ID,
		"action":     event.Action,
		"subject":    event.Subject,
		"details":    event.Details,
		"ip_address": event.IPAddress,
		"user_agent": event.UserAgent,
	}).Info("audit event")
	return nil
}

// List is unsupported for the log sink and returns no events.
func (r *logAuditRepository) List(ctx context.Context, filter *audit.Filter) ([]*audit.Event, error) {
	return nil, nil
}
