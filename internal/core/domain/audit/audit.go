package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is one row of the audit trail.
type Event struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Action    string    `json:"action" db:"action"`
	Subject   string    `json:"subject" db:"subject"`
	Details   any       `json:"details" db:"details"`
	IPAddress string    `json:"ip_address" db:"ip_address"`
	UserAgent string    `json:"user_agent" db:"user_agent"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

type Action string

const (
	ActionTokenIssued             Action = "token.issued"
	ActionTokenReactivated        Action = "token.reactivated"
	ActionTokenChecked            Action = "token.checked"
	ActionWebhookProcessed        Action = "webhook.processed"
	ActionWebhookSignatureFailure Action = "webhook.signature_failed"
	ActionOperatorLogin           Action = "operator.login"
	ActionOperatorLoginFailed     Action = "operator.login_failed"
)

// RecordRequest represents the request to create an audit entry
type RecordRequest struct {
	Action    Action `json:"action"`
	Subject   string `json:"subject"`
	Details   any    `json:"details,omitempty"`
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

// Filter narrows audit queries.
type Filter struct {
	Action    *Action    `json:"action,omitempty"`
	Subject   *string    `json:"subject,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
}
