package analysis

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/avatarctic/clauseguard/internal/core/domain/ratelimit"
)

const (
	MinContractLength = 50
	MaxContractLength = 50000
	MaxExportLength   = 50000
)

var (
	ErrInvalidInput          = errors.New("invalid analysis request")
	ErrTokenRequired         = errors.New("access token required")
	ErrInvalidToken          = errors.New("invalid or expired access token")
	ErrUpstreamRateLimited   = errors.New("analysis service is busy")
	ErrUpstreamMisconfigured = errors.New("analysis service is misconfigured")
	ErrUpstreamUnavailable   = errors.New("analysis service unavailable")
	ErrInvalidExportRequest  = errors.New("invalid export request")
)

// Tier selects the depth of the report and which quota applies.
type Tier string

const (
	TierPaid   Tier = "paid"
	TierSample Tier = "sample"
)

// Request is the body of an analysis submission.
type Request struct {
	ContractText string `json:"contractText" validate:"required"`
	AccessToken  string `json:"accessToken,omitempty"`
	IsSample     bool   `json:"isSample"`
}

func (r *Request) Tier() Tier {
	if r.IsSample {
		return TierSample
	}
	return TierPaid
}

// Validate checks shape and size only; it never touches the store.
func (r *Request) Validate() error {
	n := utf8.RuneCountInString(strings.TrimSpace(r.ContractText))
	if n < MinContractLength {
		return fmt.Errorf("%w: contract text must be at least %d characters", ErrInvalidInput, MinContractLength)
	}
	if n > MaxContractLength {
		return fmt.Errorf("%w: contract text must be at most %d characters", ErrInvalidInput, MaxContractLength)
	}
	return nil
}

// Result is returned to the client on success.
type Result struct {
	Analysis string `json:"analysis"`
	Cached   bool   `json:"cached"`
	// RateLimit is the admitting decision, exposed as response headers.
	RateLimit ratelimit.Result `json:"-"`
}

// RateLimitedError carries the limiter decision so callers can expose reset metadata.
type RateLimitedError struct {
	Decision ratelimit.Result
}

func (e *RateLimitedError) Error() string {
	return "rate limit exceeded"
}

// RiskLevel is the overall rating printed on exported reports.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// ExportRequest is the body of a document export.
type ExportRequest struct {
	Analysis  string    `json:"analysis" validate:"required"`
	RiskLevel RiskLevel `json:"riskLevel" validate:"required"`
}

func (r *ExportRequest) Validate() error {
	if strings.TrimSpace(r.Analysis) == "" {
		return fmt.Errorf("%w: analysis is required", ErrInvalidExportRequest)
	}
	if utf8.RuneCountInString(r.Analysis) > MaxExportLength {
		return fmt.Errorf("%w: analysis must be at most %d characters", ErrInvalidExportRequest, MaxExportLength)
	}
	if !r.RiskLevel.Valid() {
		return fmt.Errorf("%w: riskLevel must be one of LOW, MEDIUM, HIGH", ErrInvalidExportRequest)
	}
	return nil
}
