package ports

import (
	"context"

	"github.com/avatarctic/clauseguard/internal/core/domain/analysis"
)

// RiskAnalyzer is the external AI collaborator.
type RiskAnalyzer interface {
	Analyze(ctx context.Context, contractText string, tier analysis.Tier) (string, error)
}

// AnalysisService is the gate in front of the analyzer.
type AnalysisService interface {
	Analyze(ctx context.Context, req *analysis.Request, clientID string) (*analysis.Result, error)
}
