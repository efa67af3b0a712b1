package ports

import (
	"context"

	"github.com/avatarctic/clauseguard/internal/core/domain/analysis"
	"github.com/avatarctic/clauseguard/internal/core/domain/document"
)

// DocumentRenderer produces the downloadable report.
type DocumentRenderer interface {
	ContentType() string
	Render(ctx context.Context, req *analysis.ExportRequest) ([]byte, error)
}

// TextExtractor pulls contract text out of an uploaded file.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, data []byte) (*document.Extraction, error)
}
