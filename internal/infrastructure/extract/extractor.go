package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/clauseguard/internal/core/domain/document"
	"github.com/avatarctic/clauseguard/internal/core/ports"
)

var (
	paragraphEnd = regexp.MustCompile(`</w:p>`)
	lineBreak    = regexp.MustCompile(`<w:(br|cr)[^>]*/>|<w:tab[^>]*/>`)
	xmlTag       = regexp.MustCompile(`<[^>]+>`)
	spaceRuns    = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	lineEdges    = regexp.MustCompile(` ?\n ?`)
	blankRuns    = regexp.MustCompile(`\n{3,}`)
)

// openPDF is swapped in tests to simulate parser faults.
var openPDF = func(r io.ReaderAt, size int64) (*pdf.Reader, error) {
	return pdf.NewReader(r, size)
}

// Extractor recovers plain text from uploaded pdf, docx and txt contracts.
type Extractor struct {
	logger *logrus.Logger
}

var _ ports.TextExtractor = (*Extractor)(nil)

func NewExtractor(logger *logrus.Logger) *Extractor {
	return &Extractor{logger: logger}
}

func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (*document.Extraction, error) {
	if len(data) > document.MaxUploadBytes {
		return nil, document.ErrTooLarge
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	var (
		text string
		err  error
	)
	switch format {
	case "pdf":
		text, err = extractPDF(ctx, data)
	case "docx":
		text, err = extractDOCX(data)
	case "txt":
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%w: text file is not valid UTF-8", document.ErrUnsupportedFormat)
		}
		text = string(data)
	default:
		return nil, document.ErrUnsupportedFormat
	}
	if err != nil {
		if e.logger != nil {
			e.logger.WithFields(logrus.Fields{"format": format, "size": len(data)}).WithError(err).Warn("document extraction failed")
		}
		return nil, err
	}

	text = normalize(text)
	if text == "" {
		return nil, document.ErrNoText
	}
	return &document.Extraction{Text: text, Characters: utf8.RuneCountInString(text), Format: format}, nil
}

// extractPDF turns parser panics, which ledongthuc/pdf raises on some
// malformed files, into ErrUnsupportedFormat.
func extractPDF(ctx context.Context, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: malformed pdf: %v", document.ErrUnsupportedFormat, r)
		}
	}()

	reader, err := openPDF(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: unreadable pdf: %v", document.ErrUnsupportedFormat, err)
	}

	var parts []string
	for n := 1; n <= reader.NumPage(); n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(pageText) != "" {
			parts = append(parts, pageText)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func extractDOCX(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: unreadable docx: %v", document.ErrUnsupportedFormat, err)
	}
	defer doc.Close()
	return stripWordXML(doc.Editable().GetContent()), nil
}

func stripWordXML(content string) string {
	content = paragraphEnd.ReplaceAllString(content, "\n")
	content = lineBreak.ReplaceAllString(content, " ")
	content = xmlTag.ReplaceAllString(content, "")
	r := strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'")
	return r.Replace(content)
}

// normalize collapses horizontal whitespace to single spaces, trims each line
// and keeps at most one blank line between paragraphs.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\x00", "")
	s = spaceRuns.ReplaceAllString(s, " ")
	s = lineEdges.ReplaceAllString(s, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
