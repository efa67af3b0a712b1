package document

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/avatarctic/clauseguard/internal/core/domain/analysis"
	"github.com/avatarctic/clauseguard/internal/core/ports"
)

const disclaimer = "This report is an automated risk review and is not legal advice. Consult a qualified lawyer before signing."

type rgb struct{ r, g, b int }

var badgeColors = map[analysis.RiskLevel]rgb{
	analysis.RiskLow:    {46, 125, 50},
	analysis.RiskMedium: {245, 166, 35},
	analysis.RiskHigh:   {198, 40, 40},
}

// PDFRenderer renders analysis exports as A4 PDF documents.
type PDFRenderer struct {
	title string
	now   func() time.Time
}

var _ ports.DocumentRenderer = (*PDFRenderer)(nil)

func NewPDFRenderer(companyName string) *PDFRenderer {
	title := "Contract Risk Report"
	if companyName != "" {
		title = companyName + " " + title
	}
	return &PDFRenderer{title: title, now: time.Now}
}

func (r *PDFRenderer) ContentType() string { return "application/pdf" }

func (r *PDFRenderer) Render(ctx context.Context, req *analysis.ExportRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-20)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.MultiCell(0, 4, tr(disclaimer), "", "C", false)
		pdf.CellFormat(0, 4, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(20, 20, 20)
	pdf.CellFormat(0, 10, tr(r.title), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 6, "Generated "+r.now().UTC().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	c := badgeColors[req.RiskLevel]
	pdf.SetFillColor(c.r, c.g, c.b)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(50, 9, "RISK: "+string(req.RiskLevel), "", 1, "C", true, 0, "")
	pdf.Ln(6)

	pdf.SetTextColor(30, 30, 30)
	pdf.SetFont("Helvetica", "", 11)
	for _, para := range strings.Split(strings.ReplaceAll(req.Analysis, "\r\n", "\n"), "\n") {
		line := strings.TrimRight(para, " \t")
		if line == "" {
			pdf.Ln(3)
			continue
		}
		if strings.HasPrefix(line, "#") {
			pdf.SetFont("Helvetica", "B", 13)
			pdf.MultiCell(0, 7, tr(strings.TrimSpace(strings.TrimLeft(line, "#"))), "", "L", false)
			pdf.SetFont("Helvetica", "", 11)
			continue
		}
		pdf.MultiCell(0, 5.5, tr(line), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
