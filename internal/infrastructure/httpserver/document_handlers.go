package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/clauseguard/internal/core/domain/analysis"
	"github.com/avatarctic/clauseguard/internal/core/domain/document"
)

func (s *Server) exportReport(c echo.Context) error {
	var req analysis.ExportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, validationMessage(err))
	}

	out, err := s.renderer.Render(c.Request().Context(), &req)
	if err != nil {
		if errors.Is(err, analysis.ErrInvalidExportRequest) {
			return echo.NewHTTPError(http.StatusBadRequest, validationMessage(err))
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate report.").SetInternal(err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="contract-risk-report.pdf"`)
	return c.Blob(http.StatusOK, s.renderer.ContentType(), out)
}

func (s *Server) extractText(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "A file upload is required.")
	}
	if fh.Size > document.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File exceeds the 5 MB limit.")
	}

	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Unable to read upload.")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, document.MaxUploadBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Unable to read upload.")
	}

	res, err := s.extractor.Extract(c.Request().Context(), fh.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, document.ErrTooLarge):
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File exceeds the 5 MB limit.")
		case errors.Is(err, document.ErrUnsupportedFormat):
			return echo.NewHTTPError(http.StatusBadRequest, "Unsupported file. Upload a PDF, DOCX or TXT file.")
		case errors.Is(err, document.ErrNoText):
			return echo.NewHTTPError(http.StatusBadRequest, "No readable text found in the document.")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to process document.").SetInternal(err)
		}
	}
	return c.JSON(http.StatusOK, res)
}
