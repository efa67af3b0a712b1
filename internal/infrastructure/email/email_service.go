package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/clauseguard/internal/core/ports"
)

//go:embed templates/*.html
var defaultTemplates embed.FS

const accessTokenTemplate = "access_token.html"

// EmailConfig holds email service configuration
type EmailConfig struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	CompanyName    string
	BaseURL        string
	TemplateDir    string
	TokenTTL       time.Duration
	// APIHost overrides the SendGrid endpoint host.
	APIHost string
}

// EmailService sends access token receipts through SendGrid.
type EmailService struct {
	config   *EmailConfig
	logger   *logrus.Logger
	client   *sendgrid.Client
	template *template.Template
}

var _ ports.ReceiptMailer = (*EmailService)(nil)

// NewReceiptMailer returns a SendGrid mailer, or a no-op mailer when no API
// key is configured.
func NewReceiptMailer(config *EmailConfig, logger *logrus.Logger) (ports.ReceiptMailer, error) {
	if config.SendGridAPIKey == "" {
		if logger != nil {
			logger.Warn("SENDGRID_API_KEY not set; access token receipts are disabled")
		}
		return noopMailer{}, nil
	}

	tmpl, err := loadTemplate(config.TemplateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load email templates: %w", err)
	}

	request := sendgrid.GetRequest(config.SendGridAPIKey, "/v3/mail/send", config.APIHost)
	request.Method = "POST"

	return &EmailService{
		config:   config,
		logger:   logger,
		client:   &sendgrid.Client{Request: request},
		template: tmpl,
	}, nil
}

// loadTemplate prefers an override in dir and falls back to the built-in one.
func loadTemplate(dir string) (*template.Template, error) {
	if dir != "" {
		path := filepath.Join(dir, accessTokenTemplate)
		if _, err := os.Stat(path); err == nil {
			return template.ParseFiles(path)
		}
	}
	return template.ParseFS(defaultTemplates, "templates/"+accessTokenTemplate)
}

type accessTokenData struct {
	CompanyName string
	Token       string
	AnalyzeURL  string
	ValidHours  int
}

func (e *EmailService) SendAccessToken(ctx context.Context, to, token string) error {
	ttl := e.config.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	var buf bytes.Buffer
	if err := e.template.Execute(&buf, accessTokenData{
		CompanyName: e.config.CompanyName,
		Token:       token,
		AnalyzeURL:  e.config.BaseURL + "/",
		ValidHours:  int(ttl / time.Hour),
	}); err != nil {
		return fmt.Errorf("failed to render access token email: %w", err)
	}

	subject := fmt.Sprintf("Your %s access token", e.config.CompanyName)
	return e.sendEmail(ctx, to, subject, buf.String())
}

func (e *EmailService) sendEmail(ctx context.Context, to, subject, htmlContent string) error {
	from := mail.NewEmail(e.config.FromName, e.config.FromEmail)
	recipient := mail.NewEmail("", to)
	message := mail.NewSingleEmail(from, subject, recipient, "", htmlContent)

	response, err := e.client.SendWithContext(ctx, message)
	if err != nil {
		if e.logger != nil {
			e.logger.WithField("subject", subject).WithError(err).Error("failed to send email")
		}
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 300 {
		if e.logger != nil {
			e.logger.WithFields(logrus.Fields{"subject": subject, "status_code": response.StatusCode}).Error("email provider rejected message")
		}
		return fmt.Errorf("email provider returned status %d", response.StatusCode)
	}

	if e.logger != nil {
		e.logger.WithFields(logrus.Fields{"subject": subject, "status_code": response.StatusCode}).Info("email sent")
	}
	return nil
}

type noopMailer struct{}

func (noopMailer) SendAccessToken(ctx context.Context, email, token string) error { return nil }
