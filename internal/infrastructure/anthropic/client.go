package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/avatarctic/clauseguard/configs"
	"github.com/avatarctic/clauseguard/internal/core/domain/analysis"
	"github.com/avatarctic/clauseguard/internal/core/ports"
)

const apiVersion = "2023-06-01"

const paidPrompt = `You are a contract risk analyst. Review the contract supplied by the user and produce a Markdown report with these sections:
1. Overall risk level (LOW, MEDIUM or HIGH) with a one sentence rationale.
2. Key findings: every clause that creates material risk for the signing party, quoted briefly, with why it matters.
3. Missing protections a careful reviewer would expect.
4. Suggested revisions in plain language.
Do not give legal advice; describe risks factually.`

const samplePrompt = `You are a contract risk analyst. Review the contract supplied by the user and list the three most important risks as short Markdown bullet points, then state an overall risk level (LOW, MEDIUM or HIGH). Keep the answer brief.`

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type errorEnvelope struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client calls the Anthropic Messages API and implements ports.RiskAnalyzer.
type Client struct {
	cfg     configs.AnthropicConfig
	http    *http.Client
	limiter *rate.Limiter
	metrics ports.Metrics
	logger  *logrus.Logger
}

var _ ports.RiskAnalyzer = (*Client)(nil)

func NewClient(cfg configs.AnthropicConfig, metrics ports.Metrics, logger *logrus.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.SampleMaxTokens <= 0 {
		cfg.SampleMaxTokens = 1024
	}
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		metrics: metrics,
		logger:  logger,
	}
}

func (c *Client) Analyze(ctx context.Context, contractText string, tier analysis.Tier) (string, error) {
	if c.cfg.APIKey == "" {
		c.observe("missing_key")
		return "", fmt.Errorf("%w: api key not configured", analysis.ErrUpstreamMisconfigured)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		c.observe("throttled")
		return "", fmt.Errorf("%w: %v", analysis.ErrUpstreamRateLimited, err)
	}

	req := messagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    paidPrompt,
		Messages:  []message{{Role: "user", Content: contractText}},
	}
	if tier == analysis.TierSample {
		req.MaxTokens = c.cfg.SampleMaxTokens
		req.System = samplePrompt
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.observe("transport")
		return "", fmt.Errorf("%w: %v", analysis.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		c.observe("transport")
		return "", fmt.Errorf("%w: failed to read response: %v", analysis.ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", c.statusError(resp.StatusCode, raw)
	}

	var out messagesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		c.observe("decode")
		return "", fmt.Errorf("%w: failed to decode response: %v", analysis.ErrUpstreamUnavailable, err)
	}

	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		c.observe("empty")
		return "", fmt.Errorf("%w: empty completion", analysis.ErrUpstreamUnavailable)
	}

	if c.logger != nil {
		c.logger.WithFields(logrus.Fields{
			"tier":        tier,
			"message_id":  out.ID,
			"stop_reason": out.StopReason,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("contract analysis completed")
	}
	return text, nil
}

// statusError classifies non-200 responses: 429 and 529 are retryable, auth
// and model errors are operator problems, anything else is an outage.
func (c *Client) statusError(status int, raw []byte) error {
	var env errorEnvelope
	_ = json.Unmarshal(raw, &env)
	detail := env.Error.Message
	if detail == "" {
		detail = http.StatusText(status)
	}

	var kind string
	var base error
	switch status {
	case http.StatusTooManyRequests, 529:
		kind, base = "rate_limited", analysis.ErrUpstreamRateLimited
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		kind, base = "misconfigured", analysis.ErrUpstreamMisconfigured
	default:
		kind, base = "unavailable", analysis.ErrUpstreamUnavailable
	}
	c.observe(kind)
	if c.logger != nil {
		entry := c.logger.WithFields(logrus.Fields{"status": status, "error_type": env.Error.Type})
		if errors.Is(base, analysis.ErrUpstreamMisconfigured) {
			entry.Error("analysis upstream rejected credentials or model")
		} else {
			entry.Warn("analysis upstream request failed")
		}
	}
	return fmt.Errorf("%w: status %d: %s", base, status, detail)
}

func (c *Client) observe(kind string) {
	if c.metrics != nil {
		c.metrics.ObserveUpstreamError("anthropic", kind)
	}
}
