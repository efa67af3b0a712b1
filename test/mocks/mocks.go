package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avatarctic/clauseguard/internal/core/domain/access"
	"github.com/avatarctic/clauseguard/internal/core/domain/analysis"
	"github.com/avatarctic/clauseguard/internal/core/domain/audit"
	"github.com/avatarctic/clauseguard/internal/core/domain/document"
	"github.com/avatarctic/clauseguard/internal/core/domain/payment"
	"github.com/avatarctic/clauseguard/internal/core/domain/ratelimit"
	"github.com/avatarctic/clauseguard/internal/core/ports"
)

// MetricsMock counts observations per label pair.
type MetricsMock struct {
	mu       sync.Mutex
	rate     map[string]int
	token    map[string]int
	webhook  map[string]int
	upstream map[string]int
}

func bump(m *map[string]int, a, b string) {
	if *m == nil {
		*m = make(map[string]int)
	}
	(*m)[a+"|"+b]++
}

func (m *MetricsMock) ObserveRateLimit(bucket, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bump(&m.rate, bucket, outcome)
}
func (m *MetricsMock) ObserveTokenOperation(op, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bump(&m.token, op, result)
}
func (m *MetricsMock) ObserveWebhookEvent(eventType, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bump(&m.webhook, eventType, result)
}
func (m *MetricsMock) ObserveUpstreamError(upstream, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bump(&m.upstream, upstream, kind)
}

func (m *MetricsMock) RateLimitCount(bucket, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate[bucket+"|"+outcome]
}
func (m *MetricsMock) TokenCount(op, result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token[op+"|"+result]
}
func (m *MetricsMock) WebhookCount(eventType, result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.webhook[eventType+"|"+result]
}
func (m *MetricsMock) UpstreamCount(upstream, kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upstream[upstream+"|"+kind]
}

// RateLimitRepositoryMock is a lightweight mock for RateLimitRepository
type RateLimitRepositoryMock struct {
	CountFn     func(ctx context.Context, id string) (int, bool, error)
	OpenFn      func(ctx context.Context, id string, window time.Duration) error
	IncrementFn func(ctx context.Context, id string) (int, error)
	RemainingFn func(ctx context.Context, id string) (time.Duration, error)
	ExtendFn    func(ctx context.Context, id string, window time.Duration) error
}

func (m *RateLimitRepositoryMock) Count(ctx context.Context, id string) (int, bool, error) {
	if m.CountFn != nil {
		return m.CountFn(ctx, id)
	}
	return 0, false, nil
}
func (m *RateLimitRepositoryMock) Open(ctx context.Context, id string, window time.Duration) error {
	if m.OpenFn != nil {
		return m.OpenFn(ctx, id, window)
	}
	return nil
}
func (m *RateLimitRepositoryMock) Increment(ctx context.Context, id string) (int, error) {
	if m.IncrementFn != nil {
		return m.IncrementFn(ctx, id)
	}
	return 0, nil
}
func (m *RateLimitRepositoryMock) Remaining(ctx context.Context, id string) (time.Duration, error) {
	if m.RemainingFn != nil {
		return m.RemainingFn(ctx, id)
	}
	return 0, nil
}
func (m *RateLimitRepositoryMock) Extend(ctx context.Context, id string, window time.Duration) error {
	if m.ExtendFn != nil {
		return m.ExtendFn(ctx, id, window)
	}
	return nil
}

// RateLimiterServiceMock admits everything unless CheckFn says otherwise.
type RateLimiterServiceMock struct {
	CheckFn func(ctx context.Context, id string, limit int, window time.Duration) ratelimit.Result
}

func (m *RateLimiterServiceMock) Check(ctx context.Context, id string, limit int, window time.Duration) ratelimit.Result {
	if m.CheckFn != nil {
		return m.CheckFn(ctx, id, limit, window)
	}
	return ratelimit.Result{Admitted: true, Limit: limit, Remaining: limit - 1, ResetAt: time.Now().Add(window)}
}

// AccessTokenRepositoryMock is a lightweight mock for AccessTokenRepository
type AccessTokenRepositoryMock struct {
	SaveFn   func(ctx context.Context, hash string, rec *access.Record) error
	TakeFn   func(ctx context.Context, hash string) (*access.Record, bool, error)
	ExistsFn func(ctx context.Context, hash string) (bool, error)
}

func (m *AccessTokenRepositoryMock) Save(ctx context.Context, hash string, rec *access.Record) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, hash, rec)
	}
	return nil
}
func (m *AccessTokenRepositoryMock) Take(ctx context.Context, hash string) (*access.Record, bool, error) {
	if m.TakeFn != nil {
		return m.TakeFn(ctx, hash)
	}
	return nil, false, nil
}
func (m *AccessTokenRepositoryMock) Exists(ctx context.Context, hash string) (bool, error) {
	if m.ExistsFn != nil {
		return m.ExistsFn(ctx, hash)
	}
	return false, nil
}

// AccessTokenServiceMock is a lightweight mock for AccessTokenService
type AccessTokenServiceMock struct {
	GenerateFn   func() (string, error)
	IssueFn      func(ctx context.Context, secret string) error
	ConsumeFn    func(ctx context.Context, secret string) bool
	ReactivateFn func(ctx context.Context, secret string) bool
	CheckFn      func(ctx context.Context, secret string) bool
}

func (m *AccessTokenServiceMock) Generate() (string, error) {
	if m.GenerateFn != nil {
		return m.GenerateFn()
	}
	return "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef", nil
}
func (m *AccessTokenServiceMock) Issue(ctx context.Context, secret string) error {
	if m.IssueFn != nil {
		return m.IssueFn(ctx, secret)
	}
	return nil
}
func (m *AccessTokenServiceMock) Consume(ctx context.Context, secret string) bool {
	if m.ConsumeFn != nil {
		return m.ConsumeFn(ctx, secret)
	}
	return false
}
func (m *AccessTokenServiceMock) Reactivate(ctx context.Context, secret string) bool {
	if m.ReactivateFn != nil {
		return m.ReactivateFn(ctx, secret)
	}
	return false
}
func (m *AccessTokenServiceMock) Check(ctx context.Context, secret string) bool {
	if m.CheckFn != nil {
		return m.CheckFn(ctx, secret)
	}
	return false
}

// SessionTokenRepositoryMock keeps mappings in memory unless overridden.
type SessionTokenRepositoryMock struct {
	RememberFn func(ctx context.Context, sessionID, token string) (string, error)
	RecallFn   func(ctx context.Context, sessionID string) (string, bool, error)

	mu    sync.Mutex
	items map[string]string
}

func (m *SessionTokenRepositoryMock) Remember(ctx context.Context, sessionID, token string) (string, error) {
	if m.RememberFn != nil {
		return m.RememberFn(ctx, sessionID, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string]string)
	}
	if existing, ok := m.items[sessionID]; ok {
		return existing, nil
	}
	m.items[sessionID] = token
	return token, nil
}
func (m *SessionTokenRepositoryMock) Recall(ctx context.Context, sessionID string) (string, bool, error) {
	if m.RecallFn != nil {
		return m.RecallFn(ctx, sessionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[sessionID]
	return v, ok, nil
}

// PaymentProviderMock is a lightweight mock for PaymentProvider
type PaymentProviderMock struct {
	CreateCheckoutSessionFn func(ctx context.Context, successURL, cancelURL string) (*payment.Session, error)
	GetSessionFn            func(ctx context.Context, id string) (*payment.Session, error)
	ParseWebhookFn          func(payload []byte, sigHeader string) (*payment.Event, error)
}

func (m *PaymentProviderMock) CreateCheckoutSession(ctx context.Context, successURL, cancelURL string) (*payment.Session, error) {
	if m.CreateCheckoutSessionFn != nil {
		return m.CreateCheckoutSessionFn(ctx, successURL, cancelURL)
	}
	return &payment.Session{ID: "cs_test_mock000000", URL: "https://checkout.example/pay"}, nil
}
func (m *PaymentProviderMock) GetSession(ctx context.Context, id string) (*payment.Session, error) {
	if m.GetSessionFn != nil {
		return m.GetSessionFn(ctx, id)
	}
	return nil, payment.ErrSessionNotFound
}
func (m *PaymentProviderMock) ParseWebhook(payload []byte, sigHeader string) (*payment.Event, error) {
	if m.ParseWebhookFn != nil {
		return m.ParseWebhookFn(payload, sigHeader)
	}
	return nil, payment.ErrInvalidSignature
}

// PaymentServiceMock is a lightweight mock for PaymentService
type PaymentServiceMock struct {
	CreateCheckoutFn func(ctx context.Context) (string, error)
	HandleWebhookFn  func(ctx context.Context, payload []byte, sig string, meta ports.RequestMeta) error
	VerifySessionFn  func(ctx context.Context, id string) (*payment.Confirmation, error)
}

func (m *PaymentServiceMock) CreateCheckout(ctx context.Context) (string, error) {
	if m.CreateCheckoutFn != nil {
		return m.CreateCheckoutFn(ctx)
	}
	return "https://checkout.example/pay", nil
}
func (m *PaymentServiceMock) HandleWebhook(ctx context.Context, payload []byte, sig string, meta ports.RequestMeta) error {
	if m.HandleWebhookFn != nil {
		return m.HandleWebhookFn(ctx, payload, sig, meta)
	}
	return nil
}
func (m *PaymentServiceMock) VerifySession(ctx context.Context, id string) (*payment.Confirmation, error) {
	if m.VerifySessionFn != nil {
		return m.VerifySessionFn(ctx, id)
	}
	return nil, payment.ErrNotPaid
}

// RiskAnalyzerMock records calls and returns AnalyzeFn's result.
type RiskAnalyzerMock struct {
	AnalyzeFn func(ctx context.Context, text string, tier analysis.Tier) (string, error)

	mu    sync.Mutex
	calls int
}

func (m *RiskAnalyzerMock) Analyze(ctx context.Context, text string, tier analysis.Tier) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.AnalyzeFn != nil {
		return m.AnalyzeFn(ctx, text, tier)
	}
	return "## Risk summary\nNo findings.", nil
}

func (m *RiskAnalyzerMock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// AnalysisServiceMock is a lightweight mock for AnalysisService
type AnalysisServiceMock struct {
	AnalyzeFn func(ctx context.Context, req *analysis.Request, clientID string) (*analysis.Result, error)
}

func (m *AnalysisServiceMock) Analyze(ctx context.Context, req *analysis.Request, clientID string) (*analysis.Result, error) {
	if m.AnalyzeFn != nil {
		return m.AnalyzeFn(ctx, req, clientID)
	}
	return &analysis.Result{Analysis: "ok"}, nil
}

// CacheMock is an in-memory cache; set the Fn fields to inject failures.
type CacheMock struct {
	GetFn func(ctx context.Context, key string) ([]byte, bool, error)
	SetFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error

	mu    sync.Mutex
	items map[string][]byte
}

func (m *CacheMock) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok, nil
}
func (m *CacheMock) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.SetFn != nil {
		return m.SetFn(ctx, key, value, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string][]byte)
	}
	m.items[key] = value
	return nil
}
func (m *CacheMock) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// ReceiptMailerMock captures delivered tokens.
type ReceiptMailerMock struct {
	SendAccessTokenFn func(ctx context.Context, email, token string) error

	mu   sync.Mutex
	Sent []string
}

func (m *ReceiptMailerMock) SendAccessToken(ctx context.Context, email, token string) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, email)
	m.mu.Unlock()
	if m.SendAccessTokenFn != nil {
		return m.SendAccessTokenFn(ctx, email, token)
	}
	return nil
}

// AuditServiceMock collects recorded actions.
type AuditServiceMock struct {
	ListFn func(ctx context.Context, filter *audit.Filter) ([]*audit.Event, error)

	mu      sync.Mutex
	Records []*audit.RecordRequest
}

func (m *AuditServiceMock) Record(ctx context.Context, req *audit.RecordRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, req)
}
func (m *AuditServiceMock) List(ctx context.Context, filter *audit.Filter) ([]*audit.Event, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	return nil, nil
}

// Actions returns the recorded actions in order.
func (m *AuditServiceMock) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Records))
	for _, r := range m.Records {
		out = append(out, string(r.Action))
	}
	return out
}

// AuditRepositoryMock is a lightweight mock for AuditRepository
type AuditRepositoryMock struct {
	CreateFn func(ctx context.Context, event *audit.Event) error
	ListFn   func(ctx context.Context, filter *audit.Filter) ([]*audit.Event, error)
}

func (m *AuditRepositoryMock) Create(ctx context.Context, event *audit.Event) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, event)
	}
	return nil
}
func (m *AuditRepositoryMock) List(ctx context.Context, filter *audit.Filter) ([]*audit.Event, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	return nil, nil
}

// OperatorServiceMock accepts the token "valid" and the password "secret".
type OperatorServiceMock struct {
	LoginFn         func(ctx context.Context, password string) (string, time.Time, error)
	ValidateTokenFn func(token string) error
}

func (m *OperatorServiceMock) Login(ctx context.Context, password string) (string, time.Time, error) {
	if m.LoginFn != nil {
		return m.LoginFn(ctx, password)
	}
	if password == "secret" {
		return "valid", time.Now().Add(time.Hour), nil
	}
	return "", time.Time{}, fmt.Errorf("invalid credentials")
}
func (m *OperatorServiceMock) ValidateToken(token string) error {
	if m.ValidateTokenFn != nil {
		return m.ValidateTokenFn(token)
	}
	if token == "valid" {
		return nil
	}
	return fmt.Errorf("invalid token")
}

// DocumentRendererMock is a lightweight mock for DocumentRenderer
type DocumentRendererMock struct {
	RenderFn func(ctx context.Context, req *analysis.ExportRequest) ([]byte, error)
}

func (m *DocumentRendererMock) ContentType() string { return "application/pdf" }
func (m *DocumentRendererMock) Render(ctx context.Context, req *analysis.ExportRequest) ([]byte, error) {
	if m.RenderFn != nil {
		return m.RenderFn(ctx, req)
	}
	return []byte("%PDF-1.3 mock"), nil
}

// TextExtractorMock is a lightweight mock for TextExtractor
type TextExtractorMock struct {
	ExtractFn func(ctx context.Context, filename string, data []byte) (*document.Extraction, error)
}

func (m *TextExtractorMock) Extract(ctx context.Context, filename string, data []byte) (*document.Extraction, error) {
	if m.ExtractFn != nil {
		return m.ExtractFn(ctx, filename, data)
	}
	text := string(data)
	return &document.Extraction{Text: text, Characters: len([]rune(text)), Format: "txt"}, nil
}

// HealthCheckerMock is a lightweight mock for HealthChecker
type HealthCheckerMock struct {
	NameValue string
	Err       error
}

func (m *HealthCheckerMock) Name() string                    { return m.NameValue }
func (m *HealthCheckerMock) Check(ctx context.Context) error { return m.Err }
