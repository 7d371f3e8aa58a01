package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-report-access-service/internal/domain"
	"go-report-access-service/internal/observability"
	"go-report-access-service/internal/repository"
	"go-report-access-service/internal/security"
)

// ErrTokenInvalid is the deliberately generic finalisation rejection:
// not-found, already-used and expired all collapse into it so a caller
// cannot probe which case occurred.
var ErrTokenInvalid = errors.New("token invalid or already used")

type TokenStatus string

const (
	TokenStatusValid    TokenStatus = "valid"
	TokenStatusNotFound TokenStatus = "not_found"
	TokenStatusUsed     TokenStatus = "used"
	TokenStatusExpired  TokenStatus = "expired"
)

type IssuedToken struct {
	Token     string
	ReportURL string
	ExpiresAt time.Time
}

type TokenCheck struct {
	Status    TokenStatus
	ExpiresAt time.Time
}

type TokenServiceInterface interface {
	Issue(ctx context.Context, email, paymentRef string, ttl time.Duration) (*IssuedToken, error)
	Check(ctx context.Context, key string) (*TokenCheck, error)
	Finalise(ctx context.Context, key string) error
}

type TokenService struct {
	repo          repository.AccessTokenRepository
	reportBaseURL string
	defaultTTL    time.Duration
	now           func() time.Time
}

func NewTokenService(repo repository.AccessTokenRepository, reportBaseURL string, defaultTTL time.Duration) *TokenService {
	return &TokenService{
		repo:          repo,
		reportBaseURL: reportBaseURL,
		defaultTTL:    defaultTTL,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Issue mints a fresh 256-bit URL-safe key, persists one row, and returns
// the key embedded in the report URL. A non-positive ttl falls back to the
// configured default.
func (s *TokenService) Issue(ctx context.Context, email, paymentRef string, ttl time.Duration) (*IssuedToken, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	key, err := security.NewAccessKey()
	if err != nil {
		observability.RecordTokenEvent(ctx, "issue", "error")
		return nil, fmt.Errorf("generate access key: %w", err)
	}
	token := &domain.AccessToken{
		Token:        key,
		SubjectEmail: strings.TrimSpace(strings.ToLower(email)),
		PaymentRef:   strings.TrimSpace(paymentRef),
		ExpiresAt:    s.now().Add(ttl),
	}
	if err := s.repo.Create(ctx, token); err != nil {
		observability.RecordTokenEvent(ctx, "issue", "error")
		return nil, fmt.Errorf("persist access token: %w", err)
	}
	observability.RecordTokenEvent(ctx, "issue", "success")
	return &IssuedToken{
		Token:     key,
		ReportURL: BuildReportURL(s.reportBaseURL, key),
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// Check is the read-only validity probe; it never consumes the token.
func (s *TokenService) Check(ctx context.Context, key string) (*TokenCheck, error) {
	token, err := s.repo.FindByToken(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrAccessTokenNotFound) {
			observability.RecordTokenEvent(ctx, "check", "not_found")
			return &TokenCheck{Status: TokenStatusNotFound}, nil
		}
		observability.RecordTokenEvent(ctx, "check", "error")
		return nil, fmt.Errorf("load access token: %w", err)
	}
	now := s.now()
	switch {
	case token.Used:
		observability.RecordTokenEvent(ctx, "check", "used")
		return &TokenCheck{Status: TokenStatusUsed, ExpiresAt: token.ExpiresAt}, nil
	case token.Expired(now):
		observability.RecordTokenEvent(ctx, "check", "expired")
		return &TokenCheck{Status: TokenStatusExpired, ExpiresAt: token.ExpiresAt}, nil
	default:
		observability.RecordTokenEvent(ctx, "check", "valid")
		return &TokenCheck{Status: TokenStatusValid, ExpiresAt: token.ExpiresAt}, nil
	}
}

// Finalise consumes the token exactly once. Among concurrent callers for
// the same key a single one succeeds; the rest get ErrTokenInvalid.
func (s *TokenService) Finalise(ctx context.Context, key string) error {
	err := s.repo.Consume(ctx, key, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrAccessTokenNotFound) {
			observability.RecordTokenEvent(ctx, "finalise", "rejected")
			return ErrTokenInvalid
		}
		observability.RecordTokenEvent(ctx, "finalise", "error")
		return fmt.Errorf("consume access token: %w", err)
	}
	observability.RecordTokenEvent(ctx, "finalise", "success")
	return nil
}

// BuildReportURL appends key as the `key` query parameter, using `&` when
// the base URL already carries a query string.
func BuildReportURL(base, key string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "key=" + key
}
