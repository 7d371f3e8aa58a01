package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go-report-access-service/internal/domain"
	"go-report-access-service/internal/repository"
)

type stubPaymentProvider struct {
	getSessionFn func(ctx context.Context, sessionID string) (*PaymentSession, error)
	calls        int
}

func (s *stubPaymentProvider) GetSession(ctx context.Context, sessionID string) (*PaymentSession, error) {
	s.calls++
	if s.getSessionFn == nil {
		return nil, errors.New("not implemented")
	}
	return s.getSessionFn(ctx, sessionID)
}

type stubTokenService struct {
	mu      sync.Mutex
	issued  int
	issueFn func(ctx context.Context, email, paymentRef string, ttl time.Duration) (*IssuedToken, error)
}

func (s *stubTokenService) Issue(ctx context.Context, email, paymentRef string, ttl time.Duration) (*IssuedToken, error) {
	s.mu.Lock()
	s.issued++
	n := s.issued
	s.mu.Unlock()
	if s.issueFn != nil {
		return s.issueFn(ctx, email, paymentRef, ttl)
	}
	return &IssuedToken{
		Token:     fmt.Sprintf("tok-%d", n),
		ReportURL: fmt.Sprintf("http://host/report?key=tok-%d", n),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}, nil
}

func (s *stubTokenService) Check(context.Context, string) (*TokenCheck, error) {
	return nil, errors.New("not implemented")
}

func (s *stubTokenService) Finalise(context.Context, string) error {
	return errors.New("not implemented")
}

func newPaymentServiceForTest(t *testing.T, provider PaymentProvider, tokens TokenServiceInterface) (*PaymentService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Purchase{}, &domain.IdempotencyRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewPaymentService(provider, tokens, repository.NewPurchaseRepository(db), NewDBIdempotencyStore(db), time.Hour), db
}

func TestPaymentServiceConfirmIssuesTokenForPaidSession(t *testing.T) {
	provider := &stubPaymentProvider{
		getSessionFn: func(_ context.Context, sessionID string) (*PaymentSession, error) {
			return &PaymentSession{ID: sessionID, PaymentID: "pi_1", Email: "a@b.com", Paid: true}, nil
		},
	}
	tokens := &stubTokenService{}
	svc, _ := newPaymentServiceForTest(t, provider, tokens)

	result, err := svc.Confirm(context.Background(), "cs_1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if result.Replayed {
		t.Fatal("first confirmation must not be a replay")
	}
	if !strings.Contains(result.ReportURL, "key=") {
		t.Fatalf("unexpected report url: %q", result.ReportURL)
	}
	if tokens.issued != 1 {
		t.Fatalf("expected one issued token, got %d", tokens.issued)
	}
}

func TestPaymentServiceConfirmRejectsUnpaidSession(t *testing.T) {
	provider := &stubPaymentProvider{
		getSessionFn: func(_ context.Context, sessionID string) (*PaymentSession, error) {
			return &PaymentSession{ID: sessionID, Email: "a@b.com", Paid: false}, nil
		},
	}
	tokens := &stubTokenService{}
	svc, _ := newPaymentServiceForTest(t, provider, tokens)

	if _, err := svc.Confirm(context.Background(), "cs_unpaid"); !errors.Is(err, ErrPaymentNotCompleted) {
		t.Fatalf("expected ErrPaymentNotCompleted, got %v", err)
	}
	if tokens.issued != 0 {
		t.Fatalf("unpaid session must not issue tokens, issued=%d", tokens.issued)
	}
}

func TestPaymentServiceDuplicateConfirmReplaysWithoutSecondToken(t *testing.T) {
	provider := &stubPaymentProvider{
		getSessionFn: func(_ context.Context, sessionID string) (*PaymentSession, error) {
			return &PaymentSession{ID: sessionID, PaymentID: "pi_2", Email: "a@b.com", Paid: true}, nil
		},
	}
	tokens := &stubTokenService{}
	svc, _ := newPaymentServiceForTest(t, provider, tokens)

	first, err := svc.Confirm(context.Background(), "cs_dup")
	if err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	second, err := svc.Confirm(context.Background(), "cs_dup")
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if !second.Replayed {
		t.Fatal("expected duplicate confirmation to be a replay")
	}
	if first.ReportURL != second.ReportURL {
		t.Fatalf("replay must return the original url: first=%q second=%q", first.ReportURL, second.ReportURL)
	}
	if tokens.issued != 1 {
		t.Fatalf("duplicate confirmation issued extra tokens: %d", tokens.issued)
	}
	if provider.calls != 1 {
		t.Fatalf("replay must not re-query the provider, calls=%d", provider.calls)
	}
}

func TestPaymentServiceUnpaidConfirmThenPaidRetryIssuesToken(t *testing.T) {
	paid := false
	provider := &stubPaymentProvider{
		getSessionFn: func(_ context.Context, sessionID string) (*PaymentSession, error) {
			return &PaymentSession{ID: sessionID, PaymentID: "pi_3", Email: "a@b.com", Paid: paid}, nil
		},
	}
	tokens := &stubTokenService{}
	svc, _ := newPaymentServiceForTest(t, provider, tokens)

	if _, err := svc.Confirm(context.Background(), "cs_late"); !errors.Is(err, ErrPaymentNotCompleted) {
		t.Fatalf("expected ErrPaymentNotCompleted, got %v", err)
	}

	// The provider settles the payment; the retry must not sit behind the
	// earlier claim.
	paid = true
	result, err := svc.Confirm(context.Background(), "cs_late")
	if err != nil {
		t.Fatalf("confirm after payment settled: %v", err)
	}
	if result.Replayed {
		t.Fatal("retry after an unpaid attempt must mint, not replay")
	}
	if tokens.issued != 1 {
		t.Fatalf("expected exactly one issued token, got %d", tokens.issued)
	}
}

func TestPaymentServiceRetryAfterIssueFailureSucceeds(t *testing.T) {
	provider := &stubPaymentProvider{
		getSessionFn: func(_ context.Context, sessionID string) (*PaymentSession, error) {
			return &PaymentSession{ID: sessionID, PaymentID: "pi_4", Email: "a@b.com", Paid: true}, nil
		},
	}
	failures := 1
	tokens := &stubTokenService{
		issueFn: func(context.Context, string, string, time.Duration) (*IssuedToken, error) {
			if failures > 0 {
				failures--
				return nil, errors.New("token store unavailable")
			}
			return &IssuedToken{
				Token:     "tok-retry",
				ReportURL: "http://host/report?key=tok-retry",
				ExpiresAt: time.Now().UTC().Add(time.Hour),
			}, nil
		},
	}
	svc, _ := newPaymentServiceForTest(t, provider, tokens)

	_, err := svc.Confirm(context.Background(), "cs_flaky")
	if err == nil {
		t.Fatal("expected first confirm to fail")
	}
	if errors.Is(err, ErrPaymentConfirmInFlight) {
		t.Fatalf("issue failure must not read as in-flight: %v", err)
	}

	result, err := svc.Confirm(context.Background(), "cs_flaky")
	if err != nil {
		t.Fatalf("confirm after transient issue failure: %v", err)
	}
	if result.ReportURL != "http://host/report?key=tok-retry" {
		t.Fatalf("unexpected report url: %q", result.ReportURL)
	}
}

func TestPaymentServiceReissuesWhenOnlyPurchaseRowSurvives(t *testing.T) {
	provider := &stubPaymentProvider{
		getSessionFn: func(_ context.Context, sessionID string) (*PaymentSession, error) {
			return &PaymentSession{ID: sessionID, PaymentID: "pi_5", Email: "other@b.com", Paid: true}, nil
		},
	}
	tokens := &stubTokenService{}
	svc, db := newPaymentServiceForTest(t, provider, tokens)

	// A purchase row without a cached outcome, as after a flushed dedup
	// store or an aborted mint.
	if err := repository.NewPurchaseRepository(db).Create(context.Background(), &domain.Purchase{
		PublicID:         "purchase-1",
		PaymentSessionID: "cs_survivor",
		Email:            "buyer@b.com",
	}); err != nil {
		t.Fatalf("seed purchase: %v", err)
	}

	result, err := svc.Confirm(context.Background(), "cs_survivor")
	if err != nil {
		t.Fatalf("confirm with surviving purchase row: %v", err)
	}
	if result.Replayed {
		t.Fatal("reissue is a fresh mint, not a replay")
	}
	if tokens.issued != 1 {
		t.Fatalf("expected one issued token, got %d", tokens.issued)
	}
}

func TestPaymentServiceUpstreamFailurePropagates(t *testing.T) {
	provider := &stubPaymentProvider{
		getSessionFn: func(context.Context, string) (*PaymentSession, error) {
			return nil, fmt.Errorf("%w: timeout", ErrPaymentUpstream)
		},
	}
	tokens := &stubTokenService{}
	svc, _ := newPaymentServiceForTest(t, provider, tokens)

	if _, err := svc.Confirm(context.Background(), "cs_down"); !errors.Is(err, ErrPaymentUpstream) {
		t.Fatalf("expected ErrPaymentUpstream, got %v", err)
	}
}
