package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-report-access-service/internal/domain"
	"go-report-access-service/internal/observability"
	"go-report-access-service/internal/repository"
)

var (
	ErrPaymentNotCompleted      = errors.New("payment session is not paid")
	ErrPaymentConfirmInFlight   = errors.New("payment confirmation already in progress")
	errPaymentConfirmMismatched = errors.New("payment confirmation fingerprint mismatch")
)

const paymentConfirmScope = "payment_confirm"

type ConfirmResult struct {
	ReportURL string
	Replayed  bool
}

type PaymentServiceInterface interface {
	Confirm(ctx context.Context, sessionID string) (*ConfirmResult, error)
}

// PaymentService turns a confirmed-paid checkout session into exactly one
// access token. Duplicate confirmations for the same session id replay the
// original report URL instead of minting a second token.
type PaymentService struct {
	provider  PaymentProvider
	tokens    TokenServiceInterface
	purchases repository.PurchaseRepository
	idem      IdempotencyStore
	dedupTTL  time.Duration
}

func NewPaymentService(
	provider PaymentProvider,
	tokens TokenServiceInterface,
	purchases repository.PurchaseRepository,
	idem IdempotencyStore,
	dedupTTL time.Duration,
) *PaymentService {
	return &PaymentService{
		provider:  provider,
		tokens:    tokens,
		purchases: purchases,
		idem:      idem,
		dedupTTL:  dedupTTL,
	}
}

func (s *PaymentService) Confirm(ctx context.Context, sessionID string) (*ConfirmResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	fingerprint := fingerprintSessionID(sessionID)

	begin, err := s.idem.Begin(ctx, paymentConfirmScope, sessionID, fingerprint, s.dedupTTL)
	if err != nil {
		observability.RecordPaymentEvent(ctx, "error")
		return nil, fmt.Errorf("begin payment dedup claim: %w", err)
	}
	switch begin.State {
	case IdempotencyStateReplay:
		observability.RecordPaymentEvent(ctx, "replay")
		return &ConfirmResult{ReportURL: string(begin.Cached.Body), Replayed: true}, nil
	case IdempotencyStateInProgress:
		observability.RecordPaymentEvent(ctx, "in_flight")
		return nil, ErrPaymentConfirmInFlight
	case IdempotencyStateConflict:
		observability.RecordPaymentEvent(ctx, "conflict")
		return nil, errPaymentConfirmMismatched
	}

	// The claim is held from here on: every exit that does not complete it
	// must release it, or a later retry sits behind ErrPaymentConfirmInFlight
	// until the dedup window lapses.
	session, err := s.provider.GetSession(ctx, sessionID)
	if err != nil {
		s.releaseClaim(ctx, sessionID, fingerprint)
		observability.RecordPaymentEvent(ctx, "upstream_error")
		return nil, err
	}
	if !session.Paid {
		s.releaseClaim(ctx, sessionID, fingerprint)
		observability.RecordPaymentEvent(ctx, "unpaid")
		return nil, ErrPaymentNotCompleted
	}

	purchase := &domain.Purchase{
		PublicID:         uuid.NewString(),
		PaymentSessionID: sessionID,
		Email:            strings.TrimSpace(strings.ToLower(session.Email)),
	}
	if err := s.purchases.Create(ctx, purchase); err != nil {
		if errors.Is(err, repository.ErrPurchaseExists) {
			// The replay cache was lost (flushed or expired) but the
			// purchase row survived. Reissue for the recorded buyer so a
			// paid session is never locked out of its report.
			existing, findErr := s.purchases.FindBySessionID(ctx, sessionID)
			if findErr != nil {
				s.releaseClaim(ctx, sessionID, fingerprint)
				observability.RecordPaymentEvent(ctx, "error")
				return nil, fmt.Errorf("load recorded purchase: %w", findErr)
			}
			observability.RecordPaymentEvent(ctx, "reissue")
			return s.issueAndCache(ctx, sessionID, fingerprint, existing.Email, session.PaymentID)
		}
		s.releaseClaim(ctx, sessionID, fingerprint)
		observability.RecordPaymentEvent(ctx, "error")
		return nil, fmt.Errorf("record purchase: %w", err)
	}

	return s.issueAndCache(ctx, sessionID, fingerprint, session.Email, session.PaymentID)
}

func (s *PaymentService) issueAndCache(ctx context.Context, sessionID, fingerprint, email, paymentID string) (*ConfirmResult, error) {
	issued, err := s.tokens.Issue(ctx, email, paymentID, 0)
	if err != nil {
		s.releaseClaim(ctx, sessionID, fingerprint)
		observability.RecordPaymentEvent(ctx, "error")
		return nil, err
	}

	if err := s.idem.Complete(ctx, paymentConfirmScope, sessionID, fingerprint, CachedResponse{
		StatusCode:  http.StatusOK,
		ContentType: "text/plain",
		Body:        []byte(issued.ReportURL),
	}, s.dedupTTL); err != nil {
		// The token is already issued and returned to the caller. The stale
		// claim holds off duplicates until it expires; the retake path then
		// reissues through the purchase row.
		observability.RecordPaymentEvent(ctx, "cache_error")
	} else {
		observability.RecordPaymentEvent(ctx, "success")
	}
	return &ConfirmResult{ReportURL: issued.ReportURL}, nil
}

// releaseClaim frees a claimed session whose confirmation did not finish.
// On failure the claim lingers until its TTL runs out.
func (s *PaymentService) releaseClaim(ctx context.Context, sessionID, fingerprint string) {
	if err := s.idem.Abort(ctx, paymentConfirmScope, sessionID, fingerprint); err != nil {
		observability.RecordPaymentEvent(ctx, "release_error")
	}
}

func fingerprintSessionID(sessionID string) string {
	sum := sha256.Sum256([]byte(paymentConfirmScope + ":" + sessionID))
	return hex.EncodeToString(sum[:])
}
