package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go-report-access-service/internal/observability"
)

var (
	ErrPaymentSessionNotFound = errors.New("payment session not found")
	ErrPaymentUpstream        = errors.New("payment provider unavailable")
)

type PaymentSession struct {
	ID        string
	PaymentID string
	Email     string
	Paid      bool
}

// PaymentProvider is the boundary to the external checkout provider.
type PaymentProvider interface {
	GetSession(ctx context.Context, sessionID string) (*PaymentSession, error)
}

type HTTPPaymentProvider struct {
	baseURL string
	secret  string
	client  *http.Client
}

func NewHTTPPaymentProvider(baseURL, secret string, timeout time.Duration) *HTTPPaymentProvider {
	return &HTTPPaymentProvider{
		baseURL: baseURL,
		secret:  secret,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPPaymentProvider) GetSession(ctx context.Context, sessionID string) (*PaymentSession, error) {
	endpoint := fmt.Sprintf("%s/v1/checkout/sessions/%s", p.baseURL, url.PathEscape(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build payment session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secret)

	resp, err := p.client.Do(req)
	if err != nil {
		observability.RecordUpstreamCall(ctx, "payment", "error")
		return nil, fmt.Errorf("%w: %v", ErrPaymentUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		observability.RecordUpstreamCall(ctx, "payment", "not_found")
		return nil, ErrPaymentSessionNotFound
	case resp.StatusCode != http.StatusOK:
		observability.RecordUpstreamCall(ctx, "payment", "error")
		return nil, fmt.Errorf("%w: status %d", ErrPaymentUpstream, resp.StatusCode)
	}

	var body struct {
		ID            string `json:"id"`
		PaymentStatus string `json:"payment_status"`
		PaymentIntent string `json:"payment_intent"`
		CustomerEmail string `json:"customer_email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		observability.RecordUpstreamCall(ctx, "payment", "error")
		return nil, fmt.Errorf("%w: decode session: %v", ErrPaymentUpstream, err)
	}
	observability.RecordUpstreamCall(ctx, "payment", "success")
	return &PaymentSession{
		ID:        body.ID,
		PaymentID: body.PaymentIntent,
		Email:     body.CustomerEmail,
		Paid:      body.PaymentStatus == "paid",
	}, nil
}
