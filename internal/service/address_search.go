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

var ErrAddressUpstream = errors.New("address search provider unavailable")

type AddressMatch struct {
	Label     string  `json:"label"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type AddressSearchInterface interface {
	Search(ctx context.Context, query string) ([]AddressMatch, error)
}

// AddressSearchService proxies the upstream geocoder; provider failures
// surface as ErrAddressUpstream so handlers can map them to 502.
type AddressSearchService struct {
	baseURL string
	client  *http.Client
}

func NewAddressSearchService(baseURL string, timeout time.Duration) *AddressSearchService {
	return &AddressSearchService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *AddressSearchService) Search(ctx context.Context, query string) ([]AddressMatch, error) {
	endpoint := fmt.Sprintf("%s?q=%s", s.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build address search request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		observability.RecordUpstreamCall(ctx, "address_search", "error")
		return nil, fmt.Errorf("%w: %v", ErrAddressUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		observability.RecordUpstreamCall(ctx, "address_search", "error")
		return nil, fmt.Errorf("%w: status %d", ErrAddressUpstream, resp.StatusCode)
	}

	var matches []AddressMatch
	if err := json.NewDecoder(resp.Body).Decode(&matches); err != nil {
		observability.RecordUpstreamCall(ctx, "address_search", "error")
		return nil, fmt.Errorf("%w: decode response: %v", ErrAddressUpstream, err)
	}
	observability.RecordUpstreamCall(ctx, "address_search", "success")
	return matches, nil
}
