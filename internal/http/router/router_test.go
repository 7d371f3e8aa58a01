package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-report-access-service/internal/http/handler"
	"go-report-access-service/internal/http/middleware"
	"go-report-access-service/internal/service"
)

type fixedTokenService struct {
	status service.TokenStatus
}

func (s fixedTokenService) Issue(context.Context, string, string, time.Duration) (*service.IssuedToken, error) {
	return &service.IssuedToken{Token: "tok", ReportURL: "http://h/report?key=tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s fixedTokenService) Check(context.Context, string) (*service.TokenCheck, error) {
	return &service.TokenCheck{Status: s.status, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s fixedTokenService) Finalise(context.Context, string) error {
	if s.status == service.TokenStatusValid {
		return nil
	}
	return errors.New("not valid")
}

func newRouterForTest(status service.TokenStatus) http.Handler {
	tokens := fixedTokenService{status: status}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := middleware.NewAccessGate(tokens, GateAllowPrefixes([]string{"/static/"}), logger)
	return New(Dependencies{
		TokenHandler:      handler.NewTokenHandler(tokens),
		Gate:              gate,
		TokenRateLimitRPM: 100,
		AuthRateLimitRPM:  100,
	})
}

func TestRouterAllowlistedAPIEndpointsNeedNoKey(t *testing.T) {
	h := newRouterForTest(service.TokenStatusNotFound)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/check-token?key=whatever", nil))
	if rr.Code == http.StatusForbidden {
		t.Fatalf("API paths must bypass the gate, got 403")
	}
}

func TestRouterGateDeniesUnknownPathsWithoutKey(t *testing.T) {
	h := newRouterForTest(service.TokenStatusValid)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/anything", nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for keyless gated path, got %d", rr.Code)
	}
}

func TestRouterGatePassesValidKeyThrough(t *testing.T) {
	h := newRouterForTest(service.TokenStatusValid)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/unrouted?key=tok", nil))
	// The gate passed; chi then answers 404 for the unrouted path.
	if rr.Code == http.StatusForbidden {
		t.Fatal("valid key must pass the gate")
	}
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after gate pass on unrouted path, got %d", rr.Code)
	}
}

func TestGateAllowPrefixesIncludesAPIAndHealth(t *testing.T) {
	prefixes := GateAllowPrefixes([]string{"/static/"})
	want := map[string]bool{"/api/": false, "/health/": false, "/static/": false}
	for _, p := range prefixes {
		if _, ok := want[p]; ok {
			want[p] = true
		}
	}
	for p, seen := range want {
		if !seen {
			t.Fatalf("missing allow prefix %q in %v", p, prefixes)
		}
	}
}
