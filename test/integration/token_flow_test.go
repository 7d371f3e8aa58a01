package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go-report-access-service/internal/database"
	"go-report-access-service/internal/http/handler"
	"go-report-access-service/internal/http/middleware"
	"go-report-access-service/internal/http/router"
	"go-report-access-service/internal/repository"
	"go-report-access-service/internal/service"
)

func newServerForTest(t *testing.T, tokenTTL time.Duration) (http.Handler, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	tokens := service.NewTokenService(
		repository.NewAccessTokenRepository(db),
		"http://localhost:8080/report",
		tokenTTL,
	)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := middleware.NewAccessGate(tokens, router.GateAllowPrefixes([]string{"/static/"}), log)

	h := router.New(router.Dependencies{
		TokenHandler:      handler.NewTokenHandler(tokens),
		ReportHandler:     handler.NewReportHandler(nil),
		Gate:              gate,
		TokenRateLimitRPM: 1000,
		AuthRateLimitRPM:  1000,
	})
	return h, db
}

func createToken(t *testing.T, h http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/create-token",
		strings.NewReader(`{"email":"a@b.com","orderId":"ord-1"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("create-token: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Data struct {
			ReportURL string `json:"reportUrl"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode create-token response: %v", err)
	}
	u, err := url.Parse(body.Data.ReportURL)
	if err != nil {
		t.Fatalf("parse report url %q: %v", body.Data.ReportURL, err)
	}
	key := u.Query().Get("key")
	if key == "" {
		t.Fatalf("report url carries no key: %q", body.Data.ReportURL)
	}
	return key
}

func TestTokenRoundTrip(t *testing.T) {
	h, _ := newServerForTest(t, 24*time.Hour)
	key := createToken(t, h)

	// Gate passes with the fresh key.
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/report?key="+key, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("gated report with valid key: expected 200, got %d", rr.Code)
	}

	// First finalise succeeds.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/finalise-token?key="+key, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("first finalise: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	// Gate now denies.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/report?key="+key, nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("gated report after finalise: expected 403, got %d", rr.Code)
	}

	// check-token reports the used state distinctly.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/check-token?key="+key, nil))
	if rr.Code != http.StatusConflict {
		t.Fatalf("check after finalise: expected 409, got %d", rr.Code)
	}

	// Second finalise is rejected generically.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/finalise-token?key="+key, nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("second finalise: expected 400, got %d", rr.Code)
	}
}

func TestConcurrentFinaliseSingleWinner(t *testing.T) {
	h, _ := newServerForTest(t, 24*time.Hour)
	key := createToken(t, h)

	const callers = 8
	codes := make([]int, callers)
	var wg sync.WaitGroup
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start.Wait()
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/finalise-token?key="+key, nil))
			codes[i] = rr.Code
		}(i)
	}
	start.Done()
	wg.Wait()

	wins := 0
	for _, code := range codes {
		switch code {
		case http.StatusOK:
			wins++
		case http.StatusBadRequest:
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly 1 successful finalise, got %d (codes %v)", wins, codes)
	}
}

func TestImmediatelyExpiredToken(t *testing.T) {
	h, db := newServerForTest(t, 24*time.Hour)
	key := createToken(t, h)

	// Age the row so the key is already expired, the ttl=0 scenario.
	if err := db.Table("access_tokens").
		Where("token = ?", key).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error; err != nil {
		t.Fatalf("age token: %v", err)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/check-token?key="+key, nil))
	if rr.Code != http.StatusGone {
		t.Fatalf("check expired: expected 410, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/report?key="+key, nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("gate with expired key: expected 403, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/finalise-token?key="+key, nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("finalise expired: expected 400, got %d", rr.Code)
	}
}

func TestCreateTokenMissingOrderIDInsertsNoRow(t *testing.T) {
	h, db := newServerForTest(t, 24*time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/api/create-token",
		strings.NewReader(`{"email":"a@b.com"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	var count int64
	if err := db.Table("access_tokens").Count(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no rows, got %d", count)
	}
}

func TestAllowlistBypassNeedsNoKey(t *testing.T) {
	h, _ := newServerForTest(t, 24*time.Hour)

	// create-token is allowlisted by definition.
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/create-token",
		strings.NewReader(`{"email":"a@b.com","orderId":"ord-1"}`)))
	if rr.Code == http.StatusForbidden {
		t.Fatal("token issuance must not require a key")
	}

	// Static prefix passes the gate; the 404 comes from routing, not denial.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	if rr.Code == http.StatusForbidden {
		t.Fatal("static assets must not require a key")
	}
}
