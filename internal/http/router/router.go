package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"go-report-access-service/internal/http/handler"
	"go-report-access-service/internal/http/middleware"
	"go-report-access-service/internal/security"
)

// Dependencies carries everything the router needs; optional surfaces
// (payments, address search, report storage) may be nil and their routes
// are simply not mounted.
type Dependencies struct {
	TokenHandler   *handler.TokenHandler
	PaymentHandler *handler.PaymentHandler
	AuthHandler    *handler.AuthHandler
	ReportHandler  *handler.ReportHandler
	AddressHandler *handler.AddressHandler
	HealthHandler  *handler.HealthHandler

	Gate    *middleware.AccessGate
	Limiter middleware.Limiter
	JWTMgr  *security.JWTManager

	TokenRateLimitRPM int
	AuthRateLimitRPM  int
}

func New(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	if dep.Gate != nil {
		r.Use(dep.Gate.Middleware())
	}

	limiter := dep.Limiter
	if limiter == nil {
		limiter = middleware.NewLocalFixedWindowLimiter()
	}
	tokenLimit := middleware.NewDistributedRateLimiterWithKey(
		limiter, dep.TokenRateLimitRPM, time.Minute, middleware.FailOpen, "token",
		middleware.SessionOrIPKeyFunc(dep.JWTMgr),
	)
	authLimit := middleware.NewDistributedRateLimiter(
		limiter, dep.AuthRateLimitRPM, time.Minute, middleware.FailClosed, "auth",
	)

	if dep.HealthHandler != nil {
		r.Get("/health/live", dep.HealthHandler.Live)
		r.Get("/health/ready", dep.HealthHandler.Ready)
	}

	r.Route("/api", func(api chi.Router) {
		api.With(tokenLimit.Middleware()).Post("/create-token", dep.TokenHandler.Create)
		api.Get("/check-token", dep.TokenHandler.Check)
		api.Post("/finalise-token", dep.TokenHandler.Finalise)

		if dep.PaymentHandler != nil {
			api.Post("/confirm-payment", dep.PaymentHandler.Confirm)
		}
		if dep.AddressHandler != nil {
			api.Get("/address-search", dep.AddressHandler.Search)
		}
		if dep.AuthHandler != nil {
			api.With(authLimit.Middleware()).Post("/register", dep.AuthHandler.Register)
			api.With(authLimit.Middleware()).Post("/login", dep.AuthHandler.Login)
			api.Post("/logout", dep.AuthHandler.Logout)
			api.With(middleware.RequireSession(dep.JWTMgr)).Get("/me", dep.AuthHandler.Me)
		}
	})

	if dep.ReportHandler != nil {
		r.Get("/report", dep.ReportHandler.Page)
		r.Get("/report/download", dep.ReportHandler.Download)
	}

	return r
}

// GateAllowPrefixes is the allow-list handed to the access gate: the
// token and auth API plus health probes pass without a key; everything
// else (the report surface included) requires one.
func GateAllowPrefixes(extra []string) []string {
	prefixes := []string{"/api/", "/health/"}
	return append(prefixes, extra...)
}
