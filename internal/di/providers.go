package di

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"go-report-access-service/internal/app"
	"go-report-access-service/internal/config"
	"go-report-access-service/internal/database"
	"go-report-access-service/internal/http/handler"
	"go-report-access-service/internal/http/middleware"
	"go-report-access-service/internal/http/router"
	"go-report-access-service/internal/observability"
	"go-report-access-service/internal/repository"
	"go-report-access-service/internal/security"
	"go-report-access-service/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(provideLogger, provideObservabilityRuntime)

var RuntimeInfraSet = wire.NewSet(provideOpenDB, provideRedisClient)

var RepositorySet = wire.NewSet(
	repository.NewAccessTokenRepository,
	repository.NewUserRepository,
	repository.NewPurchaseRepository,
)

var SecuritySet = wire.NewSet(provideJWTManager, provideCookieManager)

var ServiceSet = wire.NewSet(
	provideTokenService,
	provideIdempotencyStore,
	providePaymentService,
	provideReportStorage,
	provideAddressSearchService,
	provideAuthService,
)

var HTTPSet = wire.NewSet(
	handler.NewTokenHandler,
	providePaymentHandler,
	provideAuthHandler,
	handler.NewReportHandler,
	provideAddressHandler,
	handler.NewHealthHandler,
	provideAccessGate,
	provideLimiter,
	provideRouterDependencies,
	provideHTTPServer,
)

var AppSet = wire.NewSet(app.New)

func provideLogger(cfg *config.Config) *slog.Logger {
	logger := observability.NewLogger(cfg)
	slog.SetDefault(logger)
	return logger
}

func provideObservabilityRuntime(cfg *config.Config, logger *slog.Logger) (*observability.Runtime, error) {
	return observability.InitRuntime(context.Background(), cfg, logger)
}

func provideOpenDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func provideRedisClient(cfg *config.Config) redis.UniversalClient {
	if !cfg.RedisEnabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret)
}

func provideCookieManager(cfg *config.Config) *security.CookieManager {
	return security.NewCookieManager(cfg.CookieDomain, cfg.CookieSecure, cfg.CookieSameSite)
}

func provideTokenService(repo repository.AccessTokenRepository, cfg *config.Config) service.TokenServiceInterface {
	return service.NewTokenService(repo, cfg.ReportBaseURL, cfg.TokenTTL)
}

func provideIdempotencyStore(cfg *config.Config, db *gorm.DB, client redis.UniversalClient) service.IdempotencyStore {
	if cfg.RedisEnabled && client != nil {
		return service.NewRedisIdempotencyStore(client, "idem")
	}
	return service.NewDBIdempotencyStore(db)
}

func providePaymentService(
	cfg *config.Config,
	tokens service.TokenServiceInterface,
	purchases repository.PurchaseRepository,
	idem service.IdempotencyStore,
) service.PaymentServiceInterface {
	if !cfg.PaymentEnabled {
		return nil
	}
	provider := service.NewHTTPPaymentProvider(cfg.PaymentProviderURL, cfg.PaymentProviderSecret, cfg.PaymentProviderTimeout)
	return service.NewPaymentService(provider, tokens, purchases, idem, cfg.PaymentDedupTTL)
}

func provideReportStorage(cfg *config.Config) (service.ReportStorage, error) {
	if cfg.MinioEndpoint == "" {
		return nil, nil
	}
	return service.NewMinioReportStorage(
		cfg.MinioEndpoint,
		cfg.MinioAccessKey,
		cfg.MinioSecretKey,
		cfg.MinioBucket,
		cfg.MinioUseSSL,
		cfg.ReportObjectTTL,
	)
}

func provideAddressSearchService(cfg *config.Config) *service.AddressSearchService {
	if cfg.AddressSearchURL == "" {
		return nil
	}
	return service.NewAddressSearchService(cfg.AddressSearchURL, cfg.AddressSearchTimeout)
}

func provideAuthService(users repository.UserRepository, jwtMgr *security.JWTManager, cfg *config.Config) *service.AuthService {
	return service.NewAuthService(users, jwtMgr, cfg.JWTAccessTTL)
}

func providePaymentHandler(payments service.PaymentServiceInterface) *handler.PaymentHandler {
	if payments == nil {
		return nil
	}
	return handler.NewPaymentHandler(payments)
}

func provideAuthHandler(auth *service.AuthService, users repository.UserRepository, cookies *security.CookieManager, cfg *config.Config) *handler.AuthHandler {
	return handler.NewAuthHandler(auth, users, cookies, cfg.JWTAccessTTL)
}

func provideAddressHandler(addresses *service.AddressSearchService) *handler.AddressHandler {
	if addresses == nil {
		return nil
	}
	return handler.NewAddressHandler(addresses)
}

func provideAccessGate(tokens service.TokenServiceInterface, cfg *config.Config, logger *slog.Logger) *middleware.AccessGate {
	return middleware.NewAccessGate(tokens, router.GateAllowPrefixes(cfg.GateAllowPrefixes), logger)
}

func provideLimiter(cfg *config.Config, client redis.UniversalClient) middleware.Limiter {
	if cfg.RedisEnabled && client != nil {
		return middleware.NewRedisFixedWindowLimiter(client, "rl")
	}
	return middleware.NewLocalFixedWindowLimiter()
}

func provideRouterDependencies(
	tokenHandler *handler.TokenHandler,
	paymentHandler *handler.PaymentHandler,
	authHandler *handler.AuthHandler,
	reportHandler *handler.ReportHandler,
	addressHandler *handler.AddressHandler,
	healthHandler *handler.HealthHandler,
	gate *middleware.AccessGate,
	limiter middleware.Limiter,
	jwtMgr *security.JWTManager,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		TokenHandler:      tokenHandler,
		PaymentHandler:    paymentHandler,
		AuthHandler:       authHandler,
		ReportHandler:     reportHandler,
		AddressHandler:    addressHandler,
		HealthHandler:     healthHandler,
		Gate:              gate,
		Limiter:           limiter,
		JWTMgr:            jwtMgr,
		TokenRateLimitRPM: cfg.TokenRateLimitPerMin,
		AuthRateLimitRPM:  cfg.AuthRateLimitPerMin,
	}
}

func provideHTTPServer(cfg *config.Config, dep router.Dependencies) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.New(dep),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// MigrationRunner is the schema-only entry point used by `api migrate`
// and the admin CLI.
type MigrationRunner struct {
	db *gorm.DB
}

func NewMigrationRunner(db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{db: db}
}

func (m *MigrationRunner) Run() error {
	return database.Migrate(m.db)
}
