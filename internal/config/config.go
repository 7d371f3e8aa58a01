package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string

	DatabaseURL string
	DBTimeout   time.Duration

	ReportBaseURL string
	TokenTTL      time.Duration

	GateAllowPrefixes []string

	JWTIssuer       string
	JWTAudience     string
	JWTAccessSecret string
	JWTAccessTTL    time.Duration
	CookieDomain    string
	CookieSecure    bool
	CookieSameSite  string

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PaymentEnabled         bool
	PaymentProviderURL     string
	PaymentProviderSecret  string
	PaymentProviderTimeout time.Duration
	PaymentDedupTTL        time.Duration

	AddressSearchURL     string
	AddressSearchTimeout time.Duration

	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioUseSSL     bool
	ReportObjectTTL time.Duration

	TokenRateLimitPerMin int
	AuthRateLimitPerMin  int

	LogLevel  string
	LogFormat string
	LogFile   string

	OTELTracingEnabled       bool
	OTELMetricsEnabled       bool
	OTELExporterOTLPEndpoint string
	OTELExporterOTLPInsecure bool
	OTELServiceName          string
	OTELEnvironment          string
	OTELTraceSamplingRatio   float64
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPPort:                 getEnv("HTTP_PORT", "8080"),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		ReportBaseURL:            getEnv("REPORT_BASE_URL", "http://localhost:8080/report"),
		GateAllowPrefixes:        splitCSV(getEnv("GATE_ALLOW_PREFIXES", "/static/,/assets/")),
		JWTIssuer:                getEnv("JWT_ISSUER", "report-access-service"),
		JWTAudience:              getEnv("JWT_AUDIENCE", "report-access-service-api"),
		JWTAccessSecret:          os.Getenv("JWT_ACCESS_SECRET"),
		CookieDomain:             os.Getenv("COOKIE_DOMAIN"),
		CookieSecure:             getEnvBool("COOKIE_SECURE", true),
		CookieSameSite:           strings.ToLower(getEnv("COOKIE_SAMESITE", "lax")),
		RedisEnabled:             getEnvBool("REDIS_ENABLED", false),
		RedisAddr:                getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  getEnvInt("REDIS_DB", 0),
		PaymentEnabled:           getEnvBool("PAYMENT_ENABLED", false),
		PaymentProviderURL:       os.Getenv("PAYMENT_PROVIDER_URL"),
		PaymentProviderSecret:    os.Getenv("PAYMENT_PROVIDER_SECRET"),
		AddressSearchURL:         os.Getenv("ADDRESS_SEARCH_URL"),
		MinioEndpoint:            os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey:           os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:           os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:              getEnv("MINIO_BUCKET", "reports"),
		MinioUseSSL:              getEnvBool("MINIO_USE_SSL", false),
		TokenRateLimitPerMin:     getEnvInt("TOKEN_RATE_LIMIT_PER_MIN", 30),
		AuthRateLimitPerMin:      getEnvInt("AUTH_RATE_LIMIT_PER_MIN", 30),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		LogFormat:                strings.ToLower(getEnv("LOG_FORMAT", "text")),
		LogFile:                  os.Getenv("LOG_FILE"),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", false),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", false),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "report-access-service"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", "development"),
	}

	durations := []struct {
		dst *time.Duration
		key string
		def string
	}{
		{&cfg.DBTimeout, "DB_TIMEOUT", "5s"},
		{&cfg.TokenTTL, "TOKEN_TTL", "24h"},
		{&cfg.JWTAccessTTL, "JWT_ACCESS_TTL", "15m"},
		{&cfg.PaymentProviderTimeout, "PAYMENT_PROVIDER_TIMEOUT", "10s"},
		{&cfg.PaymentDedupTTL, "PAYMENT_DEDUP_TTL", "720h"},
		{&cfg.AddressSearchTimeout, "ADDRESS_SEARCH_TIMEOUT", "10s"},
		{&cfg.ReportObjectTTL, "REPORT_OBJECT_URL_TTL", "15m"},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	ratio, err := strconv.ParseFloat(getEnv("OTEL_TRACE_SAMPLING_RATIO", "1.0"), 64)
	if err != nil {
		return nil, fmt.Errorf("parse OTEL_TRACE_SAMPLING_RATIO: %w", err)
	}
	cfg.OTELTraceSamplingRatio = ratio

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(c.JWTAccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 chars")
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, "TOKEN_TTL must be > 0")
	}
	if u, err := url.Parse(c.ReportBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "REPORT_BASE_URL must be an absolute URL")
	}
	if c.JWTAccessTTL <= 0 || c.JWTAccessTTL > time.Hour {
		errs = append(errs, "JWT_ACCESS_TTL must be between 1s and 1h")
	}
	if c.TokenRateLimitPerMin <= 0 {
		errs = append(errs, "TOKEN_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.AuthRateLimitPerMin <= 0 {
		errs = append(errs, "AUTH_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.PaymentEnabled && c.PaymentProviderURL == "" {
		errs = append(errs, "PAYMENT_PROVIDER_URL is required when PAYMENT_ENABLED")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be within [0,1]")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
