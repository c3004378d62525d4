// Package config loads gateway settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Draft store kinds.
const (
	DraftStoreMemory = "memory"
	DraftStoreRedis  = "redis"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv string
	Port   string

	BackendBaseURL     string
	BackendTimeout     time.Duration
	BackendMaxAttempts int
	BackendHealthPath  string

	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration

	RedisURL   string
	DraftStore string
	DraftTTL   time.Duration

	LookupNameDebounce    time.Duration
	LookupBarcodeDebounce time.Duration
	LookupSKUDebounce     time.Duration
	LookupRateLimit       int
	LookupRateWindow      time.Duration

	IdempotencyTTL     time.Duration
	BodyLimitBytes     int64
	CORSAllowedOrigins []string

	AuthCookieName  string
	StoreCookieName string
	RolesCookieName string
	POSRoles        []string
	SignInPath      string
	TokenClockSkew  time.Duration
	CookieSecure    bool

	CSRFEnabled            bool
	SecurityHeadersEnabled bool

	ProxyGroups []string

	DefaultDeliveryStatus string
	DefaultPaymentStatus  string
	ReceiptStoreName      string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv: valueOrDefault(k.String("APP_ENV"), "development"),
		Port:   valueOrDefault(k.String("PORT"), "8080"),

		BackendBaseURL:     strings.TrimRight(strings.TrimSpace(k.String("BACKEND_BASE_URL")), "/"),
		BackendTimeout:     parseDuration(k.String("BACKEND_TIMEOUT"), "0s"),
		BackendMaxAttempts: parseInt(k.String("BACKEND_MAX_ATTEMPTS"), 1),
		BackendHealthPath:  valueOrDefault(k.String("BACKEND_HEALTH_PATH"), "/health"),

		BreakerMinRequests:  parseInt(k.String("BREAKER_MIN_REQUESTS"), 5),
		BreakerFailureRatio: parseFloat(k.String("BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:      parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),

		RedisURL:   strings.TrimSpace(k.String("REDIS_URL")),
		DraftStore: strings.ToLower(valueOrDefault(k.String("DRAFT_STORE"), DraftStoreMemory)),
		DraftTTL:   parseDuration(k.String("DRAFT_TTL"), "12h"),

		LookupNameDebounce:    parseDuration(k.String("LOOKUP_NAME_DEBOUNCE"), "100ms"),
		LookupBarcodeDebounce: parseDuration(k.String("LOOKUP_BARCODE_DEBOUNCE"), "300ms"),
		LookupSKUDebounce:     parseDuration(k.String("LOOKUP_SKU_DEBOUNCE"), "700ms"),
		LookupRateLimit:       parseInt(k.String("LOOKUP_RATE_LIMIT"), 30),
		LookupRateWindow:      parseDuration(k.String("LOOKUP_RATE_WINDOW"), "10s"),

		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),
		BodyLimitBytes:     int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		AuthCookieName:  valueOrDefault(k.String("AUTH_COOKIE_NAME"), "authToken"),
		StoreCookieName: valueOrDefault(k.String("STORE_COOKIE_NAME"), "storeId"),
		RolesCookieName: valueOrDefault(k.String("ROLES_COOKIE_NAME"), "roles"),
		POSRoles:        splitAndTrim(k.String("POS_ALLOWED_ROLES")),
		SignInPath:      valueOrDefault(k.String("SIGN_IN_PATH"), "/signin"),
		TokenClockSkew:  parseDuration(k.String("TOKEN_CLOCK_SKEW"), "30s"),
		CookieSecure:    parseBool(k.String("COOKIE_SECURE"), false),

		CSRFEnabled:            parseBool(k.String("CSRF_ENABLED"), true),
		SecurityHeadersEnabled: parseBool(k.String("SECURITY_HEADERS_ENABLED"), true),

		ProxyGroups: splitAndTrim(k.String("PROXY_GROUPS")),

		DefaultDeliveryStatus: valueOrDefault(k.String("DEFAULT_DELIVERY_STATUS"), "Not Delivered"),
		DefaultPaymentStatus:  valueOrDefault(k.String("DEFAULT_PAYMENT_STATUS"), "Pending"),
		ReceiptStoreName:      valueOrDefault(k.String("RECEIPT_STORE_NAME"), "Store"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BackendBaseURL == "" {
		return errors.New("BACKEND_BASE_URL is required")
	}
	u, err := url.Parse(c.BackendBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BACKEND_BASE_URL must be an absolute URL, got %q", c.BackendBaseURL)
	}
	switch c.DraftStore {
	case DraftStoreMemory:
	case DraftStoreRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when DRAFT_STORE=redis")
		}
	default:
		return fmt.Errorf("DRAFT_STORE must be %q or %q, got %q", DraftStoreMemory, DraftStoreRedis, c.DraftStore)
	}
	if c.BackendMaxAttempts < 1 {
		c.BackendMaxAttempts = 1
	}
	if !strings.HasPrefix(c.SignInPath, "/") {
		c.SignInPath = "/" + c.SignInPath
	}
	return nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.AppEnv))
	return env == "production" || env == "prod"
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil || d < 0 {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
