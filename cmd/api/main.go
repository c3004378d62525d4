package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/pos-billing-gateway/internal/backend"
	"github.com/noah-isme/pos-billing-gateway/internal/cart"
	"github.com/noah-isme/pos-billing-gateway/internal/common"
	"github.com/noah-isme/pos-billing-gateway/internal/config"
	"github.com/noah-isme/pos-billing-gateway/internal/health"
	"github.com/noah-isme/pos-billing-gateway/internal/invoice"
	"github.com/noah-isme/pos-billing-gateway/internal/lookup"
	"github.com/noah-isme/pos-billing-gateway/internal/obs"
	"github.com/noah-isme/pos-billing-gateway/internal/proxy"
	"github.com/noah-isme/pos-billing-gateway/internal/ratelimit"
	"github.com/noah-isme/pos-billing-gateway/internal/resilience"
	"github.com/noah-isme/pos-billing-gateway/internal/security"
	"github.com/noah-isme/pos-billing-gateway/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "pos")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	if err := resilience.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		logger.Error().Err(err).Msg("register breaker metrics")
	}

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	shutdownTracer, err := obs.InitTracer(context.Background(), obs.TracingConfig{
		Enabled:       tracingEnabled,
		ServiceName:   "pos-billing-gateway",
		Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
		Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
		SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
		tracingEnabled = false
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(ctx); err != nil {
				logger.Error().Err(err).Msg("shutdown tracer")
			}
		}()
	}

	redisClient := connectRedis(cfg, metricsEnabled, logger)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	breaker := resilience.NewBreaker(cfg.BreakerMinRequests, cfg.BreakerFailureRatio, cfg.BreakerOpenFor).
		WithTarget("backend").
		WithLogger(logger)
	outbound := resilience.HTTPClient{
		Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Breaker:     breaker,
		BaseBackoff: envDurationMillis("BACKEND_RETRY_BACKOFF_MS", 200),
		MaxAttempts: cfg.BackendMaxAttempts,
		Jitter:      0.2,
		Timeout:     cfg.BackendTimeout,
	}
	backendClient := backend.NewClient(cfg.BackendBaseURL, outbound)

	var draftStore cart.Store = cart.NewMemoryStore(cfg.DraftTTL)
	if cfg.DraftStore == config.DraftStoreRedis {
		draftStore = cart.NewRedisStore(redisClient, cfg.DraftTTL)
	}
	drafts := cart.NewService(draftStore)

	lookups := &lookup.Service{
		Catalog:  backendClient,
		Drafts:   drafts,
		Debounce: lookup.NewDebouncer(time.Minute),
		Windows: lookup.Windows{
			Name:    cfg.LookupNameDebounce,
			Barcode: cfg.LookupBarcodeDebounce,
			SKU:     cfg.LookupSKUDebounce,
		},
	}

	invoices := invoice.NewService(backendClient, drafts)
	invoices.DeliveryDefault = cfg.DefaultDeliveryStatus
	invoices.PaymentDefault = cfg.DefaultPaymentStatus

	var limiter ratelimit.Limiter = ratelimit.NewMemory()
	if redisClient != nil {
		limiter = ratelimit.SlidingRedis{Client: redisClient, Prefix: "pos:rl:"}
	}

	var csrf *security.CSRF
	if cfg.CSRFEnabled {
		csrf = &security.CSRF{Secure: cfg.CookieSecure}
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	var pprofHandler http.Handler
	if envBool("OBS_ENABLE_PPROF", !cfg.IsProduction()) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		pprofHandler = protectPprof(newPprofMux(), user, pass)
	}

	probes := []health.Probe{{
		Name:    "backend",
		Check:   func(ctx context.Context) error { return backendClient.Ping(ctx, cfg.BackendHealthPath) },
		Timeout: envDurationMillis("HEALTH_READY_BACKEND_TIMEOUT_MS", 1000),
	}}
	if redisClient != nil {
		probes = append(probes, health.Probe{
			Name:     "redis",
			Check:    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			Timeout:  envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
			Optional: cfg.DraftStore != config.DraftStoreRedis,
		})
	}

	proxyHandler := proxy.NewForwarder(backendClient, cfg.ProxyGroups)
	if cfg.BodyLimitBytes > 0 {
		proxyHandler.MaxBody = cfg.BodyLimitBytes
	}

	handler := routes{
		Logger:  logger,
		Metrics: httpMetrics,
		Tracing: tracingEnabled,
		Pprof:   pprofHandler,
		Headers: security.Headers{
			Enable:        cfg.SecurityHeadersEnabled,
			EnableHSTS:    cfg.IsProduction(),
			NoStorePrefix: "/api/",
		},
		Origins: cfg.CORSAllowedOrigins,
		Body:    security.BodyLimit{Max: cfg.BodyLimitBytes},
		Sessions: session.Resolver{
			TokenCookie: cfg.AuthCookieName,
			StoreCookie: cfg.StoreCookieName,
			RolesCookie: cfg.RolesCookieName,
			SignInPath:  cfg.SignInPath,
			Tokens:      session.TokenValidator{ClockSkew: cfg.TokenClockSkew},
		},
		Roles: cfg.POSRoles,
		CSRF:  csrf,
		Idem:  common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL, Scope: storeScope},
		Search: ratelimit.Handler{
			Limiter: limiter,
			Config:  ratelimit.Config{Window: cfg.LookupRateWindow, Max: cfg.LookupRateLimit},
			OnError: func(err error) { logger.Warn().Err(err).Msg("lookup rate limit") },
		},
		Health:   health.Handler{Probes: probes},
		Drafts:   &cart.Handler{Svc: drafts, SignInPath: cfg.SignInPath},
		Lookup:   &lookup.Handler{Svc: lookups, SignInPath: cfg.SignInPath},
		Invoices: &invoice.Handler{Svc: invoices, SignInPath: cfg.SignInPath, StoreName: cfg.ReceiptStoreName},
		Proxy:    proxyHandler,
	}.handler()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("backend", cfg.BackendBaseURL).Str("draft_store", cfg.DraftStore).Msg("server starting")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
		return
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 15000))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

// connectRedis returns nil when no REDIS_URL is configured.
func connectRedis(cfg *config.Config, metricsEnabled bool, logger zerolog.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		if cfg.DraftStore == config.DraftStoreRedis {
			logger.Fatal().Err(err).Msg("ping redis")
		}
		logger.Warn().Err(err).Msg("redis unreachable at startup")
	}
	return client
}

func storeScope(r *http.Request) string {
	if sess, ok := session.FromContext(r.Context()); ok {
		return sess.StoreID
	}
	return ""
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
