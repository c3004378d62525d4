package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pos-billing-gateway/internal/cart"
	"github.com/noah-isme/pos-billing-gateway/internal/common"
	"github.com/noah-isme/pos-billing-gateway/internal/health"
	"github.com/noah-isme/pos-billing-gateway/internal/invoice"
	"github.com/noah-isme/pos-billing-gateway/internal/lookup"
	"github.com/noah-isme/pos-billing-gateway/internal/obs"
	"github.com/noah-isme/pos-billing-gateway/internal/proxy"
	"github.com/noah-isme/pos-billing-gateway/internal/ratelimit"
	"github.com/noah-isme/pos-billing-gateway/internal/security"
	"github.com/noah-isme/pos-billing-gateway/internal/session"
)

// routes gathers everything the router mounts.
type routes struct {
	Logger   zerolog.Logger
	Metrics  *obs.HTTPMetrics
	Tracing  bool
	Pprof    http.Handler
	Headers  security.Headers
	Origins  []string
	Body     security.BodyLimit
	Sessions session.Resolver
	Roles    []string
	CSRF     *security.CSRF
	Idem     common.Idem
	Search   ratelimit.Handler
	Health   health.Handler
	Drafts   *cart.Handler
	Lookup   *lookup.Handler
	Invoices *invoice.Handler
	Proxy    *proxy.Forwarder
}

func (rt routes) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if rt.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if rt.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: rt.Metrics}.Middleware)
	}
	r.Use(rt.Headers.Middleware)
	r.Use(security.CORS(rt.Origins))
	r.Use(rt.Body.Middleware)
	// the request log reads the session, so attach it first
	r.Use(rt.Sessions.Middleware)
	r.Use(obs.RequestLogger{Logger: rt.Logger}.Middleware)

	if rt.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if rt.Pprof != nil {
		r.Mount("/debug/pprof", rt.Pprof)
	}
	r.Get("/health/live", rt.Health.Live)
	r.Get("/health/ready", rt.Health.Ready)

	r.Route("/api/pos", func(pos chi.Router) {
		if rt.CSRF != nil {
			pos.Get("/csrf", rt.CSRF.Issue)
		}
		pos.Group(func(g chi.Router) {
			g.Use(rt.Sessions.Require)
			g.Use(session.RequireRole(rt.Roles...))
			if rt.CSRF != nil {
				g.Use(rt.CSRF.Middleware)
			}
			g.Route("/drafts", func(d chi.Router) {
				rt.Drafts.Routes(d)
				d.Post("/{draftID}/lines", rt.Lookup.Select)
				d.Group(func(search chi.Router) {
					search.Use(rt.Search.Middleware)
					search.Post("/{draftID}/search/name", rt.Lookup.SearchByName)
					search.Post("/{draftID}/search/code", rt.Lookup.SearchByCode)
				})
				d.With(rt.Idem.Middleware).Post("/{draftID}/submit", rt.Invoices.Submit)
			})
			g.Get("/invoices/{invoiceID}", rt.Invoices.Get)
			g.Get("/invoices/{invoiceID}/receipt.pdf", rt.Invoices.Receipt)
		})
	})

	r.Group(func(api chi.Router) {
		if rt.CSRF != nil {
			api.Use(rt.CSRF.Middleware)
		}
		api.Handle("/api/{group}/*", rt.Proxy)
	})
	return r
}
