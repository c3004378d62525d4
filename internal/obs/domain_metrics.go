package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CatalogLookupTotal counts catalog lookups by mode (name, barcode, sku) and outcome.
	CatalogLookupTotal *prometheus.CounterVec
	// InvoiceSubmitTotal counts invoice submission outcomes.
	InvoiceSubmitTotal *prometheus.CounterVec
	// DraftMutationTotal counts cart mutations by operation.
	DraftMutationTotal *prometheus.CounterVec
	// UpstreamRequestTotal counts calls to the backend service by method and status.
	UpstreamRequestTotal *prometheus.CounterVec
	// UpstreamLatency records backend call latency in milliseconds.
	UpstreamLatency *prometheus.HistogramVec
	// ProxyRequestTotal counts relayed proxy calls by route group and status.
	ProxyRequestTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CatalogLookupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_lookup_total",
			Help:      "Count of catalog lookups by mode and outcome.",
		}, []string{"mode", "result"})
		InvoiceSubmitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_submit_total",
			Help:      "Count of invoice submissions by outcome.",
		}, []string{"result"})
		DraftMutationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_mutation_total",
			Help:      "Count of invoice draft mutations by operation.",
		}, []string{"operation"})
		UpstreamRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Count of backend requests by method and status.",
		}, []string{"method", "status"})
		UpstreamLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_ms",
			Help:      "Backend request latency in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"method"})
		ProxyRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_requests_total",
			Help:      "Count of relayed proxy requests by route group and status.",
		}, []string{"group", "status"})

		mustRegisterCollector(reg, CatalogLookupTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CatalogLookupTotal = v
			}
		})
		mustRegisterCollector(reg, InvoiceSubmitTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				InvoiceSubmitTotal = v
			}
		})
		mustRegisterCollector(reg, DraftMutationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				DraftMutationTotal = v
			}
		})
		mustRegisterCollector(reg, UpstreamRequestTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				UpstreamRequestTotal = v
			}
		})
		mustRegisterCollector(reg, UpstreamLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				UpstreamLatency = v
			}
		})
		mustRegisterCollector(reg, ProxyRequestTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ProxyRequestTotal = v
			}
		})
	})
}

// CountLookup increments CatalogLookupTotal when metrics are registered.
func CountLookup(mode, result string) {
	if CatalogLookupTotal != nil {
		CatalogLookupTotal.WithLabelValues(mode, result).Inc()
	}
}

// CountSubmit increments InvoiceSubmitTotal when metrics are registered.
func CountSubmit(result string) {
	if InvoiceSubmitTotal != nil {
		InvoiceSubmitTotal.WithLabelValues(result).Inc()
	}
}

// CountMutation increments DraftMutationTotal when metrics are registered.
func CountMutation(operation string) {
	if DraftMutationTotal != nil {
		DraftMutationTotal.WithLabelValues(operation).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
