// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "startpage"

// Metrics holds all collectors. Each instance owns its registry so tests
// can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Navigation
	Resolutions        *prometheus.CounterVec
	ResolverFallbacks  prometheus.Counter
	ProxiedNavigations prometheus.Counter

	// Edge protection
	RateLimited    *prometheus.CounterVec
	BlockedAgents  prometheus.Counter
	RateLimitLocal prometheus.Counter

	// Outbound calls (turnstile, tmdb)
	UpstreamCalls    *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec

	// Cache
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// New 创建指标集合
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "route"}),

		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Inputs resolved to a destination, by classification",
		}, []string{"kind"}),
		ResolverFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_fallbacks_total",
			Help:      "Resolutions that failed validation and used the default engine",
		}),
		ProxiedNavigations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxied_navigations_total",
			Help:      "Navigations routed through the proxy prefix",
		}),

		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter, by rule prefix",
		}, []string{"rule"}),
		BlockedAgents: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocked_user_agents_total",
			Help:      "API requests rejected for a suspicious user agent",
		}),
		RateLimitLocal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_local_fallback_total",
			Help:      "Rate limit decisions made in-process because redis failed",
		}),

		UpstreamCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_calls_total",
			Help:      "Outbound API calls",
		}, []string{"service", "status"}),
		UpstreamDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_call_duration_seconds",
			Help:      "Outbound API call duration in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"service"}),

		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache hits by cache name",
		}, []string{"cache"}),
		CacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache misses by cache name",
		}, []string{"cache"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordResolution counts one resolution. A nil receiver is a no-op so
// callers that run without metrics need no guard.
func (m *Metrics) RecordResolution(kind string, fellBack, proxied bool) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(kind).Inc()
	if fellBack {
		m.ResolverFallbacks.Inc()
	}
	if proxied {
		m.ProxiedNavigations.Inc()
	}
}

func (m *Metrics) RecordUpstream(service string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.UpstreamCalls.WithLabelValues(service, status).Inc()
	m.UpstreamDuration.WithLabelValues(service).Observe(d.Seconds())
}

func (m *Metrics) RecordCache(cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.WithLabelValues(cache).Inc()
	} else {
		m.CacheMisses.WithLabelValues(cache).Inc()
	}
}

func (m *Metrics) RecordRateLimited(rule string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(rule).Inc()
}

func (m *Metrics) RecordLocalRateLimit() {
	if m == nil {
		return
	}
	m.RateLimitLocal.Inc()
}

func (m *Metrics) RecordBlockedAgent() {
	if m == nil {
		return
	}
	m.BlockedAgents.Inc()
}

// Middleware records request count and latency per matched route. Unmatched
// paths share one label so static files and probes cannot explode the
// label set.
func Middleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
