package httpx

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// latency buckets reach past the default dispatch timeout
var latencyBuckets = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30}

func (r *Router) initMetrics() {
	r.metricsOnce.Do(func() {
		labels := []string{"method", "route", "status"}
		r.requestTotal = registerCounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vercel",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status.",
		}, labels))
		r.requestLatency = registerHistogramVec(prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vercel",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Handler latency, by route and status.",
			Buckets:   latencyBuckets,
		}, labels))
		r.rateLimitHits = registerCounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vercel",
			Subsystem: "api",
			Name:      "rate_limit_hits_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"route", "key"}))
		r.metricsInitialized = true
	})
}

func registerCounterVec(c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return c
}

func registerHistogramVec(h *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := prometheus.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(*prometheus.HistogramVec)
		}
	}
	return h
}

func (r *Router) recordRequestMetrics(method, route string, status int, duration time.Duration) {
	if !r.metricsInitialized {
		return
	}
	code := strconv.Itoa(status)
	r.requestTotal.WithLabelValues(method, route, code).Inc()
	r.requestLatency.WithLabelValues(method, route, code).Observe(duration.Seconds())
}

func (r *Router) recordRateLimitHit(route, key string) {
	if r.metricsInitialized {
		r.rateLimitHits.WithLabelValues(route, key).Inc()
	}
}
