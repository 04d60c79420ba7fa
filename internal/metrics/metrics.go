package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrix_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatrix_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	// AI metrics
	AIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrix_ai_requests_total",
			Help: "AI chat requests by outcome",
		},
		[]string{"outcome"}, // "ok", "fallback", "invalid", "rate_limited", "misconfigured", "failed"
	)

	AIProviderLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatrix_ai_provider_latency_seconds",
			Help:    "Completion provider call latency",
			Buckets: []float64{.1, .25, .5, 1, 2, 4, 8, 16},
		},
	)

	// Business metrics
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrix_messages_sent_total",
			Help: "Total human-to-human messages sent",
		},
	)

	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatrix_realtime_connections",
			Help: "Open realtime websocket connections",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrix_rate_limit_hits_total",
			Help: "Total rate limit denials",
		},
		[]string{"tier"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrix_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)
)
