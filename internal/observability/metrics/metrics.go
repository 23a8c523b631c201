package metrics

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics instruments inbound HTTP traffic.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// Metrics exposes application-level instruments for the fulfillment core.
type Metrics struct {
	recommendationsSent *prometheus.CounterVec
	tokensConsumed      *prometheus.CounterVec
	ordersCreated       *prometheus.CounterVec
	notificationsSent   *prometheus.CounterVec
	paymentEvents       *prometheus.CounterVec
}

// NewHTTPMetrics registers HTTP instruments on the default registry.
func NewHTTPMetrics() *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "praxia_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "praxia_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	prometheus.MustRegister(m.requests, m.duration)
	return m
}

// New registers the domain instruments on the default registry.
func New() *Metrics {
	m := &Metrics{
		recommendationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "praxia_recommendations_sent_total",
			Help: "Recommendation sends by outcome.",
		}, []string{"outcome"}),
		tokensConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "praxia_checkout_tokens_consumed_total",
			Help: "Checkout token consumption attempts by outcome.",
		}, []string{"outcome"}),
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "praxia_orders_created_total",
			Help: "Orders created by payment method.",
		}, []string{"payment_method"}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "praxia_notifications_sent_total",
			Help: "Notification channel attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
		paymentEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "praxia_payment_events_total",
			Help: "Payment webhook events by provider and type.",
		}, []string{"provider", "event_type"}),
	}
	prometheus.MustRegister(
		m.recommendationsSent,
		m.tokensConsumed,
		m.ordersCreated,
		m.notificationsSent,
		m.paymentEvents,
	)
	return m
}

// NewNop builds unregistered instruments for tests.
func NewNop() *Metrics {
	return &Metrics{
		recommendationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "nop_recommendations_sent_total"}, []string{"outcome"}),
		tokensConsumed:      prometheus.NewCounterVec(prometheus.CounterOpts{Name: "nop_checkout_tokens_consumed_total"}, []string{"outcome"}),
		ordersCreated:       prometheus.NewCounterVec(prometheus.CounterOpts{Name: "nop_orders_created_total"}, []string{"payment_method"}),
		notificationsSent:   prometheus.NewCounterVec(prometheus.CounterOpts{Name: "nop_notifications_sent_total"}, []string{"channel", "outcome"}),
		paymentEvents:       prometheus.NewCounterVec(prometheus.CounterOpts{Name: "nop_payment_events_total"}, []string{"provider", "event_type"}),
	}
}

func (m *Metrics) RecordRecommendationSend(outcome string) {
	if m == nil {
		return
	}
	m.recommendationsSent.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordTokenConsume(outcome string) {
	if m == nil {
		return
	}
	m.tokensConsumed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordOrderCreated(paymentMethod string) {
	if m == nil {
		return
	}
	m.ordersCreated.WithLabelValues(strings.ToLower(paymentMethod)).Inc()
}

func (m *Metrics) RecordNotification(channel, outcome string) {
	if m == nil {
		return
	}
	m.notificationsSent.WithLabelValues(channel, outcome).Inc()
}

func (m *Metrics) RecordPaymentEvent(provider, eventType string) {
	if m == nil {
		return
	}
	m.paymentEvents.WithLabelValues(provider, eventType).Inc()
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		status := statusLabel(c.Writer.Status())
		m.requests.WithLabelValues(route, c.Request.Method, status).Inc()
		m.duration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
