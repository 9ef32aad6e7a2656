// Package metrics exposes Prometheus counters for HTTP traffic and the
// group workflows.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "budgetshare",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "budgetshare",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// InvitationsSubmitted counts accepted submissions of join requests.
	InvitationsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "budgetshare",
		Name:      "invitations_submitted_total",
		Help:      "Invitation requests created.",
	})

	// InvitationDecisions counts decisions by resulting status.
	InvitationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "budgetshare",
		Name:      "invitation_decisions_total",
		Help:      "Invitation requests decided, by status.",
	}, []string{"status"})

	// LedgerWrites counts ledger entry mutations by operation.
	LedgerWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "budgetshare",
		Name:      "ledger_writes_total",
		Help:      "Ledger entries created, updated or deleted.",
	}, []string{"op"})
)

// Middleware records request counts and latencies.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
