// Package metrics exposes Prometheus instrumentation shared by every
// server binary in the system.
package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts every handled HTTP request by node role and
	// status code.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kvstore",
		Name:      "http_requests_total",
		Help:      "HTTP requests handled, by role and status code.",
	}, []string{"role", "code"})

	// ReplicationAttempts counts per-follower replication attempts by
	// outcome (success / failure).
	ReplicationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kvstore",
		Name:      "replication_attempts_total",
		Help:      "Per-follower replication attempts, by outcome.",
	}, []string{"outcome"})

	// RateLimitRejections counts requests rejected at the front door.
	RateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kvstore",
		Name:      "rate_limit_rejections_total",
		Help:      "Requests rejected by the sliding-window rate limiter.",
	})
)

// Handler returns the /metrics endpoint wrapped for gin.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// CountRequests is a gin middleware recording every response under the
// given node role.
func CountRequests(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		RequestsTotal.WithLabelValues(role, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
