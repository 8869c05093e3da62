package server

import (
	"strconv"
	"strings"

	prometheusCallpath "git.mci.dev/mse/sre/phoenix/golang/callpath/internal/prometheus"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const requestIDHeader = "X-Request-Id"

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

// RequestMetrics observes http_request_duration_seconds by route template.
func RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(prometheus.ObserverFunc(func(seconds float64) {
			route := c.FullPath()
			if route == "" {
				route = "unknown"
			}

			prometheusCallpath.HTTPRequestDuration.
				WithLabelValues(route, strconv.Itoa(c.Writer.Status())).
				Observe(seconds)
		}))

		c.Next()

		timer.ObserveDuration()
	}
}
