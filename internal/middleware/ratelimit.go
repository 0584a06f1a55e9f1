package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"core_bank/internal/metrics"
	"core_bank/internal/ratelimit"
)

// RateLimit counts hits per client IP and route. Limiter failures let the
// request through.
func RateLimit(l ratelimit.Limiter, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		res, err := l.Allow(c.Request.Context(), c.ClientIP()+":"+route)
		if err != nil {
			log.WithFields(logrus.Fields{
				"route":      route,
				"request_id": GetRequestID(c),
			}).WithError(err).Warn("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
		if !res.Allowed {
			metrics.RateLimitedTotal.WithLabelValues(route).Inc()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "Too many requests, please retry later",
				Code:  "rate_limited",
			})
			return
		}
		c.Next()
	}
}
