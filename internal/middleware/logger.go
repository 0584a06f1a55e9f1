package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AccessLog logs one line per request: WARN for 4xx, ERROR for 5xx, INFO
// otherwise.
func AccessLog(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		user := any("anonymous")
		if id := Identity(c); id != nil {
			user = id.UserID
		}
		entry := log.WithFields(logrus.Fields{
			"method":     c.Request.Method,           // HTTP method
			"path":       c.Request.URL.Path,         // Request path
			"status":     status,                     // Response status
			"latency":    time.Since(start).String(), // Handler time
			"ip":         c.ClientIP(),               // Client address
			"user_id":    user,                       // Caller or anonymous
			"request_id": GetRequestID(c),            // Correlation id
		})
		if err := c.Errors.Last(); err != nil {
			entry = entry.WithError(err.Err)
		}
		switch {
		case status >= 500:
			entry.Error("Request failed")
		case status >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request served")
		}
	}
}
