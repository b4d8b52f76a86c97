package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestLogger returns a gin middleware that logs each request with the
// gateway's structured logging fields. Server errors log at error level,
// client errors at warn.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		fields := logrus.Fields{
			"method":    c.Request.Method,
			"path":      path,
			"status":    status,
			"duration":  time.Since(start).String(),
			"client_ip": c.ClientIP(),
			"bytes":     c.Writer.Size(),
		}

		switch {
		case status >= 500:
			logrus.WithFields(fields).Error("HTTP request")
		case status >= 400:
			logrus.WithFields(fields).Warn("HTTP request")
		default:
			logrus.WithFields(fields).Info("HTTP request")
		}
	}
}

// RequestMetrics returns a gin middleware that records request counts and
// latencies.
func RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
