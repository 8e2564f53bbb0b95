package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/pulseboard/pulseboard/internal/logging"
)

// maxLoggedBodyBytes caps the response body included in a request-log entry.
const maxLoggedBodyBytes = 4096

// RequestLoggingMiddleware logs each request's method, path and captured
// response when the request log is enabled. The enabled state is read per
// request so a config hot reload takes effect without restart.
func RequestLoggingMiddleware(enabled func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled() || !shouldLogRequest(c.Request.URL.Path) {
			c.Next()
			return
		}

		wrapper := NewResponseWriterWrapper(c.Writer)
		c.Writer = wrapper

		c.Next()

		body := wrapper.Body()
		if len(body) > maxLoggedBodyBytes {
			body = body[:maxLoggedBodyBytes]
		}
		log.WithFields(log.Fields{
			"request_id": logging.GetGinRequestID(c),
			"endpoint":   c.Request.URL.Path,
			"status":     wrapper.StatusCode(),
		}).Debugf("%s %s -> %s", c.Request.Method, c.Request.URL.RequestURI(), string(body))
	}
}

// shouldLogRequest excludes the auth routes: their payloads carry
// authorization codes and session state that must not land in logs.
func shouldLogRequest(path string) bool {
	if strings.HasPrefix(path, "/v1/auth") || path == "/connect" {
		return false
	}
	return true
}
