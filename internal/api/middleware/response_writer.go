// Package middleware provides Gin HTTP middleware for the PulseBoard API
// server: request/response capture for the optional request log.
package middleware

import (
	"bytes"

	"github.com/gin-gonic/gin"
)

// ResponseWriterWrapper wraps gin.ResponseWriter to capture the response body
// and status for the request log. Writes go to the client first; capture never
// delays the response.
type ResponseWriterWrapper struct {
	gin.ResponseWriter
	body       *bytes.Buffer
	statusCode int
}

// NewResponseWriterWrapper wraps the given writer.
func NewResponseWriterWrapper(w gin.ResponseWriter) *ResponseWriterWrapper {
	return &ResponseWriterWrapper{
		ResponseWriter: w,
		body:           &bytes.Buffer{},
	}
}

// Write writes to the client and mirrors the bytes into the capture buffer.
func (w *ResponseWriterWrapper) Write(data []byte) (int, error) {
	n, err := w.ResponseWriter.Write(data)
	if n > 0 {
		w.body.Write(data[:n])
	}
	return n, err
}

// WriteHeader records the status code before delegating.
func (w *ResponseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// StatusCode returns the recorded status, defaulting to the underlying
// writer's view when WriteHeader was never called explicitly.
func (w *ResponseWriterWrapper) StatusCode() int {
	if w.statusCode != 0 {
		return w.statusCode
	}
	return w.ResponseWriter.Status()
}

// Body returns the captured response body.
func (w *ResponseWriterWrapper) Body() []byte {
	return w.body.Bytes()
}
