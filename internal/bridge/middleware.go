package bridge

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// Context keys set by the middleware chain.
const (
	requestIDKey = "request_id"
	outcomeKey   = "outcome"
)

// RequestIDHeader carries the request id on every response.
const RequestIDHeader = "X-Request-Id"

var errMissingResolverName = errors.New("resolver_name is required")

// requestID assigns each request an id from the server's generator.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := s.ids.Generate()
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func requestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func outcome(c *gin.Context) string {
	if o := c.GetString(outcomeKey); o != "" {
		return o
	}
	return OutcomeOK
}

// recordingWriter copies the response body for tracing.
type recordingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// trace logs each request with its payloads at debug level.
func (s *Server) trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.logger.Enabled(c.Request.Context(), slog.LevelDebug) {
			c.Next()
			return
		}
		start := time.Now()

		var reqBody []byte
		if c.Request.Body != nil {
			var err error
			reqBody, err = io.ReadAll(c.Request.Body)
			if err != nil {
				s.logger.Debug("read request body",
					"request_id", requestIDFrom(c),
					"path", c.Request.URL.Path,
					"read", len(reqBody),
					"error", err,
				)
				s.fail(c, &badRequest{err: err})
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(reqBody))
		}
		rec := &recordingWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = rec

		c.Next()

		s.logger.Debug("request",
			"request_id", requestIDFrom(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"outcome", outcome(c),
			"duration", time.Since(start),
			"request", string(reqBody),
			"response", rec.body.String(),
		)
	}
}
