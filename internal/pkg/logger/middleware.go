package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

// MiddlewareOptions configures GinLogger.
type MiddlewareOptions struct {
	// SkipPaths are matched exactly, e.g. /health and /metrics.
	SkipPaths []string
	// SkipPathPrefixes silence whole trees such as static assets.
	SkipPathPrefixes []string
}

func (o MiddlewareOptions) skip(path string) bool {
	for _, p := range o.SkipPaths {
		if p == path {
			return true
		}
	}
	for _, p := range o.SkipPathPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// GinLogger assigns a request id and logs one line per request, at a level
// chosen from the response status.
func GinLogger(logger *Logger, opts MiddlewareOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), requestID))
		c.Header(RequestIDHeader, requestID)

		path := c.Request.URL.Path
		if opts.skip(path) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		}
		// visitor middleware runs after us, so read the id from the final request
		if vid := GetVisitorID(c.Request.Context()); vid != "" {
			fields = append(fields, zap.String("visitor_id", vid))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP Request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP Request", fields...)
		default:
			logger.Info("HTTP Request", fields...)
		}
	}
}

// GinRecovery turns a panic into a 500 and logs it with a stack.
func GinRecovery(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.String("request_id", GetRequestID(c.Request.Context())),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", err),
					zap.Stack("stacktrace"),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":    http.StatusInternalServerError,
					"message": "internal server error",
				})
			}
		}()
		c.Next()
	}
}
