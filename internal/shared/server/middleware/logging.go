package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"contract-analyzer/internal/shared/telemetry"
)

const (
	documentIDKey       = "documentId"
	statusTransitionKey = "statusTransition"
)

// SetDocumentID records the document a request acted on for the access log.
func SetDocumentID(c *gin.Context, documentID string) {
	c.Set(documentIDKey, documentID)
}

// SetStatusTransition records a document status change, e.g. "uploaded->analyzed".
func SetStatusTransition(c *gin.Context, transition string) {
	c.Set(statusTransitionKey, transition)
}

// Logging writes one "request.complete" line per request. Server errors log at
// error level and client errors at warn level.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		status := c.Writer.Status()

		fields := map[string]any{
			"request_id":        RequestIDFromContext(c),
			"method":            c.Request.Method,
			"route":             c.FullPath(),
			"path":              c.Request.URL.Path,
			"status":            status,
			"duration_ms":       float64(time.Since(start).Microseconds()) / 1000.0,
			"user_id":           UserIDFromContext(c),
			"document_id":       c.GetString(documentIDKey),
			"status_transition": c.GetString(statusTransitionKey),
			"client_ip":         c.ClientIP(),
			"user_agent":        c.Request.UserAgent(),
		}

		switch {
		case status >= http.StatusInternalServerError:
			telemetry.Error("request.complete", fields)
		case status >= http.StatusBadRequest:
			telemetry.Warn("request.complete", fields)
		default:
			telemetry.Info("request.complete", fields)
		}
	}
}
