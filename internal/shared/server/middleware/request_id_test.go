package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestRequestIDPropagatesOrGenerates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, RequestIDFromContext(c))
	})

	tests := []struct {
		name     string
		inbound  string
		wantSame bool
	}{
		{name: "propagated", inbound: "abc-123", wantSame: true},
		{name: "dotted", inbound: "batch.7_doc-9", wantSame: true},
		{name: "missing", inbound: ""},
		{name: "header injection", inbound: "abc\r\nX-Evil: 1"},
		{name: "spaces", inbound: "contract review"},
		{name: "too long", inbound: strings.Repeat("a", maxRequestIDLen+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.inbound != "" {
				req.Header[HeaderRequestID] = []string{tt.inbound}
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			got := resp.Header().Get(HeaderRequestID)
			if resp.Body.String() != got {
				t.Fatalf("context id %q differs from header %q", resp.Body.String(), got)
			}
			if tt.wantSame {
				if got != tt.inbound {
					t.Fatalf("expected propagated id %q, got %q", tt.inbound, got)
				}
				return
			}
			if _, err := uuid.Parse(got); err != nil {
				t.Fatalf("expected generated uuid, got %q", got)
			}
		})
	}
}

func TestRequestIDFromContextWithoutMiddleware(t *testing.T) {
	if got := RequestIDFromContext(nil); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
}
