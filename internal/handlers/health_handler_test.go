package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name     string
		ping     error
		status   int
		database string
	}{
		{"healthy", nil, http.StatusOK, "ok"},
		{"database_down", errors.New("dial tcp: connection refused"), http.StatusServiceUnavailable, "unreachable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(pingerFunc(func(ctx context.Context) error {
				if _, ok := ctx.Deadline(); !ok {
					t.Error("expected ping to be bounded by a deadline")
				}
				return tt.ping
			}))
			r := gin.New()
			r.GET("/health", handler.Health)

			rec := doRequest(r, "GET", "/health", "")
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if got := parseJSON(t, rec)["database"]; got != tt.database {
				t.Errorf("expected database %q, got %v", tt.database, got)
			}
		})
	}
}
