package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "goalwise/internal/errors"
)

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseBody(t, rec)["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

func serve(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, http.NoBody)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/app", func(c *gin.Context) { _ = c.Error(apperrors.ErrGoalNotFound) })
	r.GET("/wrapped", func(c *gin.Context) {
		_ = c.Error(apperrors.Wrap(apperrors.ErrInternalServer, errors.New("db down")))
	})
	r.GET("/plain", func(c *gin.Context) { _ = c.Error(errors.New("secret detail")) })
	r.GET("/bind", func(c *gin.Context) {
		_ = c.Error(errors.New("Key: 'name' failed")).SetType(gin.ErrorTypeBind)
	})
	r.GET("/written", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		_ = c.Error(apperrors.ErrNotFound)
	})

	tests := []struct {
		path       string
		wantStatus int
		wantCode   string
	}{
		{"/app", http.StatusNotFound, "GOAL_NOT_FOUND"},
		{"/wrapped", http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"/plain", http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"/bind", http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.path[1:], func(t *testing.T) {
			rec := serve(r, http.MethodGet, tt.path, nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if code := errorCode(t, rec); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}

	t.Run("plain_error_hidden", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/plain", nil)
		if body := rec.Body.String(); strings.Contains(body, "secret detail") {
			t.Errorf("internal detail leaked: %s", body)
		}
	})

	t.Run("response_already_written", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/written", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogging(), Recovery())
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	rec := serve(r, http.MethodGet, "/boom", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if code := errorCode(t, rec); code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", code)
	}
}

func TestRequestLogging(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogging())
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, RequestID(c)) })

	t.Run("assigns_id", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/id", nil)
		id := rec.Header().Get("X-Request-ID")
		parsed, err := uuid.Parse(id)
		if err != nil || parsed.Version() != 7 {
			t.Fatalf("expected a v7 request id, got %q", id)
		}
		if rec.Body.String() != id {
			t.Errorf("handler saw %q, header has %q", rec.Body.String(), id)
		}
	})

	t.Run("reuses_client_id", func(t *testing.T) {
		clientID := uuid.NewString()
		rec := serve(r, http.MethodGet, "/id", map[string]string{"X-Request-ID": clientID})
		if got := rec.Header().Get("X-Request-ID"); got != clientID {
			t.Errorf("expected %s, got %s", clientID, got)
		}
	})

	t.Run("replaces_malformed_id", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/id", map[string]string{"X-Request-ID": "<script>"})
		if got := rec.Header().Get("X-Request-ID"); got == "<script>" {
			t.Error("expected malformed request id to be replaced")
		}
	})
}
