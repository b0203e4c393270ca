package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"openbci-service/internal/utils"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RecoveryMiddleware(zap.NewNop()))
	engine.Use(RequestIDMiddleware())
	engine.Use(LoggingMiddleware(utils.NewServiceLogger(zap.NewNop(), "test")))
	engine.GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(RequestIDKey))
	})
	engine.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})
	return engine
}

func TestRequestIDMiddleware(t *testing.T) {
	engine := newEngine()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
	generated := w.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(generated); err != nil {
		t.Fatalf("generated id %q is not a uuid: %v", generated, err)
	}
	if w.Body.String() != generated {
		t.Errorf("context id = %q, header id = %q", w.Body.String(), generated)
	}

	supplied := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, supplied)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != supplied {
		t.Errorf("header id = %q, want caller's %q", got, supplied)
	}

	req = httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got == "not-a-uuid" {
		t.Error("malformed caller id was echoed back")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	engine := newEngine()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
