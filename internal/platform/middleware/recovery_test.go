package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestRecovery_PanicBecomes500(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/preauth/PA-1/status", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set("request_id", "req-7")

	handler := Recovery(logger)(func(c echo.Context) error {
		panic("nil claim snapshot")
	})

	err := handler(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %v", err)
	}

	line := buf.String()
	if !strings.Contains(line, "panic recovered") || !strings.Contains(line, "nil claim snapshot") {
		t.Errorf("panic not logged: %s", line)
	}
	if !strings.Contains(line, `"request_id":"req-7"`) {
		t.Errorf("request id missing: %s", line)
	}
}

func TestRecovery_NormalFlowUntouched(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Recovery(zerolog.Nop())(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status: %d", rec.Code)
	}
}
