package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicore/hms/internal/platform/auth"
)

func TestAudit_LogsClinicalRoutes(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/diagnostic-orders/abc", nil)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, "user-7")
	ctx = context.WithValue(ctx, auth.UserRolesKey, []string{"lab_tech"})
	req = req.WithContext(ctx)
	c := e.NewContext(req, httptest.NewRecorder())

	err := Audit(logger)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"clinical_audit", "user-7", "diagnostic-orders", `"action":"read"`} {
		if !strings.Contains(out, want) {
			t.Errorf("audit log missing %q: %s", want, out)
		}
	}
}

func TestAudit_SkipsNonAPIRoutes(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := Audit(logger)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("health check should not be audited: %s", buf.String())
	}
}

func TestHTTPMethodToAction(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{http.MethodGet, "read"},
		{http.MethodPost, "create"},
		{http.MethodPut, "update"},
		{http.MethodDelete, "delete"},
		{"OPTIONS", "read"},
	}
	for _, tt := range tests {
		if got := httpMethodToAction(tt.method); got != tt.want {
			t.Errorf("httpMethodToAction(%s) = %q, want %q", tt.method, got, tt.want)
		}
	}
}

func TestExtractResourceType(t *testing.T) {
	if got := extractResourceType("/api/v1/queue"); got != "queue" {
		t.Errorf("extractResourceType = %q, want queue", got)
	}
	if got := extractResourceType("/api/v1/"); got != "unknown" {
		t.Errorf("extractResourceType = %q, want unknown", got)
	}
}
