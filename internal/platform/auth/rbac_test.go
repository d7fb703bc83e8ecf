package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func requestWithRoles(e *echo.Echo, roles []string) echo.Context {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRolesKey, roles)
	req = req.WithContext(ctx)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestRequireRole_Allows(t *testing.T) {
	e := echo.New()
	handler := RequireRole("doctor")(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	if err := handler(requestWithRoles(e, []string{"doctor"})); err != nil {
		t.Errorf("expected doctor to pass, got %v", err)
	}
}

func TestRequireRole_AdminOverride(t *testing.T) {
	e := echo.New()
	handler := RequireRole("doctor")(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	if err := handler(requestWithRoles(e, []string{"admin"})); err != nil {
		t.Errorf("expected admin to pass, got %v", err)
	}
}

func TestRequireRole_Rejects(t *testing.T) {
	e := echo.New()
	handler := RequireRole("doctor")(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	err := handler(requestWithRoles(e, []string{"receptionist"}))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestRequireRole_NoRoles(t *testing.T) {
	e := echo.New()
	handler := RequireRole("doctor")(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	err := handler(requestWithRoles(e, nil))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403 for empty roles, got %v", err)
	}
}

func TestIsDiagnosticsPerformer(t *testing.T) {
	tests := []struct {
		roles []string
		want  bool
	}{
		{[]string{"lab_tech"}, true},
		{[]string{"radiographer"}, true},
		{[]string{"nurse", "lab_tech"}, true},
		{[]string{"doctor"}, false},
		{[]string{"admin"}, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsDiagnosticsPerformer(tt.roles); got != tt.want {
			t.Errorf("IsDiagnosticsPerformer(%v) = %v, want %v", tt.roles, got, tt.want)
		}
	}
}
