package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that rejects requests unless the user holds
// one of the given roles. Admin passes everything.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				for _, has := range userRoles {
					if has == required || has == "admin" {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// Diagnostic performers are the roles that execute tests and therefore face
// the billing settlement gate. Everyone else gets read-only access to order
// detail without the gate.
var performerRoles = map[string]bool{
	"lab_tech":     true,
	"radiographer": true,
}

// IsDiagnosticsPerformer reports whether any of the roles performs
// diagnostic work.
func IsDiagnosticsPerformer(roles []string) bool {
	for _, r := range roles {
		if performerRoles[r] {
			return true
		}
	}
	return false
}
