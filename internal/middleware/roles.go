package middleware

import (
	"net/http"

	"otomart/internal/common"

	"github.com/labstack/echo/v4"
)

// RequireSuperadmin gates the platform-admin surface: invoice
// verification, approval decisions, plan edits, tenant suspension.
func RequireSuperadmin() echo.MiddlewareFunc {
	return RequireRole(common.RoleSuperadmin)
}

// RequireRole rejects requests whose token does not carry one of the
// given platform roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := common.GetRoleFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Role not found")
			}
			for _, allowed := range roles {
				if role == allowed {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
		}
	}
}
