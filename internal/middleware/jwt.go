package middleware

import (
	"context"
	"net/http"

	"otomart/internal/common"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// JWTClaims are the platform claims issued by the auth subsystem
// (out of scope here): the user, the dealership it belongs to, and
// its platform role. Superadmin tokens carry no tenant.
type JWTClaims struct {
	UserID   uuid.UUID `json:"user_id"`
	TenantID uuid.UUID `json:"tenant_id"`
	Role     string    `json:"role"`
	jwt.RegisteredClaims
}

// JWTMiddleware validates the bearer token and stores user, tenant,
// and role on the request context.
func JWTMiddleware(jwtSecret string) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(jwtSecret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(JWTClaims)
		},
		SuccessHandler: func(c echo.Context) {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return
			}
			claims, ok := token.Claims.(*JWTClaims)
			if !ok {
				return
			}

			ctx := context.WithValue(c.Request().Context(), common.UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, common.TenantIDKey, claims.TenantID)
			ctx = context.WithValue(ctx, common.RoleKey, claims.Role)
			c.SetRequest(c.Request().WithContext(ctx))
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		},
	})
}
