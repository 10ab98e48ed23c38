package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/geosoft/accounts-api/internal/api/handler"
	"github.com/geosoft/accounts-api/internal/core/domain"
)

// TokenParser verifies a bearer token and returns its claims.
type TokenParser interface {
	Parse(token string) (*domain.SessionClaims, error)
}

// Auth validates the bearer token and injects its claims into the context.
func Auth(parser TokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims, err := parser.Parse(strings.TrimSpace(parts[1]))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(handler.CtxUserID, claims.UserID)
			c.Set(handler.CtxEmail, claims.Email)
			c.Set(handler.CtxUsername, claims.Username)
			c.Set(handler.CtxRole, claims.Role)

			return next(c)
		}
	}
}
