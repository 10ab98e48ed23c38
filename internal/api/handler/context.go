package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/geosoft/accounts-api/internal/core/domain"
)

// Context keys written by the Auth middleware.
const (
	CtxUserID   = "user_id"
	CtxEmail    = "email"
	CtxUsername = "username"
	CtxRole     = "role"
)

// ctxClaims extracts the session claims injected by the Auth middleware.
// A missing user id means the route was mounted without the middleware.
func ctxClaims(c echo.Context) (domain.SessionClaims, error) {
	claims := domain.SessionClaims{}
	claims.UserID, _ = c.Get(CtxUserID).(string)
	if claims.UserID == "" {
		return claims, domain.ErrUnauthenticated
	}
	claims.Email, _ = c.Get(CtxEmail).(string)
	claims.Username, _ = c.Get(CtxUsername).(string)
	claims.Role, _ = c.Get(CtxRole).(string)
	return claims, nil
}
