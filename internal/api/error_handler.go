package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/geosoft/accounts-api/internal/api/handler"
	"github.com/geosoft/accounts-api/internal/core/domain"
)

const codeLinkPrompt = "ACCOUNT_EXISTS_LINK_PROMPT"

type errorMapping struct {
	err     error
	status  int
	message string
}

// errorMappings is evaluated in order; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{domain.ErrInvalidEmailFormat, http.StatusBadRequest, "Invalid email format"},
	{domain.ErrWeakPassword, http.StatusBadRequest, "Password must be at least 8 characters"},
	{domain.ErrInvalidAppSource, http.StatusBadRequest, "Valid appSource is required"},
	{domain.ErrInvalidUsername, http.StatusBadRequest, "Username is required"},
	{domain.ErrInvalidOTPPurpose, http.StatusBadRequest, "type must be 'email_verification' or 'password_reset'"},

	{domain.ErrDuplicateRegistration, http.StatusConflict, "Email already registered for this app"},
	{domain.ErrIndependentAccountNeedsEmail, http.StatusConflict, "To create an independent account, please use a different email address"},
	{domain.ErrUsernameTaken, http.StatusConflict, "Username already taken"},
	{domain.ErrUnverifiedProviderEmail, http.StatusConflict, "An account with this email already exists. Sign in with your password to link Google"},
	{domain.ErrEmailTaken, http.StatusConflict, "Email already registered"},

	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{domain.ErrLinkPasswordMismatch, http.StatusUnauthorized, "Password does not match existing account. Use the same password to link accounts."},
	{domain.ErrGoogleSignInRequired, http.StatusBadRequest, "Please sign in with Google"},
	{domain.ErrInvalidOrExpiredToken, http.StatusBadRequest, "Invalid or expired reset token"},
	{domain.ErrInvalidOTP, http.StatusBadRequest, "Invalid or expired OTP code"},
	{domain.ErrUnauthenticated, http.StatusUnauthorized, "Authentication required"},
	{domain.ErrForbidden, http.StatusForbidden, "Access forbidden"},

	{domain.ErrInvalidRedirect, http.StatusBadRequest, "redirectUri is not registered for any app"},
	{domain.ErrInvalidGrant, http.StatusBadRequest, "Authorization code is invalid or expired"},
	{domain.ErrInvalidState, http.StatusBadRequest, "Invalid or expired OAuth state"},
	{domain.ErrMissingProviderClaims, http.StatusBadRequest, "Failed to get user info from Google"},
	{domain.ErrProviderUnavailable, http.StatusBadGateway, "Google authentication failed"},

	{domain.ErrUserNotFound, http.StatusNotFound, "User not found"},
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their HTTP status and public message.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders the standard envelope with data set to null.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		resp := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(resp.Status)
			return
		}
		_ = c.JSON(resp.Status, resp)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) handler.Response {
	resp := handler.Response{Success: false}

	var prompt *domain.LinkPromptError
	if errors.As(err, &prompt) {
		resp.Status = http.StatusConflict
		resp.Message = "Account exists with this email for another app"
		resp.Code = codeLinkPrompt
		resp.ErrorData = map[string]any{
			"existingApps": prompt.ExistingApps,
			"prompt":       domain.LinkPrompt,
		}
		return resp
	}

	// Echo's own errors (bind failures, validation, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		resp.Status = he.Code
		resp.Message = fmt.Sprintf("%v", he.Message)
		return resp
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Status = m.status
			resp.Message = m.message
			if m.status >= http.StatusInternalServerError {
				log.Warn().Err(err).Str("path", c.Path()).Msg("upstream failure")
			}
			return resp
		}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	resp.Status = http.StatusInternalServerError
	resp.Message = "Internal Server Error"
	return resp
}
