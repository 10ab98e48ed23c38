package ports

import (
	"context"

	"github.com/geosoft/accounts-api/internal/core/domain"
)

// PasswordResetService issues and redeems password-reset tokens.
// RequestReset returns an error only for malformed input; every other
// outcome is indistinguishable to the caller.
type PasswordResetService interface {
	RequestReset(ctx context.Context, email string, app domain.AppSource) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}
