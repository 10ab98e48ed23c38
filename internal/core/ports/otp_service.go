package ports

import (
	"context"

	"github.com/geosoft/accounts-api/internal/core/domain"
)

// IssuedOTP describes a freshly generated code. Code is only populated
// outside production.
type IssuedOTP struct {
	Token *domain.OTPToken
	Code  string
}

// OTPService manages short numeric codes bound to an authenticated user.
type OTPService interface {
	Generate(ctx context.Context, claims domain.SessionClaims, purpose domain.OTPPurpose) (*IssuedOTP, error)
	Verify(ctx context.Context, userID, code string, purpose domain.OTPPurpose) (*domain.OTPToken, error)
	Invalidate(ctx context.Context, userID string, purpose domain.OTPPurpose) (int64, error)
}
