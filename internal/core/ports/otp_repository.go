package ports

import (
	"context"
	"time"

	"github.com/geosoft/accounts-api/internal/core/domain"
)

// OTPRepository persists hashed one-time codes.
type OTPRepository interface {
	Create(ctx context.Context, otp *domain.OTPToken) (*domain.OTPToken, error)
	// InvalidateActive marks every unused, unexpired code of purpose as used
	// and returns how many were affected.
	InvalidateActive(ctx context.Context, userID string, purpose domain.OTPPurpose, now time.Time) (int64, error)
	// InvalidateUnused marks every unused code of purpose as used, expired or
	// not.
	InvalidateUnused(ctx context.Context, userID string, purpose domain.OTPPurpose, now time.Time) (int64, error)
	// Consume atomically marks the matching unused, unexpired code as used.
	// It returns domain.ErrOTPNotFound when nothing matches.
	Consume(ctx context.Context, userID string, purpose domain.OTPPurpose, codeHash string, now time.Time) (*domain.OTPToken, error)
}
