package ports

import (
	"context"
	"time"

	"github.com/geosoft/accounts-api/internal/core/domain"
)

// Mailer delivers one message over the wire.
type Mailer interface {
	Send(ctx context.Context, msg domain.EmailMessage) error
}

// Notifier renders and hands off account emails. Errors only report that
// the message could not be queued; delivery failures are logged downstream.
type Notifier interface {
	PasswordReset(ctx context.Context, email, resetToken string, app domain.AppSource) error
	OTP(ctx context.Context, email, code string, purpose domain.OTPPurpose, ttl time.Duration) error
}
