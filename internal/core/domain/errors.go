package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Validation.
var (
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidAppSource   = errors.New("valid appSource is required")
	ErrInvalidUsername    = errors.New("username is required")
	ErrInvalidOTPPurpose  = errors.New("type must be 'email_verification' or 'password_reset'")
)

// Conflicts.
var (
	ErrEmailTaken                   = errors.New("email already in use")
	ErrUsernameTaken                = errors.New("username already taken")
	ErrDuplicateRegistration        = errors.New("email already registered for this app")
	ErrLinkPromptRequired           = errors.New("account exists with this email for another app")
	ErrIndependentAccountNeedsEmail = errors.New("to create an independent account, please use a different email address")
	ErrUnverifiedProviderEmail      = errors.New("an account with this email exists and google has not verified the address")
)

// Authentication.
var (
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrLinkPasswordMismatch  = errors.New("password does not match existing account. Use the same password to link accounts")
	ErrGoogleSignInRequired  = errors.New("please sign in with google")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired reset token")
	ErrInvalidOTP            = errors.New("invalid or expired OTP code")
	ErrUnauthenticated       = errors.New("authentication required")
	ErrForbidden             = errors.New("access forbidden")
)

// OAuth.
var (
	ErrInvalidRedirect       = errors.New("redirect_uri is not registered for any app")
	ErrInvalidGrant          = errors.New("authorization code rejected by provider")
	ErrInvalidState          = errors.New("invalid or expired oauth state")
	ErrMissingProviderClaims = errors.New("provider identity is missing email or id")
	ErrProviderUnavailable   = errors.New("oauth provider request failed")
)

// Lookups.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrOTPNotFound  = errors.New("otp token not found")
)

// ErrInvariant is wrapped by User.Validate failures.
var ErrInvariant = errors.New("user invariant violated")

// LinkPromptError is returned when a signup hits an email already registered
// under other apps and the caller has not decided whether to link. It
// matches ErrLinkPromptRequired with errors.Is.
type LinkPromptError struct {
	ExistingApps []AppSource
}

// LinkPrompt is the question shown to the user alongside the existing apps.
const LinkPrompt = "An account with this email exists. Would you like to link your accounts (same password for all apps) or create an independent account?"

func (e *LinkPromptError) Error() string {
	apps := make([]string, 0, len(e.ExistingApps))
	for _, a := range e.ExistingApps {
		apps = append(apps, string(a))
	}
	return fmt.Sprintf("%s (registered apps: %s)", ErrLinkPromptRequired, strings.Join(apps, ","))
}

func (e *LinkPromptError) Is(target error) bool {
	return target == ErrLinkPromptRequired
}
