package domain

import "time"

// OTPPurpose scopes a one-time code to the flow it was issued for.
type OTPPurpose string

const (
	OTPEmailVerification OTPPurpose = "email_verification"
	OTPPasswordReset     OTPPurpose = "password_reset"
)

func (p OTPPurpose) Valid() bool {
	return p == OTPEmailVerification || p == OTPPasswordReset
}

// OTPToken is a short numeric code bound to one user and purpose. Only the
// hash of the code is kept.
type OTPToken struct {
	ID        string
	UserID    string
	Purpose   OTPPurpose
	CodeHash  string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// EmailMessage is one outbound email.
type EmailMessage struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}
