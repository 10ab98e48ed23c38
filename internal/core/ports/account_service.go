package ports

import (
	"context"

	"github.com/geosoft/accounts-api/internal/core/domain"
)

// SignupInput carries a local registration attempt. LinkAccount is nil until
// the caller has answered the link prompt.
type SignupInput struct {
	Email       string
	Password    string
	Username    string
	FirstName   string
	LastName    string
	AppSource   domain.AppSource
	LinkAccount *bool
}

// SigninInput carries a password login. AppSource is optional; when set the
// app is added to the identity's memberships.
type SigninInput struct {
	Email     string
	Password  string
	AppSource domain.AppSource
}

// GoogleCallbackInput carries the query of an OAuth redirect. RedirectURI
// and State are optional.
type GoogleCallbackInput struct {
	Code        string
	RedirectURI string
	State       string
	AppSource   domain.AppSource
}

// AuthResult is a resolved identity plus the session issued for it.
type AuthResult struct {
	User        *domain.User
	AccessToken string
	// Created is true when the identity did not exist before this call.
	Created bool
	// Linked is true when the call added an app to an existing identity.
	Linked bool
}

// AuthURL is the provider authorization URL and the state bound to it.
type AuthURL struct {
	URL   string
	State string
}

// AccountService resolves, creates and links identities.
type AccountService interface {
	Signup(ctx context.Context, input SignupInput) (*AuthResult, error)
	Signin(ctx context.Context, input SigninInput) (*AuthResult, error)
	GoogleAuthURL(ctx context.Context, app domain.AppSource) (*AuthURL, error)
	CompleteGoogleSignIn(ctx context.Context, input GoogleCallbackInput) (*AuthResult, error)
	Me(ctx context.Context, userID string) (*domain.User, error)
	// VerifyEmail reports whether the address was already verified.
	VerifyEmail(ctx context.Context, userID string) (alreadyVerified bool, err error)
	VerifyAccount(ctx context.Context, userID string) (*domain.User, error)
}
