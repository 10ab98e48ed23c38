package ports

import (
	"context"
	"time"

	"github.com/geosoft/accounts-api/internal/core/domain"
)

// ProviderTokens is what a successful authorization-code exchange yields.
type ProviderTokens struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
}

// OAuthProvider speaks the authorization-code grant to one identity provider.
type OAuthProvider interface {
	AuthCodeURL(creds domain.OAuthCredentials, state string) string
	// Exchange returns domain.ErrInvalidGrant when the provider rejects the
	// code and wraps domain.ErrProviderUnavailable for transport failures.
	Exchange(ctx context.Context, creds domain.OAuthCredentials, code string) (*ProviderTokens, error)
	UserInfo(ctx context.Context, creds domain.OAuthCredentials, tokens *ProviderTokens) (*domain.ProviderProfile, error)
}

// StateStore remembers issued anti-forgery states until the callback.
type StateStore interface {
	Save(ctx context.Context, state string, app domain.AppSource, ttl time.Duration) error
	// Consume deletes state and returns the app it was issued for, or
	// domain.ErrInvalidState when it is unknown or expired.
	Consume(ctx context.Context, state string) (domain.AppSource, error)
}
