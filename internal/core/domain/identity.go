package domain

import "strings"

// ProviderProfile is the loosely-typed profile as returned by an OAuth
// provider. It never travels past the OAuth service.
type ProviderProfile struct {
	ID            string
	Email         string
	VerifiedEmail bool
	GivenName     string
	FamilyName    string
	Picture       string
}

// ProviderIdentity is a validated provider profile: ID and Email are always
// present and Email is normalized. EmailVerified gates matching an existing
// identity by email.
type ProviderIdentity struct {
	ID            string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	Picture       string
}

// NewProviderIdentity rejects profiles lacking the claims account resolution
// depends on.
func NewProviderIdentity(p ProviderProfile) (ProviderIdentity, error) {
	id := strings.TrimSpace(p.ID)
	email := NormalizeEmail(p.Email)
	if id == "" || email == "" {
		return ProviderIdentity{}, ErrMissingProviderClaims
	}
	return ProviderIdentity{
		ID:            id,
		Email:         email,
		EmailVerified: p.VerifiedEmail,
		GivenName:     p.GivenName,
		FamilyName:    p.FamilyName,
		Picture:       p.Picture,
	}, nil
}

// SessionClaims is what a verified access token asserts about its bearer.
type SessionClaims struct {
	UserID   string
	Email    string
	Username string
	Role     string
}
