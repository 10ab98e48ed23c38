package ports

import "github.com/geosoft/accounts-api/internal/core/domain"

// PasswordHasher hashes passwords with a slow, salted function.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encoded string) (bool, error)
}

// SessionIssuer mints and verifies stateless bearer tokens.
type SessionIssuer interface {
	Issue(user *domain.User) (string, error)
	Parse(token string) (*domain.SessionClaims, error)
}
