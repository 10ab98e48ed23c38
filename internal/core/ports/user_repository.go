package ports

import (
	"context"
	"time"

	"github.com/geosoft/accounts-api/internal/core/domain"
)

// UserRepository persists User identities. Implementations must enforce
// unique email and username and report violations as domain.ErrEmailTaken
// or domain.ErrUsernameTaken. Lookups that match nothing return
// domain.ErrUserNotFound.
//
// Writes touch only the fields they name so concurrent sign-ins, links and
// resets on the same record never overwrite each other.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// FindByGoogleIDOrEmail returns the first record whose google id or email
	// matches.
	FindByGoogleIDOrEmail(ctx context.Context, googleID, email string) (*domain.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*domain.User, error)
	// FindByResetTokenHash returns the user holding an unexpired reset token
	// with the given hash.
	FindByResetTokenHash(ctx context.Context, hash string, now time.Time) (*domain.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)

	// AddApp adds app to the user's memberships and reports whether it was
	// missing. MarkEmailVerified reports likewise whether the flag changed.
	AddApp(ctx context.Context, id string, app domain.AppSource, now time.Time) (bool, error)
	RecordLogin(ctx context.Context, id string, now time.Time) error
	// LinkGoogle attaches the identity to a record that has no google id yet
	// and fills an empty avatar. A record already linked is left unchanged.
	LinkGoogle(ctx context.Context, id string, identity domain.ProviderIdentity, now time.Time) error
	MarkEmailVerified(ctx context.Context, id string, now time.Time) (bool, error)
	SetResetToken(ctx context.Context, id, hash string, expires, now time.Time) error
	// RedeemResetToken swaps in passwordHash and clears the reset token, only
	// while a token with the given hash is still unexpired. It returns the
	// updated record, or domain.ErrUserNotFound when no token matched.
	RedeemResetToken(ctx context.Context, hash, passwordHash string, now time.Time) (*domain.User, error)
}
