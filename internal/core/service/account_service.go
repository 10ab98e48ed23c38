package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/geosoft/accounts-api/internal/core/domain"
	"github.com/geosoft/accounts-api/internal/core/ports"
	"github.com/geosoft/accounts-api/internal/pkg/token"
)

const (
	minPasswordLength = 8

	// maxUsernameAttempts bounds retries when a generated username collides.
	maxUsernameAttempts = 3
)

// AccountService implements signup, signin and the Google callback on top of
// one shared identity per email.
type AccountService struct {
	users    ports.UserRepository
	hasher   ports.PasswordHasher
	sessions ports.SessionIssuer
	oauth    *OAuthService
	log      zerolog.Logger
	now      func() time.Time

	// dummyHash is verified against when no real hash exists so that
	// unknown accounts cost the same as wrong passwords.
	dummyHash string
}

func NewAccountService(users ports.UserRepository, hasher ports.PasswordHasher, sessions ports.SessionIssuer, oauth *OAuthService, log zerolog.Logger) *AccountService {
	dummy, err := hasher.Hash("timing-equaliser")
	if err != nil {
		log.Warn().Err(err).Msg("could not precompute dummy password hash")
	}
	return &AccountService{
		users:     users,
		hasher:    hasher,
		sessions:  sessions,
		oauth:     oauth,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
		dummyHash: dummy,
	}
}

// Signup registers a local account, or links app onto the existing identity
// with the same email when the caller has proven the password.
func (s *AccountService) Signup(ctx context.Context, in ports.SignupInput) (*ports.AuthResult, error) {
	email := domain.NormalizeEmail(in.Email)
	if !domain.ValidEmail(email) {
		return nil, domain.ErrInvalidEmailFormat
	}
	if !in.AppSource.Valid() {
		return nil, domain.ErrInvalidAppSource
	}

	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return s.signupExisting(ctx, existing, in)
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	if len(in.Password) < minPasswordLength {
		return nil, domain.ErrWeakPassword
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, domain.ErrInvalidUsername
	}
	taken, err := s.users.UsernameExists(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return nil, domain.ErrUsernameTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := domain.NewLocalUser(email, username, hash, in.AppSource, s.now())
	user.FirstName = strings.TrimSpace(in.FirstName)
	user.LastName = strings.TrimSpace(in.LastName)

	created, err := s.users.Create(ctx, user)
	if err != nil {
		// Lost a race against a concurrent signup; the unique index decided.
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.ErrDuplicateRegistration
		}
		return nil, err
	}

	s.log.Info().Str("user_id", created.ID).Str("app", string(in.AppSource)).Msg("account created")
	return s.authenticated(created, true, false)
}

func (s *AccountService) signupExisting(ctx context.Context, existing *domain.User, in ports.SignupInput) (*ports.AuthResult, error) {
	if existing.IsRegisteredFor(in.AppSource) {
		return nil, domain.ErrDuplicateRegistration
	}
	if in.LinkAccount == nil {
		apps := append([]domain.AppSource(nil), existing.RegisteredApps...)
		return nil, &domain.LinkPromptError{ExistingApps: apps}
	}
	if !*in.LinkAccount {
		return nil, domain.ErrIndependentAccountNeedsEmail
	}

	ok, err := s.checkPassword(existing, in.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrLinkPasswordMismatch
	}

	now := s.now()
	added, err := s.users.AddApp(ctx, existing.ID, in.AppSource, now)
	if err != nil {
		return nil, fmt.Errorf("link app: %w", err)
	}
	if !added {
		// A concurrent signup linked the same app first.
		return nil, domain.ErrDuplicateRegistration
	}
	existing.RegisterApp(in.AppSource)
	existing.UpdatedAt = now

	s.log.Info().Str("user_id", existing.ID).Str("app", string(in.AppSource)).Msg("account linked")
	return s.authenticated(existing, false, true)
}

// Signin authenticates with email and password. An unknown email and a wrong
// password are indistinguishable.
func (s *AccountService) Signin(ctx context.Context, in ports.SigninInput) (*ports.AuthResult, error) {
	if in.AppSource != "" && !in.AppSource.Valid() {
		return nil, domain.ErrInvalidAppSource
	}

	user, err := s.users.FindByEmail(ctx, domain.NormalizeEmail(in.Email))
	if errors.Is(err, domain.ErrUserNotFound) {
		s.burnVerify(in.Password)
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	if !user.HasPassword() {
		return nil, domain.ErrGoogleSignInRequired
	}

	ok, err := s.checkPassword(user, in.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	linked, err := s.recordLogin(ctx, user, in.AppSource)
	if err != nil {
		return nil, err
	}
	return s.authenticated(user, false, linked)
}

// GoogleAuthURL starts the OAuth flow for app. An empty app uses the default
// client.
func (s *AccountService) GoogleAuthURL(ctx context.Context, app domain.AppSource) (*ports.AuthURL, error) {
	if app != "" && !app.Valid() {
		return nil, domain.ErrInvalidAppSource
	}
	return s.oauth.GenerateAuthURL(ctx, app)
}

// CompleteGoogleSignIn finishes the OAuth flow: state check, code exchange,
// account resolution and session issuance.
func (s *AccountService) CompleteGoogleSignIn(ctx context.Context, in ports.GoogleCallbackInput) (*ports.AuthResult, error) {
	app := in.AppSource
	if app != "" && !app.Valid() {
		return nil, domain.ErrInvalidAppSource
	}
	switch {
	case in.State != "":
		var err error
		if app, err = s.oauth.ConsumeState(ctx, in.State, app); err != nil {
			return nil, err
		}
	case s.oauth.RequiresState():
		return nil, domain.ErrInvalidState
	}
	if !app.Valid() {
		return nil, domain.ErrInvalidAppSource
	}
	if in.Code == "" {
		return nil, domain.ErrInvalidGrant
	}

	redirect := in.RedirectURI
	if redirect == "" {
		redirect = s.oauth.RedirectURIFor(app)
	}

	identity, err := s.oauth.ExchangeCode(ctx, in.Code, redirect, app)
	if err != nil {
		return nil, err
	}
	return s.ResolveOrCreateFromProvider(ctx, identity, app)
}

// ResolveOrCreateFromProvider finds the identity matching the provider id or
// email, links the provider and app onto it, or creates a new Google-only
// identity. The email only matches when the provider verified it.
func (s *AccountService) ResolveOrCreateFromProvider(ctx context.Context, id domain.ProviderIdentity, app domain.AppSource) (*ports.AuthResult, error) {
	existing, err := s.findByProvider(ctx, id)
	switch {
	case err == nil:
		return s.mergeProvider(ctx, existing, id, app)
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, fmt.Errorf("find user by provider: %w", err)
	}

	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		username, err := s.generateUsername(id.Email)
		if err != nil {
			return nil, err
		}

		created, err := s.users.Create(ctx, domain.NewGoogleUser(id, username, app, s.now()))
		switch {
		case err == nil:
			s.log.Info().Str("user_id", created.ID).Str("app", string(app)).Msg("account created from google")
			return s.authenticated(created, true, false)
		case errors.Is(err, domain.ErrUsernameTaken):
			continue
		case errors.Is(err, domain.ErrEmailTaken):
			// A concurrent callback created the identity first.
			existing, ferr := s.findByProvider(ctx, id)
			if errors.Is(ferr, domain.ErrUserNotFound) {
				return nil, domain.ErrUnverifiedProviderEmail
			}
			if ferr != nil {
				return nil, fmt.Errorf("find user after create race: %w", ferr)
			}
			return s.mergeProvider(ctx, existing, id, app)
		default:
			return nil, err
		}
	}
	return nil, domain.ErrUsernameTaken
}

func (s *AccountService) findByProvider(ctx context.Context, id domain.ProviderIdentity) (*domain.User, error) {
	if id.EmailVerified {
		return s.users.FindByGoogleIDOrEmail(ctx, id.ID, id.Email)
	}
	return s.users.FindByGoogleID(ctx, id.ID)
}

func (s *AccountService) mergeProvider(ctx context.Context, user *domain.User, id domain.ProviderIdentity, app domain.AppSource) (*ports.AuthResult, error) {
	if !user.HasGoogle() {
		if err := s.users.LinkGoogle(ctx, user.ID, id, s.now()); err != nil {
			return nil, fmt.Errorf("link google identity: %w", err)
		}
		user.LinkGoogle(id)
	}
	linked, err := s.recordLogin(ctx, user, app)
	if err != nil {
		return nil, err
	}
	return s.authenticated(user, false, linked)
}

// recordLogin adds app to the memberships when given and stamps the login
// time, mirroring both writes onto user.
func (s *AccountService) recordLogin(ctx context.Context, user *domain.User, app domain.AppSource) (bool, error) {
	now := s.now()
	linked := false
	if app != "" {
		var err error
		if linked, err = s.users.AddApp(ctx, user.ID, app, now); err != nil {
			return false, fmt.Errorf("register app: %w", err)
		}
		if linked {
			user.RegisterApp(app)
		}
	}
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		return false, fmt.Errorf("stamp login: %w", err)
	}
	user.TouchLogin(now)
	user.UpdatedAt = now
	return linked, nil
}

// Me returns the identity behind an access token.
func (s *AccountService) Me(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *AccountService) VerifyEmail(ctx context.Context, userID string) (bool, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if user.IsEmailVerified {
		return true, nil
	}
	changed, err := s.markVerified(ctx, user)
	return !changed, err
}

// VerifyAccount marks another user's email as verified. Callers must have
// checked the admin role.
func (s *AccountService) VerifyAccount(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsEmailVerified {
		if _, err := s.markVerified(ctx, user); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (s *AccountService) markVerified(ctx context.Context, user *domain.User) (bool, error) {
	now := s.now()
	changed, err := s.users.MarkEmailVerified(ctx, user.ID, now)
	if err != nil {
		return false, fmt.Errorf("verify email: %w", err)
	}
	user.IsEmailVerified = true
	user.UpdatedAt = now
	return changed, nil
}

// checkPassword verifies plain against the user's hash. Accounts without a
// password still pay for one verification and never match.
func (s *AccountService) checkPassword(user *domain.User, plain string) (bool, error) {
	if !user.HasPassword() {
		s.burnVerify(plain)
		return false, nil
	}
	ok, err := s.hasher.Verify(plain, user.PasswordHash)
	if err != nil {
		return false, fmt.Errorf("verify password: %w", err)
	}
	return ok, nil
}

func (s *AccountService) burnVerify(plain string) {
	_, _ = s.hasher.Verify(plain, s.dummyHash)
}

// generateUsername derives "<local-part>_<base36 millis><4 hex>" from email.
func (s *AccountService) generateUsername(email string) (string, error) {
	local, _, _ := strings.Cut(email, "@")
	suffix, err := token.Generate()
	if err != nil {
		return "", err
	}
	return local + "_" + strconv.FormatInt(s.now().UnixMilli(), 36) + suffix[:4], nil
}

func (s *AccountService) authenticated(user *domain.User, created, linked bool) (*ports.AuthResult, error) {
	accessToken, err := s.sessions.Issue(user)
	if err != nil {
		return nil, err
	}
	return &ports.AuthResult{User: user, AccessToken: accessToken, Created: created, Linked: linked}, nil
}
