package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/geosoft/accounts-api/internal/core/domain"
	"github.com/geosoft/accounts-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// stubUserRepo is an in-memory UserRepository enforcing the same unique
// constraints as the Mongo indexes.
type stubUserRepo struct {
	mu     sync.Mutex
	users  map[string]*domain.User // by id
	nextID int

	createErr error
	writeErr  error
	findErr   error
	creates   int
	writes    int
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.RegisteredApps = append([]domain.AppSource(nil), u.RegisteredApps...)
	return &clone
}

func (r *stubUserRepo) seed(u *domain.User) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c := cloneUser(u)
	c.ID = fmt.Sprintf("u%d", r.nextID)
	r.users[c.ID] = c
	return cloneUser(c)
}

func (r *stubUserRepo) get(id string) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneUser(r.users[id])
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	if u, ok := r.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByGoogleIDOrEmail(_ context.Context, googleID, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.users {
		if (googleID != "" && u.GoogleID == googleID) || u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByResetTokenHash(_ context.Context, hash string, now time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.users {
		if u.ResetPasswordToken == hash && u.ResetTokenActive(now) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) UsernameExists(_ context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.createErr != nil {
		return nil, r.createErr
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.ErrEmailTaken
		}
		if u.Username == user.Username {
			return nil, domain.ErrUsernameTaken
		}
	}
	r.nextID++
	c := cloneUser(user)
	c.ID = fmt.Sprintf("u%d", r.nextID)
	r.users[c.ID] = c
	return cloneUser(c), nil
}

// write applies fn to the stored record under the lock.
func (r *stubUserRepo) write(id string, fn func(u *domain.User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if r.writeErr != nil {
		return r.writeErr
	}
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	return fn(u)
}

func (r *stubUserRepo) FindByGoogleID(_ context.Context, googleID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.users {
		if googleID != "" && u.GoogleID == googleID {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) AddApp(_ context.Context, id string, app domain.AppSource, now time.Time) (bool, error) {
	var added bool
	err := r.write(id, func(u *domain.User) error {
		if added = u.RegisterApp(app); added {
			u.UpdatedAt = now
		}
		return nil
	})
	return added, err
}

func (r *stubUserRepo) RecordLogin(_ context.Context, id string, now time.Time) error {
	return r.write(id, func(u *domain.User) error {
		u.TouchLogin(now)
		return nil
	})
}

func (r *stubUserRepo) LinkGoogle(_ context.Context, id string, identity domain.ProviderIdentity, now time.Time) error {
	return r.write(id, func(u *domain.User) error {
		if u.GoogleID != "" {
			return nil
		}
		for _, other := range r.users {
			if other.GoogleID == identity.ID {
				return domain.ErrEmailTaken
			}
		}
		u.LinkGoogle(identity)
		u.UpdatedAt = now
		return nil
	})
}

func (r *stubUserRepo) MarkEmailVerified(_ context.Context, id string, now time.Time) (bool, error) {
	var changed bool
	err := r.write(id, func(u *domain.User) error {
		changed = !u.IsEmailVerified
		u.IsEmailVerified = true
		u.UpdatedAt = now
		return nil
	})
	return changed, err
}

func (r *stubUserRepo) SetResetToken(_ context.Context, id, hash string, expires, now time.Time) error {
	return r.write(id, func(u *domain.User) error {
		u.SetResetToken(hash, expires)
		u.UpdatedAt = now
		return nil
	})
}

func (r *stubUserRepo) RedeemResetToken(_ context.Context, hash, passwordHash string, now time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if r.writeErr != nil {
		return nil, r.writeErr
	}
	for _, u := range r.users {
		if hash != "" && u.ResetPasswordToken == hash && u.ResetTokenActive(now) {
			u.PasswordHash = passwordHash
			u.ClearResetToken()
			u.UpdatedAt = now
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// ---------------------------------------------------------------------------
// Crypto
// ---------------------------------------------------------------------------

// stubHasher is a fast, reversible stand-in for argon2id.
type stubHasher struct {
	verifies int
}

func (h *stubHasher) Hash(plain string) (string, error) {
	return "hashed:" + plain, nil
}

func (h *stubHasher) Verify(plain, encoded string) (bool, error) {
	h.verifies++
	return encoded == "hashed:"+plain, nil
}

// ---------------------------------------------------------------------------
// OAuth
// ---------------------------------------------------------------------------

type stubProvider struct {
	exchangeFn func(creds domain.OAuthCredentials, code string) (*ports.ProviderTokens, error)
	profile    *domain.ProviderProfile
	profileErr error

	exchangedWith []domain.OAuthCredentials
	calls         int
}

func (p *stubProvider) AuthCodeURL(creds domain.OAuthCredentials, state string) string {
	return "https://accounts.example.com/auth?client_id=" + creds.ClientID +
		"&redirect_uri=" + creds.RedirectURI + "&state=" + state
}

func (p *stubProvider) Exchange(_ context.Context, creds domain.OAuthCredentials, code string) (*ports.ProviderTokens, error) {
	p.calls++
	p.exchangedWith = append(p.exchangedWith, creds)
	if p.exchangeFn != nil {
		return p.exchangeFn(creds, code)
	}
	return &ports.ProviderTokens{AccessToken: "at-" + code}, nil
}

func (p *stubProvider) UserInfo(_ context.Context, _ domain.OAuthCredentials, _ *ports.ProviderTokens) (*domain.ProviderProfile, error) {
	p.calls++
	if p.profileErr != nil {
		return nil, p.profileErr
	}
	return p.profile, nil
}

type stubStateStore struct {
	states  map[string]domain.AppSource
	saveErr error
}

func newStubStateStore() *stubStateStore {
	return &stubStateStore{states: make(map[string]domain.AppSource)}
}

func (s *stubStateStore) Save(_ context.Context, state string, app domain.AppSource, _ time.Duration) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.states[state] = app
	return nil
}

func (s *stubStateStore) Consume(_ context.Context, state string) (domain.AppSource, error) {
	app, ok := s.states[state]
	if !ok {
		return "", domain.ErrInvalidState
	}
	delete(s.states, state)
	return app, nil
}

func testRegistry() *domain.CredentialRegistry {
	return domain.NewCredentialRegistry(
		domain.OAuthCredentials{ClientID: "default-id", ClientSecret: "default-secret", RedirectURI: "https://api.example.com/callback"},
		map[domain.AppSource]domain.OAuthCredentials{
			domain.AppTimetablely: {ClientID: "tt-id", ClientSecret: "tt-secret", RedirectURI: "http://localhost:5173/auth/google/callback"},
			domain.AppDocxIQ:      {ClientID: "docx-id", ClientSecret: "docx-secret", RedirectURI: "http://localhost:5174/auth/google/callback"},
			domain.AppLinkShyft:   {RedirectURI: "http://localhost:5175/auth/google/callback"},
			domain.AppNgTax:       {ClientID: "ngtax-id", ClientSecret: "ngtax-secret", RedirectURI: "http://localhost:5176/auth/google/callback"},
		},
	)
}

// ---------------------------------------------------------------------------
// Notifications
// ---------------------------------------------------------------------------

type sentReset struct {
	Email string
	Token string
	App   domain.AppSource
}

type sentOTP struct {
	Email   string
	Code    string
	Purpose domain.OTPPurpose
}

type stubNotifier struct {
	mu     sync.Mutex
	resets []sentReset
	otps   []sentOTP
	err    error
}

func (n *stubNotifier) PasswordReset(_ context.Context, email, resetToken string, app domain.AppSource) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.resets = append(n.resets, sentReset{Email: email, Token: resetToken, App: app})
	return nil
}

func (n *stubNotifier) OTP(_ context.Context, email, code string, purpose domain.OTPPurpose, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.otps = append(n.otps, sentOTP{Email: email, Code: code, Purpose: purpose})
	return nil
}

// ---------------------------------------------------------------------------
// OTP
// ---------------------------------------------------------------------------

type stubOTPRepo struct {
	tokens    []*domain.OTPToken
	createErr error
}

func (r *stubOTPRepo) Create(_ context.Context, otp *domain.OTPToken) (*domain.OTPToken, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	c := *otp
	c.ID = fmt.Sprintf("otp%d", len(r.tokens)+1)
	r.tokens = append(r.tokens, &c)
	out := c
	return &out, nil
}

func (r *stubOTPRepo) markUsed(userID string, purpose domain.OTPPurpose, now time.Time, activeOnly bool) int64 {
	var n int64
	for _, t := range r.tokens {
		if t.UserID != userID || t.Purpose != purpose || t.UsedAt != nil {
			continue
		}
		if activeOnly && !now.Before(t.ExpiresAt) {
			continue
		}
		used := now
		t.UsedAt = &used
		n++
	}
	return n
}

func (r *stubOTPRepo) InvalidateActive(_ context.Context, userID string, purpose domain.OTPPurpose, now time.Time) (int64, error) {
	return r.markUsed(userID, purpose, now, true), nil
}

func (r *stubOTPRepo) InvalidateUnused(_ context.Context, userID string, purpose domain.OTPPurpose, now time.Time) (int64, error) {
	return r.markUsed(userID, purpose, now, false), nil
}

func (r *stubOTPRepo) Consume(_ context.Context, userID string, purpose domain.OTPPurpose, codeHash string, now time.Time) (*domain.OTPToken, error) {
	for _, t := range r.tokens {
		if t.UserID == userID && t.Purpose == purpose && t.CodeHash == codeHash && t.UsedAt == nil && now.Before(t.ExpiresAt) {
			used := now
			t.UsedAt = &used
			c := *t
			return &c, nil
		}
	}
	return nil, domain.ErrOTPNotFound
}

func (r *stubOTPRepo) active(userID string, purpose domain.OTPPurpose, now time.Time) int {
	n := 0
	for _, t := range r.tokens {
		if t.UserID == userID && t.Purpose == purpose && t.UsedAt == nil && now.Before(t.ExpiresAt) {
			n++
		}
	}
	return n
}
