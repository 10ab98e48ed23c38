package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// AuthProvider classifies which credentials an identity can authenticate with.
type AuthProvider string

const (
	AuthLocal  AuthProvider = "local"
	AuthGoogle AuthProvider = "google"
	AuthBoth   AuthProvider = "both"
)

// DeriveAuthProvider computes the provider classification from the two
// optional credentials. It is the only source of an AuthProvider value.
func DeriveAuthProvider(hasPassword, hasGoogle bool) AuthProvider {
	switch {
	case hasPassword && hasGoogle:
		return AuthBoth
	case hasGoogle:
		return AuthGoogle
	default:
		return AuthLocal
	}
}

// User is the identity shared by every app-source the person registered for.
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	GoogleID     string

	FirstName string
	LastName  string
	Avatar    string

	AppSource      AppSource
	RegisteredApps []AppSource

	Role            string
	Plan            string
	IsEmailVerified bool
	IsActive        bool
	LastLogin       *time.Time

	ResetPasswordToken   string
	ResetPasswordExpires *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewLocalUser builds a password-authenticated identity scoped to app.
func NewLocalUser(email, username, passwordHash string, app AppSource, now time.Time) *User {
	return &User{
		Email:          NormalizeEmail(email),
		Username:       username,
		PasswordHash:   passwordHash,
		AppSource:      app,
		RegisteredApps: []AppSource{app},
		Role:           RoleUser,
		Plan:           PlanFree,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewGoogleUser builds an identity created by a first OAuth callback.
func NewGoogleUser(id ProviderIdentity, username string, app AppSource, now time.Time) *User {
	return &User{
		Email:           id.Email,
		Username:        username,
		GoogleID:        id.ID,
		FirstName:       id.GivenName,
		LastName:        id.FamilyName,
		Avatar:          id.Picture,
		AppSource:       app,
		RegisteredApps:  []AppSource{app},
		Role:            RoleUser,
		Plan:            PlanFree,
		IsEmailVerified: id.EmailVerified,
		IsActive:        true,
		LastLogin:       &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (u *User) HasPassword() bool { return u.PasswordHash != "" }

func (u *User) HasGoogle() bool { return u.GoogleID != "" }

// AuthProvider is derived on every call; it is never stored independently.
func (u *User) AuthProvider() AuthProvider {
	return DeriveAuthProvider(u.HasPassword(), u.HasGoogle())
}

// GoogleOnly reports whether the identity has no password to authenticate
// or reset with.
func (u *User) GoogleOnly() bool {
	return u.AuthProvider() == AuthGoogle && !u.HasPassword()
}

// IsRegisteredFor reports whether app is in the identity's membership list.
func (u *User) IsRegisteredFor(app AppSource) bool {
	for _, a := range u.RegisteredApps {
		if a == app {
			return true
		}
	}
	return false
}

// RegisterApp adds app to the membership list. It returns false when the app
// was already present.
func (u *User) RegisterApp(app AppSource) bool {
	if u.IsRegisteredFor(app) {
		return false
	}
	u.RegisteredApps = append(u.RegisteredApps, app)
	return true
}

// LinkGoogle attaches a Google identity when none is linked yet. The avatar
// is only backfilled, never overwritten.
func (u *User) LinkGoogle(id ProviderIdentity) {
	if u.GoogleID == "" {
		u.GoogleID = id.ID
	}
	if u.Avatar == "" && id.Picture != "" {
		u.Avatar = id.Picture
	}
}

func (u *User) TouchLogin(now time.Time) {
	u.LastLogin = &now
}

// SetResetToken replaces any previous reset request.
func (u *User) SetResetToken(hash string, expires time.Time) {
	u.ResetPasswordToken = hash
	u.ResetPasswordExpires = &expires
}

func (u *User) ClearResetToken() {
	u.ResetPasswordToken = ""
	u.ResetPasswordExpires = nil
}

// ResetTokenActive reports whether a reset request exists and has not expired.
func (u *User) ResetTokenActive(now time.Time) bool {
	return u.ResetPasswordToken != "" && u.ResetPasswordExpires != nil && now.Before(*u.ResetPasswordExpires)
}

// Validate checks the invariants every persisted identity must satisfy.
func (u *User) Validate() error {
	if u.Email == "" || u.Username == "" {
		return fmt.Errorf("%w: email and username are required", ErrInvariant)
	}
	if !u.HasPassword() && !u.HasGoogle() {
		return fmt.Errorf("%w: no credential present", ErrInvariant)
	}
	if !u.IsRegisteredFor(u.AppSource) {
		return fmt.Errorf("%w: registered apps missing %q", ErrInvariant, u.AppSource)
	}
	seen := make(map[AppSource]struct{}, len(u.RegisteredApps))
	for _, a := range u.RegisteredApps {
		if _, dup := seen[a]; dup {
			return fmt.Errorf("%w: duplicate registered app %q", ErrInvariant, a)
		}
		seen[a] = struct{}{}
	}
	if (u.ResetPasswordToken == "") != (u.ResetPasswordExpires == nil) {
		return fmt.Errorf("%w: reset token and expiry must be set together", ErrInvariant)
	}
	return nil
}

// NormalizeEmail trims and lower-cases an address; one email is one identity
// regardless of the casing it was typed with.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail accepts addresses with exactly one '@', non-empty local and
// domain parts and no whitespace.
func ValidEmail(email string) bool {
	if strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	local, domainPart, ok := strings.Cut(email, "@")
	if !ok || local == "" || domainPart == "" {
		return false
	}
	return !strings.Contains(domainPart, "@")
}
