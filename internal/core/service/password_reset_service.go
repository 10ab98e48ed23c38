package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/geosoft/accounts-api/internal/core/domain"
	"github.com/geosoft/accounts-api/internal/core/ports"
	"github.com/geosoft/accounts-api/internal/pkg/token"
)

const defaultResetTTL = time.Hour

// PasswordResetService issues single-use reset tokens and redeems them.
// Only the SHA-256 digest of a token is ever persisted.
type PasswordResetService struct {
	users    ports.UserRepository
	hasher   ports.PasswordHasher
	notifier ports.Notifier
	ttl      time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func NewPasswordResetService(users ports.UserRepository, hasher ports.PasswordHasher, notifier ports.Notifier, ttl time.Duration, log zerolog.Logger) *PasswordResetService {
	if ttl <= 0 {
		ttl = defaultResetTTL
	}
	return &PasswordResetService{
		users:    users,
		hasher:   hasher,
		notifier: notifier,
		ttl:      ttl,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RequestReset emails a reset link when email belongs to an account with a
// password. It fails only on a malformed address: unknown accounts,
// Google-only accounts, storage and delivery failures all look like success.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string, app domain.AppSource) error {
	email = domain.NormalizeEmail(email)
	if !domain.ValidEmail(email) {
		return domain.ErrInvalidEmailFormat
	}

	// Token work happens on every branch so timing does not reveal which
	// one was taken.
	plain, err := token.Generate()
	if err != nil {
		s.log.Error().Err(err).Msg("generate reset token")
		return nil
	}
	digest := token.Hash(plain)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.log.Error().Err(err).Msg("reset lookup failed")
		}
		return nil
	}
	if user.GoogleOnly() {
		return nil
	}

	now := s.now()
	if err := s.users.SetResetToken(ctx, user.ID, digest, now.Add(s.ttl), now); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("store reset token")
		return nil
	}

	if !app.Valid() {
		app = user.AppSource
	}
	if err := s.notifier.PasswordReset(ctx, user.Email, plain, app); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("queue reset email")
	}
	return nil
}

// ResetPassword replaces the password of the user holding an unexpired token
// and clears the token.
func (s *PasswordResetService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return domain.ErrWeakPassword
	}
	if resetToken == "" {
		return domain.ErrInvalidOrExpiredToken
	}

	now := s.now()
	user, err := s.users.FindByResetTokenHash(ctx, token.Hash(resetToken), now)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.ErrInvalidOrExpiredToken
	}
	if err != nil {
		return fmt.Errorf("find reset token: %w", err)
	}
	if !user.ResetTokenActive(now) || !token.Verify(resetToken, user.ResetPasswordToken) {
		return domain.ErrInvalidOrExpiredToken
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	// The token is redeemed atomically; a second redemption or a newer
	// reset request in between makes this one fail.
	user, err = s.users.RedeemResetToken(ctx, user.ResetPasswordToken, hash, now)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.ErrInvalidOrExpiredToken
	}
	if err != nil {
		return fmt.Errorf("store new password: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("password reset")
	return nil
}
