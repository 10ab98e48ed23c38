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

const (
	otpDigits     = 6
	defaultOTPTTL = 10 * time.Minute
)

// OTPService issues six digit codes bound to a user and purpose. Codes are
// stored hashed; at most the newest code of a purpose is active.
type OTPService struct {
	otps     ports.OTPRepository
	users    ports.UserRepository
	notifier ports.Notifier
	ttl      time.Duration
	// exposeCode returns the plaintext code to the caller, for non-production
	// environments without a mail server.
	exposeCode bool
	log        zerolog.Logger
	now        func() time.Time
}

func NewOTPService(otps ports.OTPRepository, users ports.UserRepository, notifier ports.Notifier, ttl time.Duration, exposeCode bool, log zerolog.Logger) *OTPService {
	if ttl <= 0 {
		ttl = defaultOTPTTL
	}
	return &OTPService{
		otps:       otps,
		users:      users,
		notifier:   notifier,
		ttl:        ttl,
		exposeCode: exposeCode,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Generate invalidates the user's active codes of purpose, stores a new one
// and emails it. A delivery failure is logged only.
func (s *OTPService) Generate(ctx context.Context, claims domain.SessionClaims, purpose domain.OTPPurpose) (*ports.IssuedOTP, error) {
	if !purpose.Valid() {
		return nil, domain.ErrInvalidOTPPurpose
	}

	now := s.now()
	if _, err := s.otps.InvalidateActive(ctx, claims.UserID, purpose, now); err != nil {
		return nil, fmt.Errorf("invalidate active otps: %w", err)
	}

	code, err := token.NumericCode(otpDigits)
	if err != nil {
		return nil, err
	}
	created, err := s.otps.Create(ctx, &domain.OTPToken{
		UserID:    claims.UserID,
		Purpose:   purpose,
		CodeHash:  token.Hash(code),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("store otp: %w", err)
	}

	if err := s.notifier.OTP(ctx, claims.Email, code, purpose, s.ttl); err != nil {
		s.log.Error().Err(err).Str("user_id", claims.UserID).Msg("queue otp email")
	}

	issued := &ports.IssuedOTP{Token: created}
	if s.exposeCode {
		issued.Code = code
	}
	return issued, nil
}

// Verify consumes the matching active code. Verifying an
// email_verification code also marks the user's email as verified.
func (s *OTPService) Verify(ctx context.Context, userID, code string, purpose domain.OTPPurpose) (*domain.OTPToken, error) {
	if !purpose.Valid() {
		return nil, domain.ErrInvalidOTPPurpose
	}
	if code == "" {
		return nil, domain.ErrInvalidOTP
	}

	now := s.now()
	used, err := s.otps.Consume(ctx, userID, purpose, token.Hash(code), now)
	if errors.Is(err, domain.ErrOTPNotFound) {
		return nil, domain.ErrInvalidOTP
	}
	if err != nil {
		return nil, fmt.Errorf("consume otp: %w", err)
	}

	if purpose == domain.OTPEmailVerification {
		if err := s.markEmailVerified(ctx, userID, now); err != nil {
			return nil, err
		}
	}
	return used, nil
}

// Invalidate retires every unused code of purpose and returns how many were
// affected.
func (s *OTPService) Invalidate(ctx context.Context, userID string, purpose domain.OTPPurpose) (int64, error) {
	if !purpose.Valid() {
		return 0, domain.ErrInvalidOTPPurpose
	}
	n, err := s.otps.InvalidateUnused(ctx, userID, purpose, s.now())
	if err != nil {
		return 0, fmt.Errorf("invalidate otps: %w", err)
	}
	return n, nil
}

func (s *OTPService) markEmailVerified(ctx context.Context, userID string, now time.Time) error {
	if _, err := s.users.MarkEmailVerified(ctx, userID, now); err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	return nil
}
