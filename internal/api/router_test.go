package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geosoft/accounts-api/internal/api/handler"
	"github.com/geosoft/accounts-api/internal/core/domain"
	"github.com/geosoft/accounts-api/internal/core/ports"
	"github.com/geosoft/accounts-api/internal/core/service"
)

type fakeAccounts struct {
	lastSignup ports.SignupInput
	existing   []domain.AppSource
}

func (f *fakeAccounts) Signup(_ context.Context, in ports.SignupInput) (*ports.AuthResult, error) {
	f.lastSignup = in
	if !in.AppSource.Valid() {
		return nil, domain.ErrInvalidAppSource
	}
	if len(f.existing) > 0 && in.LinkAccount == nil {
		return nil, &domain.LinkPromptError{ExistingApps: f.existing}
	}
	u := domain.NewLocalUser(in.Email, in.Username, "h", in.AppSource, time.Now())
	u.ID = "u1"
	return &ports.AuthResult{User: u, AccessToken: "tok", Created: true}, nil
}

func (f *fakeAccounts) Signin(context.Context, ports.SigninInput) (*ports.AuthResult, error) {
	return nil, domain.ErrInvalidCredentials
}

func (f *fakeAccounts) GoogleAuthURL(context.Context, domain.AppSource) (*ports.AuthURL, error) {
	return &ports.AuthURL{URL: "https://accounts.google.com/o/oauth2/auth", State: "s"}, nil
}

func (f *fakeAccounts) CompleteGoogleSignIn(context.Context, ports.GoogleCallbackInput) (*ports.AuthResult, error) {
	return nil, domain.ErrProviderUnavailable
}

func (f *fakeAccounts) Me(_ context.Context, id string) (*domain.User, error) {
	u := domain.NewLocalUser("a@x.com", "alice", "h", domain.AppDocxIQ, time.Now())
	u.ID = id
	return u, nil
}

func (f *fakeAccounts) VerifyEmail(context.Context, string) (bool, error) { return false, nil }

func (f *fakeAccounts) VerifyAccount(ctx context.Context, id string) (*domain.User, error) {
	return f.Me(ctx, id)
}

type fakeResets struct{}

func (fakeResets) RequestReset(context.Context, string, domain.AppSource) error { return nil }
func (fakeResets) ResetPassword(context.Context, string, string) error { return nil }

type fakeOTP struct{}

func (fakeOTP) Generate(context.Context, domain.SessionClaims, domain.OTPPurpose) (*ports.IssuedOTP, error) {
	return &ports.IssuedOTP{Token: &domain.OTPToken{ID: "t1"}}, nil
}

func (fakeOTP) Verify(context.Context, string, string, domain.OTPPurpose) (*domain.OTPToken, error) {
	return nil, domain.ErrInvalidOTP
}

func (fakeOTP) Invalidate(context.Context, string, domain.OTPPurpose) (int64, error) { return 0, nil }

// TestRouter shares one router because the prometheus middleware registers
// its collectors globally.
func TestRouter(t *testing.T) {
	accounts := &fakeAccounts{}
	sessions := service.NewSessionService("secret", "accounts-api", time.Hour)
	e := NewRouter(Deps{
		Accounts: accounts,
		Resets:   fakeResets{},
		OTP:      fakeOTP{},
		Sessions: sessions,
		Health: map[string]handler.Pinger{
			"mongodb": handler.PingFunc(func(context.Context) error { return nil }),
		},
		AllowedOrigins: []string{"http://localhost:5173"},
		Log:            zerolog.Nop(),
	})

	token := func(role string) string {
		u := domain.NewLocalUser("a@x.com", "alice", "h", domain.AppDocxIQ, time.Now())
		u.ID = "u1"
		u.Role = role
		tok, err := sessions.Issue(u)
		require.NoError(t, err)
		return tok
	}

	do := func(method, path, body, bearer string) (*httptest.ResponseRecorder, map[string]any) {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		var out map[string]any
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
		return rec, out
	}

	signup := `{"email":"a@x.com","password":"secret123","username":"alice","appSource":"docxiq"}`

	t.Run("shared signup", func(t *testing.T) {
		rec, body := do(http.MethodPost, "/api/v1/auth/signup", signup, "")
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, domain.AppDocxIQ, accounts.lastSignup.AppSource)
	})

	t.Run("per-app prefix fixes the app", func(t *testing.T) {
		rec, _ := do(http.MethodPost, "/api/v1/ng-tax/auth/signup", signup, "")
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, domain.AppNgTax, accounts.lastSignup.AppSource)
	})

	t.Run("link prompt envelope", func(t *testing.T) {
		accounts.existing = []domain.AppSource{domain.AppTimetablely}
		defer func() { accounts.existing = nil }()

		rec, body := do(http.MethodPost, "/api/v1/auth/signup", signup, "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "ACCOUNT_EXISTS_LINK_PROMPT", body["code"])
	})

	t.Run("signin failure", func(t *testing.T) {
		rec, body := do(http.MethodPost, "/api/v1/auth/signin", `{"email":"a@x.com","password":"nope"}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid email or password", body["message"])
	})

	t.Run("provider outage is a bad gateway", func(t *testing.T) {
		rec, _ := do(http.MethodGet, "/api/v1/auth/google/callback?code=c&appSource=tickly", "", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("me requires a token", func(t *testing.T) {
		rec, _ := do(http.MethodGet, "/api/v1/auth/me", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec, body := do(http.MethodGet, "/api/v1/auth/me", "", token(domain.RoleUser))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", body["data"].(map[string]any)["id"])
	})

	t.Run("verify-account is admin only", func(t *testing.T) {
		payload := `{"userId":"u2"}`
		rec, _ := do(http.MethodPost, "/api/v1/auth/verify-account", payload, token(domain.RoleUser))
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec, _ = do(http.MethodPost, "/api/v1/auth/verify-account", payload, token(domain.RoleAdmin))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("otp routes are authenticated", func(t *testing.T) {
		rec, _ := do(http.MethodPost, "/api/v1/tickly/otp/generate", `{"type":"password_reset"}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec, _ = do(http.MethodPost, "/api/v1/tickly/otp/generate", `{"type":"password_reset"}`, token(domain.RoleUser))
		assert.Equal(t, http.StatusCreated, rec.Code)

		rec, _ = do(http.MethodPost, "/api/v1/otp/verify", `{"code":"1","type":"password_reset"}`, token(domain.RoleUser))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("health", func(t *testing.T) {
		rec, _ := do(http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		rec, _ = do(http.MethodGet, "/health/ready", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown route", func(t *testing.T) {
		rec, body := do(http.MethodGet, "/api/v1/nope", "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, false, body["success"])
	})
}
