package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geosoft/accounts-api/internal/core/domain"
	"github.com/geosoft/accounts-api/internal/core/ports"
)

func newTestOAuthService(p *stubProvider, states *stubStateStore) *OAuthService {
	return NewOAuthService(testRegistry(), p, states, 0, zerolog.Nop())
}

func googleProfile(id, email string) *domain.ProviderProfile {
	return &domain.ProviderProfile{ID: id, Email: email, VerifiedEmail: true, GivenName: "Ada", FamilyName: "L", Picture: "https://img/a.png"}
}

func TestOAuthService_GenerateAuthURL(t *testing.T) {
	states := newStubStateStore()
	svc := newTestOAuthService(&stubProvider{}, states)

	out, err := svc.GenerateAuthURL(context.Background(), domain.AppDocxIQ)
	require.NoError(t, err)
	assert.Len(t, out.State, 64)
	assert.Equal(t, domain.AppDocxIQ, states.states[out.State])

	u, err := url.Parse(out.URL)
	require.NoError(t, err)
	assert.Equal(t, "docx-id", u.Query().Get("client_id"))
	assert.Equal(t, "http://localhost:5174/auth/google/callback", u.Query().Get("redirect_uri"))
	assert.Equal(t, out.State, u.Query().Get("state"))
}

func TestOAuthService_GenerateAuthURL_StatesAreUnique(t *testing.T) {
	svc := newTestOAuthService(&stubProvider{}, newStubStateStore())
	a, err := svc.GenerateAuthURL(context.Background(), domain.AppTimetablely)
	require.NoError(t, err)
	b, err := svc.GenerateAuthURL(context.Background(), domain.AppTimetablely)
	require.NoError(t, err)
	assert.NotEqual(t, a.State, b.State)
}

func TestOAuthService_GenerateAuthURL_StoreFailure(t *testing.T) {
	states := newStubStateStore()
	states.saveErr = errors.New("redis down")
	svc := newTestOAuthService(&stubProvider{}, states)

	_, err := svc.GenerateAuthURL(context.Background(), domain.AppTimetablely)
	assert.Error(t, err)
}

func TestOAuthService_ExchangeCode_RejectsUnknownRedirectBeforeNetwork(t *testing.T) {
	p := &stubProvider{profile: googleProfile("g1", "a@x.com")}
	svc := newTestOAuthService(p, newStubStateStore())

	for _, redirect := range []string{"", "https://evil.example.com/cb", "http://localhost:5173/auth/google/callback/"} {
		_, err := svc.ExchangeCode(context.Background(), "code", redirect, domain.AppTimetablely)
		assert.ErrorIs(t, err, domain.ErrInvalidRedirect, redirect)
	}
	assert.Zero(t, p.calls)
}

func TestOAuthService_ExchangeCode_CredentialSelection(t *testing.T) {
	cases := []struct {
		name     string
		redirect string
		app      domain.AppSource
		wantID   string
	}{
		{"explicit app wins", "http://localhost:5174/auth/google/callback", domain.AppNgTax, "ngtax-id"},
		{"inferred from redirect", "http://localhost:5174/auth/google/callback", "", "docx-id"},
		{"inferred app inherits default client", "http://localhost:5175/auth/google/callback", "", "default-id"},
		{"invalid app falls back to inference", "http://localhost:5173/auth/google/callback", "bogus", "tt-id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &stubProvider{profile: googleProfile("g1", "A@X.com")}
			svc := newTestOAuthService(p, newStubStateStore())

			id, err := svc.ExchangeCode(context.Background(), "code", tc.redirect, tc.app)
			require.NoError(t, err)
			assert.Equal(t, "a@x.com", id.Email)
			require.Len(t, p.exchangedWith, 1)
			assert.Equal(t, tc.wantID, p.exchangedWith[0].ClientID)
			assert.Equal(t, tc.redirect, p.exchangedWith[0].RedirectURI)
		})
	}
}

func TestOAuthService_ExchangeCode_InvalidGrant(t *testing.T) {
	p := &stubProvider{exchangeFn: func(domain.OAuthCredentials, string) (*ports.ProviderTokens, error) {
		return nil, domain.ErrInvalidGrant
	}}
	svc := newTestOAuthService(p, newStubStateStore())

	_, err := svc.ExchangeCode(context.Background(), "used", "http://localhost:5173/auth/google/callback", "")
	assert.ErrorIs(t, err, domain.ErrInvalidGrant)
}

func TestOAuthService_ExchangeCode_ProviderFailure(t *testing.T) {
	p := &stubProvider{profileErr: fmt.Errorf("%w: timeout", domain.ErrProviderUnavailable)}
	svc := newTestOAuthService(p, newStubStateStore())

	_, err := svc.ExchangeCode(context.Background(), "c", "http://localhost:5173/auth/google/callback", "")
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestOAuthService_ExchangeCode_MissingClaims(t *testing.T) {
	for _, profile := range []*domain.ProviderProfile{
		{ID: "g1"},
		{Email: "a@x.com"},
		{ID: "  ", Email: "a@x.com"},
	} {
		p := &stubProvider{profile: profile}
		svc := newTestOAuthService(p, newStubStateStore())
		_, err := svc.ExchangeCode(context.Background(), "c", "http://localhost:5173/auth/google/callback", "")
		assert.ErrorIs(t, err, domain.ErrMissingProviderClaims)
	}
}

func TestOAuthService_ConsumeState(t *testing.T) {
	states := newStubStateStore()
	svc := newTestOAuthService(&stubProvider{}, states)
	ctx := context.Background()

	states.states["s1"] = domain.AppDocxIQ
	app, err := svc.ConsumeState(ctx, "s1", "")
	require.NoError(t, err)
	assert.Equal(t, domain.AppDocxIQ, app)

	_, err = svc.ConsumeState(ctx, "s1", "")
	assert.ErrorIs(t, err, domain.ErrInvalidState, "state is single use")

	states.states["s2"] = domain.AppDocxIQ
	_, err = svc.ConsumeState(ctx, "s2", domain.AppTimetablely)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	states.states["s3"] = ""
	app, err = svc.ConsumeState(ctx, "s3", domain.AppTickly)
	require.NoError(t, err)
	assert.Equal(t, domain.AppTickly, app)
}
