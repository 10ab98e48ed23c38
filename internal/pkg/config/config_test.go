package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geosoft/accounts-api/internal/core/domain"
)

func load(t *testing.T, env map[string]string) *Config {
	t.Helper()
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(env))
	require.NoError(t, err)
	return cfg
}

func TestLoadWith_Defaults(t *testing.T) {
	cfg := load(t, map[string]string{"JWT_SECRET": "s"})

	assert.Equal(t, "4000", cfg.Port)
	assert.Equal(t, 168*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, "smtp.gmail.com", cfg.Email.Host)
	assert.Equal(t, 587, cfg.Email.Port)
	assert.Equal(t, time.Hour, cfg.Auth.ResetTokenTTL)
	assert.Equal(t, 10*time.Minute, cfg.Auth.OTPTTL)
	assert.Equal(t, 10*time.Second, cfg.Google.HTTPTimeout)
	assert.False(t, cfg.Google.RequireState)
	assert.False(t, cfg.IsProduction())
}

func TestLoadWith_RequireState(t *testing.T) {
	cfg := load(t, map[string]string{"JWT_SECRET": "s", "OAUTH_REQUIRE_STATE": "true"})
	assert.True(t, cfg.Google.RequireState)
}

func TestLoadWith_RequiresJWTSecret(t *testing.T) {
	_, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{}))
	assert.Error(t, err)
}

func TestCredentialRegistry_PerAppOverridesAndFallback(t *testing.T) {
	cfg := load(t, map[string]string{
		"JWT_SECRET":                   "s",
		"GOOGLE_CLIENT_ID":             "default-id",
		"GOOGLE_CLIENT_SECRET":         "default-secret",
		"REDIRECT_URI":                 "https://api.example.com/callback",
		"DOCXIQ_GOOGLE_CLIENT_ID":      "docx-id",
		"DOCXIQ_GOOGLE_CLIENT_SECRET":  "docx-secret",
		"NGTAX_REDIRECT_URI":           "https://ngtax.example.com/cb",
		"TIMETABLELY_GOOGLE_CLIENT_ID": "tt-id",
	})
	reg := cfg.CredentialRegistry()

	docx := reg.Lookup(domain.AppDocxIQ)
	assert.Equal(t, "docx-id", docx.ClientID)
	assert.Equal(t, "docx-secret", docx.ClientSecret)
	assert.Equal(t, "http://localhost:5174/auth/google/callback", docx.RedirectURI)

	tt := reg.Lookup(domain.AppTimetablely)
	assert.Equal(t, "tt-id", tt.ClientID)
	assert.Equal(t, "default-secret", tt.ClientSecret)

	assert.Equal(t, "https://ngtax.example.com/cb", reg.Lookup(domain.AppNgTax).RedirectURI)
	assert.Equal(t, "https://api.example.com/callback", reg.Lookup(domain.AppTickly).RedirectURI)
	assert.Equal(t, "default-id", reg.Lookup("unknown").ClientID)

	app, ok := reg.AppForRedirectURI("http://localhost:5175/auth/google/callback")
	assert.True(t, ok)
	assert.Equal(t, domain.AppLinkShyft, app)
}

func TestFrontendURLs(t *testing.T) {
	cfg := load(t, map[string]string{"JWT_SECRET": "s", "ENV": "production"})
	urls := cfg.FrontendURLs()

	assert.Equal(t, "https://www.timetablely.com", urls[domain.AppTimetablely])
	_, ok := urls[domain.AppNgTax]
	assert.False(t, ok)
	assert.True(t, cfg.IsProduction())
}
