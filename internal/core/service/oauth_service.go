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

const defaultStateTTL = 10 * time.Minute

// OAuthService drives the authorization-code flow against the provider,
// selecting per-app client credentials from the registry.
type OAuthService struct {
	registry     *domain.CredentialRegistry
	provider     ports.OAuthProvider
	states       ports.StateStore
	stateTTL     time.Duration
	requireState bool
	log          zerolog.Logger
}

type OAuthOption func(*OAuthService)

// WithRequiredState rejects callbacks that carry no state parameter.
func WithRequiredState() OAuthOption {
	return func(s *OAuthService) { s.requireState = true }
}

func NewOAuthService(registry *domain.CredentialRegistry, provider ports.OAuthProvider, states ports.StateStore, stateTTL time.Duration, log zerolog.Logger, opts ...OAuthOption) *OAuthService {
	if stateTTL <= 0 {
		stateTTL = defaultStateTTL
	}
	s := &OAuthService{registry: registry, provider: provider, states: states, stateTTL: stateTTL, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *OAuthService) RequiresState() bool { return s.requireState }

// GenerateAuthURL builds the consent URL for app. An empty app uses the
// default client.
func (s *OAuthService) GenerateAuthURL(ctx context.Context, app domain.AppSource) (*ports.AuthURL, error) {
	state, err := token.Generate()
	if err != nil {
		return nil, err
	}
	if err := s.states.Save(ctx, state, app, s.stateTTL); err != nil {
		return nil, fmt.Errorf("save oauth state: %w", err)
	}

	creds := s.registry.Lookup(app)
	return &ports.AuthURL{URL: s.provider.AuthCodeURL(creds, state), State: state}, nil
}

// ConsumeState redeems a state issued by GenerateAuthURL and returns the app
// it was issued for. A state issued for one app cannot complete another.
func (s *OAuthService) ConsumeState(ctx context.Context, state string, app domain.AppSource) (domain.AppSource, error) {
	issuedFor, err := s.states.Consume(ctx, state)
	if err != nil {
		return "", err
	}
	if app != "" && issuedFor != "" && issuedFor != app {
		return "", domain.ErrInvalidState
	}
	if app == "" {
		return issuedFor, nil
	}
	return app, nil
}

// RedirectURIFor returns the callback URI registered for app.
func (s *OAuthService) RedirectURIFor(app domain.AppSource) string {
	return s.registry.Lookup(app).RedirectURI
}

// ExchangeCode trades an authorization code for a validated provider
// identity. redirectURI must belong to some supported app; this is checked
// before any network call.
func (s *OAuthService) ExchangeCode(ctx context.Context, code, redirectURI string, app domain.AppSource) (domain.ProviderIdentity, error) {
	if !s.registry.AllowsRedirect(redirectURI) {
		return domain.ProviderIdentity{}, domain.ErrInvalidRedirect
	}

	creds := s.credentialsFor(redirectURI, app)
	creds.RedirectURI = redirectURI

	tokens, err := s.provider.Exchange(ctx, creds, code)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidGrant) {
			s.log.Error().Err(err).Msg("oauth code exchange failed")
		}
		return domain.ProviderIdentity{}, err
	}

	profile, err := s.provider.UserInfo(ctx, creds, tokens)
	if err != nil {
		s.log.Error().Err(err).Msg("oauth userinfo fetch failed")
		return domain.ProviderIdentity{}, err
	}

	return domain.NewProviderIdentity(*profile)
}

// credentialsFor picks the explicit app, else the app whose redirect URI
// matches, else the default client.
func (s *OAuthService) credentialsFor(redirectURI string, app domain.AppSource) domain.OAuthCredentials {
	if app.Valid() {
		return s.registry.Lookup(app)
	}
	if inferred, ok := s.registry.AppForRedirectURI(redirectURI); ok {
		return s.registry.Lookup(inferred)
	}
	return s.registry.Default()
}
