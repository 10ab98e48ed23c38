// Package google adapts Google's OAuth 2.0 authorization-code flow and
// userinfo API to ports.OAuthProvider.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	googleendpoint "golang.org/x/oauth2/google"
	oauth2v2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/geosoft/accounts-api/internal/core/domain"
	"github.com/geosoft/accounts-api/internal/core/ports"
)

const defaultHTTPTimeout = 10 * time.Second

var scopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// Provider talks to Google with the credentials of whichever app-source the
// caller resolved.
type Provider struct {
	httpClient *http.Client
	endpoint   oauth2.Endpoint
	// apiEndpoint overrides the userinfo API base URL when set.
	apiEndpoint string
}

// Option customises a Provider.
type Option func(*Provider)

// WithEndpoints points the provider at alternative token and userinfo
// servers.
func WithEndpoints(endpoint oauth2.Endpoint, apiEndpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
		p.apiEndpoint = apiEndpoint
	}
}

func NewProvider(timeout time.Duration, opts ...Option) *Provider {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	p := &Provider{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   googleendpoint.Endpoint,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) config(creds domain.OAuthCredentials) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURI,
		Endpoint:     p.endpoint,
		Scopes:       scopes,
	}
}

// AuthCodeURL asks for offline access and forces the consent screen so a
// refresh token is returned on every grant.
func (p *Provider) AuthCodeURL(creds domain.OAuthCredentials, state string) string {
	return p.config(creds).AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (p *Provider) Exchange(ctx context.Context, creds domain.OAuthCredentials, code string) (*ports.ProviderTokens, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	tok, err := p.config(creds).Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			return nil, domain.ErrInvalidGrant
		}
		return nil, fmt.Errorf("%w: token exchange: %v", domain.ErrProviderUnavailable, err)
	}

	return &ports.ProviderTokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}, nil
}

func (p *Provider) UserInfo(ctx context.Context, creds domain.OAuthCredentials, tokens *ports.ProviderTokens) (*domain.ProviderProfile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	ts := p.config(creds).TokenSource(ctx, &oauth2.Token{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    tokens.TokenType,
		Expiry:       tokens.Expiry,
	})

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if p.apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(p.apiEndpoint))
	}
	svc, err := oauth2v2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo client: %v", domain.ErrProviderUnavailable, err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo: %v", domain.ErrProviderUnavailable, err)
	}

	profile := &domain.ProviderProfile{
		ID:         info.Id,
		Email:      info.Email,
		GivenName:  info.GivenName,
		FamilyName: info.FamilyName,
		Picture:    info.Picture,
	}
	if info.VerifiedEmail != nil {
		profile.VerifiedEmail = *info.VerifiedEmail
	}
	return profile, nil
}
