package domain

// OAuthCredentials is the client triple used against the OAuth provider for
// one product.
type OAuthCredentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// CredentialRegistry maps each app-source to its OAuth client. It is built
// once at startup and only read afterwards.
type CredentialRegistry struct {
	byApp    map[AppSource]OAuthCredentials
	fallback OAuthCredentials
}

// NewCredentialRegistry builds the lookup table. Every AppSource gets an
// entry: a missing client id/secret inherits the fallback pair, a missing
// redirect URI inherits the fallback redirect.
func NewCredentialRegistry(fallback OAuthCredentials, perApp map[AppSource]OAuthCredentials) *CredentialRegistry {
	byApp := make(map[AppSource]OAuthCredentials, len(AppSources))
	for _, app := range AppSources {
		c := perApp[app]
		if c.ClientID == "" {
			c.ClientID = fallback.ClientID
		}
		if c.ClientSecret == "" {
			c.ClientSecret = fallback.ClientSecret
		}
		if c.RedirectURI == "" {
			c.RedirectURI = fallback.RedirectURI
		}
		byApp[app] = c
	}
	return &CredentialRegistry{byApp: byApp, fallback: fallback}
}

// Lookup returns the credentials for app, or the default triple when app is
// empty or unknown.
func (r *CredentialRegistry) Lookup(app AppSource) OAuthCredentials {
	if c, ok := r.byApp[app]; ok {
		return c
	}
	return r.fallback
}

func (r *CredentialRegistry) Default() OAuthCredentials {
	return r.fallback
}

// AppForRedirectURI reverse-matches uri against the registered redirect
// URIs, in AppSources order.
func (r *CredentialRegistry) AppForRedirectURI(uri string) (AppSource, bool) {
	if uri == "" {
		return "", false
	}
	for _, app := range AppSources {
		if r.byApp[app].RedirectURI == uri {
			return app, true
		}
	}
	return "", false
}

// AllowsRedirect reports whether uri is the redirect URI of some supported
// app-source.
func (r *CredentialRegistry) AllowsRedirect(uri string) bool {
	_, ok := r.AppForRedirectURI(uri)
	return ok
}
