package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/geosoft/accounts-api/internal/core/domain"
)

type Config struct {
	Port     string `env:"PORT,      default=4000"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=http://localhost:5173"`

	Mongo  MongoConfig
	Redis  RedisConfig
	JWT    JWTConfig
	Google GoogleConfig
	Email  EmailConfig
	Auth   AuthConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=accounts"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

type JWTConfig struct {
	Secret string        `env:"JWT_SECRET, required"`
	Expiry time.Duration `env:"JWT_ACCESS_EXPIRY, default=168h"`
	Issuer string        `env:"JWT_ISSUER, default=accounts-api"`
}

// GoogleConfig holds the default OAuth client plus one optional override per
// app-source, read from <APP>_GOOGLE_CLIENT_ID style variables.
type GoogleConfig struct {
	ClientID     string        `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURI  string        `env:"REDIRECT_URI"`
	HTTPTimeout  time.Duration `env:"GOOGLE_HTTP_TIMEOUT, default=10s"`
	StateTTL     time.Duration `env:"OAUTH_STATE_TTL, default=10m"`
	RequireState bool          `env:"OAUTH_REQUIRE_STATE, default=false"`

	Timetablely GoogleApp `env:", prefix=TIMETABLELY_"`
	DocxIQ      GoogleApp `env:", prefix=DOCXIQ_"`
	LinkShyft   GoogleApp `env:", prefix=LINKSHYFT_"`
	Tickly      GoogleApp `env:", prefix=TICKLY_"`
	NgTax       GoogleApp `env:", prefix=NGTAX_"`
}

type GoogleApp struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURI  string `env:"REDIRECT_URI"`
}

type EmailConfig struct {
	Host     string        `env:"EMAIL_HOST, default=smtp.gmail.com"`
	Port     int           `env:"EMAIL_PORT, default=587"`
	User     string        `env:"EMAIL_USER"`
	Password string        `env:"EMAIL_PASS"`
	From     string        `env:"EMAIL_FROM"`
	Timeout  time.Duration `env:"EMAIL_TIMEOUT, default=15s"`
	Workers  int           `env:"EMAIL_WORKERS, default=4"`

	FrontendURL string `env:"FRONTEND_URL, default=http://localhost:5173"`

	TimetablelyURL string `env:"TIMETABLELY_FRONTEND_URL, default=https://www.timetablely.com"`
	DocxIQURL      string `env:"DOCXIQ_FRONTEND_URL, default=https://www.docxiq.com"`
	LinkShyftURL   string `env:"LINKSHYFT_FRONTEND_URL, default=https://www.linkshyft.com"`
	TicklyURL      string `env:"TICKLY_FRONTEND_URL, default=https://www.tickly.com"`
	NgTaxURL       string `env:"NGTAX_FRONTEND_URL"`
}

type AuthConfig struct {
	ResetTokenTTL time.Duration `env:"RESET_TOKEN_TTL, default=1h"`
	OTPTTL        time.Duration `env:"OTP_TTL, default=10m"`
}

// defaultRedirects are the local callback URIs each product's dev server
// listens on when no per-app REDIRECT_URI is configured.
var defaultRedirects = map[domain.AppSource]string{
	domain.AppTimetablely: "http://localhost:5173/auth/google/callback",
	domain.AppDocxIQ:      "http://localhost:5174/auth/google/callback",
	domain.AppLinkShyft:   "http://localhost:5175/auth/google/callback",
	domain.AppNgTax:       "http://localhost:5176/auth/google/callback",
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadWith(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadWith resolves configuration from an arbitrary lookuper.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// CredentialRegistry builds the per-app OAuth client table.
func (c *Config) CredentialRegistry() *domain.CredentialRegistry {
	g := c.Google
	perApp := map[domain.AppSource]GoogleApp{
		domain.AppTimetablely: g.Timetablely,
		domain.AppDocxIQ:      g.DocxIQ,
		domain.AppLinkShyft:   g.LinkShyft,
		domain.AppTickly:      g.Tickly,
		domain.AppNgTax:       g.NgTax,
	}

	creds := make(map[domain.AppSource]domain.OAuthCredentials, len(perApp))
	for app, a := range perApp {
		redirect := a.RedirectURI
		if redirect == "" {
			redirect = defaultRedirects[app]
		}
		creds[app] = domain.OAuthCredentials{
			ClientID:     a.ClientID,
			ClientSecret: a.ClientSecret,
			RedirectURI:  redirect,
		}
	}

	return domain.NewCredentialRegistry(domain.OAuthCredentials{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		RedirectURI:  g.RedirectURI,
	}, creds)
}

// FrontendURLs maps each app-source to the base URL used in email links.
// Apps without a URL are absent and resolve to FrontendURL.
func (c *Config) FrontendURLs() map[domain.AppSource]string {
	e := c.Email
	all := map[domain.AppSource]string{
		domain.AppTimetablely: e.TimetablelyURL,
		domain.AppDocxIQ:      e.DocxIQURL,
		domain.AppLinkShyft:   e.LinkShyftURL,
		domain.AppTickly:      e.TicklyURL,
		domain.AppNgTax:       e.NgTaxURL,
	}
	urls := make(map[domain.AppSource]string, len(all))
	for app, u := range all {
		if u != "" {
			urls[app] = u
		}
	}
	return urls
}
