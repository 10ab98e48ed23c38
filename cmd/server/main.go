// Command server runs the accounts API.
//
// @title                       Accounts API
// @version                     1.0
// @description                 Shared sign-up, sign-in, Google OAuth and account linking for every product.
// @BasePath                    /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geosoft/accounts-api/internal/api"
	"github.com/geosoft/accounts-api/internal/api/handler"
	"github.com/geosoft/accounts-api/internal/core/service"
	mongostore "github.com/geosoft/accounts-api/internal/infrastructure/db/mongo"
	redisstore "github.com/geosoft/accounts-api/internal/infrastructure/db/redis"
	"github.com/geosoft/accounts-api/internal/infrastructure/google"
	"github.com/geosoft/accounts-api/internal/infrastructure/mail"
	"github.com/geosoft/accounts-api/internal/infrastructure/queue"
	"github.com/geosoft/accounts-api/internal/pkg/config"
	"github.com/geosoft/accounts-api/internal/pkg/password"
	"github.com/geosoft/accounts-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "accounts-api",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	mongoClient, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		log.Fatal().Err(err).Msg("connect mongo")
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	if err := mongostore.EnsureIndexes(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("ensure indexes")
	}

	rdb, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		log.Fatal().Err(err).Msg("connect redis")
	}
	defer func() { _ = rdb.Close() }()

	// --- Mail ---
	mailer := mail.NewSMTPMailer(mail.Config{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		User:     cfg.Email.User,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	})
	dispatcher := queue.NewDispatcher(cfg.Email.Workers, mailer, cfg.Email.Timeout, logger.Component("mail"))
	// Workers outlive ctx so queued mail is flushed during shutdown.
	dispatcher.Start(context.Background())
	notifier := mail.NewNotifier(dispatcher, cfg.Email.FrontendURL, cfg.FrontendURLs(), cfg.Auth.ResetTokenTTL)

	// --- Services ---
	users := mongostore.NewUserRepository(db)
	otps := mongostore.NewOTPRepository(db)
	hasher := password.NewHasher(password.DefaultParams)
	sessions := service.NewSessionService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)
	var oauthOpts []service.OAuthOption
	if cfg.Google.RequireState {
		oauthOpts = append(oauthOpts, service.WithRequiredState())
	}
	oauth := service.NewOAuthService(
		cfg.CredentialRegistry(),
		google.NewProvider(cfg.Google.HTTPTimeout),
		redisstore.NewStateStore(rdb),
		cfg.Google.StateTTL,
		logger.Component("oauth"),
		oauthOpts...,
	)
	accounts := service.NewAccountService(users, hasher, sessions, oauth, logger.Component("accounts"))
	resets := service.NewPasswordResetService(users, hasher, notifier, cfg.Auth.ResetTokenTTL, logger.Component("password_reset"))
	otpService := service.NewOTPService(otps, users, notifier, cfg.Auth.OTPTTL, !cfg.IsProduction(), logger.Component("otp"))

	// --- HTTP ---
	e := api.NewRouter(api.Deps{
		Accounts: accounts,
		Resets:   resets,
		OTP:      otpService,
		Sessions: sessions,
		Health: map[string]handler.Pinger{
			"mongodb": handler.PingFunc(func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) }),
			"redis":   handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		},
		AllowedOrigins: cfg.AllowedOrigins,
		Log:            logger.Component("http"),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("mail queue not drained")
	}
}
