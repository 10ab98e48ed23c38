package api

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/geosoft/accounts-api/docs"
	"github.com/geosoft/accounts-api/internal/api/handler"
	"github.com/geosoft/accounts-api/internal/api/middleware"
	"github.com/geosoft/accounts-api/internal/core/domain"
	"github.com/geosoft/accounts-api/internal/core/ports"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Accounts ports.AccountService
	Resets   ports.PasswordResetService
	OTP      ports.OTPService
	Sessions middleware.TokenParser

	// Health dependencies checked by /health/ready, keyed by name.
	Health         map[string]handler.Pinger
	AllowedOrigins []string
	Log            zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddleware("accounts"))
	e.Use(echomiddleware.BodyLimit("1M"))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     d.AllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	authHandler := handler.NewAuthHandler(d.Accounts, d.Resets)
	otpHandler := handler.NewOTPHandler(d.OTP)
	authMiddleware := middleware.Auth(d.Sessions)

	// --- Shared routes: the app-source comes from the request ---
	v1 := e.Group("/api/v1")
	auth := v1.Group("/auth")
	registerAuthRoutes(auth, authHandler, authMiddleware)
	auth.POST("/verify-account", authHandler.VerifyAccount, authMiddleware, middleware.RBAC(domain.RoleAdmin))
	registerOTPRoutes(v1.Group("/otp", authMiddleware), otpHandler)

	// --- Per-product routes: the app-source is fixed by the prefix ---
	for _, app := range domain.AppSources {
		g := v1.Group("/" + app.PathSegment())
		registerAuthRoutes(g.Group("/auth"), authHandler.ForApp(app), authMiddleware)
		registerOTPRoutes(g.Group("/otp", authMiddleware), otpHandler)
	}

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler(d.Health)
	e.GET("/health", healthHandler.Liveness)        // liveness  – is the process alive?
	e.GET("/health/ready", healthHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func registerAuthRoutes(g *echo.Group, h *handler.AuthHandler, authMiddleware echo.MiddlewareFunc) {
	g.POST("/signup", h.Signup)
	g.POST("/signin", h.Signin)
	g.GET("/google", h.GoogleAuthURL)
	g.GET("/google/callback", h.GoogleCallback)
	g.POST("/forgot-password", h.ForgotPassword)
	g.POST("/reset-password", h.ResetPassword)
	g.GET("/me", h.Me, authMiddleware)
	g.POST("/verify-email", h.VerifyEmail, authMiddleware)
}

func registerOTPRoutes(g *echo.Group, h *handler.OTPHandler) {
	g.POST("/generate", h.Generate)
	g.POST("/verify", h.Verify)
	g.DELETE("/invalidate", h.Invalidate)
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Status >= http.StatusInternalServerError {
				evt = log.Error().Err(v.Error)
			}
			evt.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
