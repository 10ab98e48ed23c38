package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/geosoft/accounts-api/internal/api/metrics"
	"github.com/geosoft/accounts-api/internal/core/domain"
	"github.com/geosoft/accounts-api/internal/core/ports"
)

const resetRequestedMessage = "If an account exists with this email, you will receive a password reset link"

// AuthHandler serves the account endpoints. When app is set the handler is
// mounted under a product prefix and every request is scoped to that app.
type AuthHandler struct {
	accounts ports.AccountService
	resets   ports.PasswordResetService
	app      domain.AppSource
}

func NewAuthHandler(accounts ports.AccountService, resets ports.PasswordResetService) *AuthHandler {
	return &AuthHandler{accounts: accounts, resets: resets}
}

// ForApp returns a copy of h bound to app.
func (h *AuthHandler) ForApp(app domain.AppSource) *AuthHandler {
	scoped := *h
	scoped.app = app
	return &scoped
}

func (h *AuthHandler) appFor(requested string) domain.AppSource {
	if h.app != "" {
		return h.app
	}
	return domain.AppSource(requested)
}

// --- Request / Response types ---

type signupRequest struct {
	Email       string `json:"email" validate:"required"`
	Password    string `json:"password" validate:"required"`
	Username    string `json:"username" validate:"required"`
	FirstName   string `json:"firstname"`
	LastName    string `json:"lastname"`
	AppSource   string `json:"appSource"`
	LinkAccount *bool  `json:"linkAccount"`
}

type signinRequest struct {
	Email     string `json:"email" validate:"required"`
	Password  string `json:"password" validate:"required"`
	AppSource string `json:"appSource"`
}

type forgotPasswordRequest struct {
	Email     string `json:"email" validate:"required"`
	AppSource string `json:"appSource"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type googleCallbackQuery struct {
	Code        string `query:"code"`
	AppSource   string `query:"appSource"`
	RedirectURI string `query:"redirectUri"`
	State       string `query:"state"`
}

type userResponse struct {
	ID              string             `json:"id"`
	Email           string             `json:"email"`
	Username        string             `json:"username"`
	FirstName       string             `json:"firstname,omitempty"`
	LastName        string             `json:"lastname,omitempty"`
	Avatar          string             `json:"avatar,omitempty"`
	Role            string             `json:"role"`
	Plan            string             `json:"plan"`
	AuthProvider    string             `json:"authProvider"`
	AppSource       domain.AppSource   `json:"appSource"`
	RegisteredApps  []domain.AppSource `json:"registeredApps"`
	IsEmailVerified bool               `json:"isEmailVerified"`
	IsActive        bool               `json:"isActive"`
	LastLogin       *time.Time         `json:"lastLogin,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
}

type authResponse struct {
	User        userResponse `json:"user"`
	AccessToken string       `json:"accessToken"`
	Linked      *bool        `json:"linked,omitempty"`
}

type authURLResponse struct {
	AuthURL string `json:"authUrl"`
	State   string `json:"state"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:              u.ID,
		Email:           u.Email,
		Username:        u.Username,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Avatar:          u.Avatar,
		Role:            u.Role,
		Plan:            u.Plan,
		AuthProvider:    string(u.AuthProvider()),
		AppSource:       u.AppSource,
		RegisteredApps:  u.RegisteredApps,
		IsEmailVerified: u.IsEmailVerified,
		IsActive:        u.IsActive,
		LastLogin:       u.LastLogin,
		CreatedAt:       u.CreatedAt,
	}
}

// Signup registers a new identity or links an existing one to the app.
//
// @Summary      Sign up or link an account
// @Description  A 409 with code ACCOUNT_EXISTS_LINK_PROMPT asks the client to resend with linkAccount set.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signupRequest  true  "Signup details"
// @Success      201   {object}  Response{data=authResponse}
// @Success      200   {object}  Response{data=authResponse}
// @Failure      400   {object}  Response
// @Failure      401   {object}  Response
// @Failure      409   {object}  Response
// @Router       /auth/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	app := h.appFor(req.AppSource)

	res, err := h.accounts.Signup(c.Request().Context(), ports.SignupInput{
		Email:       req.Email,
		Password:    req.Password,
		Username:    req.Username,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		AppSource:   app,
		LinkAccount: req.LinkAccount,
	})
	recordAttempt("signup", app, res, err)
	if err != nil {
		return err
	}

	linked := res.Linked
	body := authResponse{User: toUserResponse(res.User), AccessToken: res.AccessToken, Linked: &linked}
	if linked {
		return respond(c, http.StatusOK, "Account linked successfully", body)
	}
	return respond(c, http.StatusCreated, "User registered successfully", body)
}

// Signin authenticates with email and password.
//
// @Summary      Sign in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signinRequest  true  "Credentials"
// @Success      200   {object}  Response{data=authResponse}
// @Failure      400   {object}  Response
// @Failure      401   {object}  Response
// @Router       /auth/signin [post]
func (h *AuthHandler) Signin(c echo.Context) error {
	var req signinRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	app := h.appFor(req.AppSource)

	res, err := h.accounts.Signin(c.Request().Context(), ports.SigninInput{
		Email:     req.Email,
		Password:  req.Password,
		AppSource: app,
	})
	recordAttempt("signin", app, res, err)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Sign in successful", authResponse{
		User:        toUserResponse(res.User),
		AccessToken: res.AccessToken,
	})
}

// GoogleAuthURL returns the consent-screen URL for the app's OAuth client.
//
// @Summary      Start Google sign-in
// @Tags         auth
// @Produce      json
// @Param        appSource  query     string  false  "App-source the sign-in is for"
// @Success      200        {object}  Response{data=authURLResponse}
// @Failure      400        {object}  Response
// @Router       /auth/google [get]
func (h *AuthHandler) GoogleAuthURL(c echo.Context) error {
	app := h.appFor(c.QueryParam("appSource"))

	u, err := h.accounts.GoogleAuthURL(c.Request().Context(), app)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Auth URL generated", authURLResponse{AuthURL: u.URL, State: u.State})
}

// GoogleCallback completes the authorization-code flow and issues a session.
//
// @Summary      Google OAuth callback
// @Tags         auth
// @Produce      json
// @Param        code         query     string  true   "Authorization code"
// @Param        appSource    query     string  false  "App-source; required unless implied by state"
// @Param        redirectUri  query     string  false  "Redirect URI the code was issued for"
// @Param        state        query     string  false  "State returned by /auth/google"
// @Success      200          {object}  Response{data=authResponse}
// @Failure      400          {object}  Response
// @Failure      502          {object}  Response
// @Router       /auth/google/callback [get]
func (h *AuthHandler) GoogleCallback(c echo.Context) error {
	var q googleCallbackQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query")
	}
	if q.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Authorization code is required")
	}
	app := h.appFor(q.AppSource)

	start := time.Now()
	res, err := h.accounts.CompleteGoogleSignIn(c.Request().Context(), ports.GoogleCallbackInput{
		Code:        q.Code,
		RedirectURI: q.RedirectURI,
		State:       q.State,
		AppSource:   app,
	})
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.OAuthCallbackDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	recordAttempt("google", app, res, err)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "Google authentication successful", authResponse{
		User:        toUserResponse(res.User),
		AccessToken: res.AccessToken,
	})
}

// ForgotPassword emails a reset link. The reply is identical whether or not
// the account exists.
//
// @Summary      Request a password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      forgotPasswordRequest  true  "Email"
// @Success      200   {object}  Response
// @Failure      400   {object}  Response
// @Router       /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	app := h.appFor(req.AppSource)
	if !app.Valid() {
		app = ""
	}

	err := h.resets.RequestReset(c.Request().Context(), req.Email, app)
	recordAttempt("reset_request", app, nil, err)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, resetRequestedMessage, nil)
}

// ResetPassword redeems a reset token.
//
// @Summary      Reset password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      resetPasswordRequest  true  "Token and new password"
// @Success      200   {object}  Response
// @Failure      400   {object}  Response
// @Router       /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	err := h.resets.ResetPassword(c.Request().Context(), req.Token, req.NewPassword)
	recordAttempt("reset", h.app, nil, err)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Password reset successfully", nil)
}

// Me returns the authenticated identity.
//
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Response{data=userResponse}
// @Failure      401  {object}  Response
// @Failure      404  {object}  Response
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	user, err := h.accounts.Me(c.Request().Context(), claims.UserID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User retrieved successfully", toUserResponse(user))
}

// VerifyEmail marks the caller's email as verified.
//
// @Summary      Verify own email
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Response
// @Failure      401  {object}  Response
// @Failure      404  {object}  Response
// @Router       /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	already, err := h.accounts.VerifyEmail(c.Request().Context(), claims.UserID)
	if err != nil {
		return err
	}
	if already {
		return respond(c, http.StatusOK, "Email is already verified", nil)
	}
	return respond(c, http.StatusOK, "Email verified successfully", nil)
}

type verifyAccountRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// VerifyAccount lets an administrator mark any account as verified.
//
// @Summary      Verify an account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      verifyAccountRequest  true  "Target user"
// @Success      200   {object}  Response{data=userResponse}
// @Failure      401   {object}  Response
// @Failure      403   {object}  Response
// @Failure      404   {object}  Response
// @Router       /auth/verify-account [post]
func (h *AuthHandler) VerifyAccount(c echo.Context) error {
	var req verifyAccountRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.accounts.VerifyAccount(c.Request().Context(), req.UserID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User verified successfully", toUserResponse(user))
}

// recordAttempt counts one authentication flow outcome.
func recordAttempt(flow string, app domain.AppSource, res *ports.AuthResult, err error) {
	label := string(app)
	if !app.Valid() {
		label = "none"
	}
	metrics.AuthAttemptsTotal.WithLabelValues(flow, label, attemptOutcome(res, err)).Inc()
}

func attemptOutcome(res *ports.AuthResult, err error) string {
	switch {
	case err == nil && res != nil && res.Linked:
		return "linked"
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrLinkPromptRequired):
		return "prompt"
	case errors.Is(err, domain.ErrDuplicateRegistration),
		errors.Is(err, domain.ErrUsernameTaken),
		errors.Is(err, domain.ErrEmailTaken),
		errors.Is(err, domain.ErrIndependentAccountNeedsEmail),
		errors.Is(err, domain.ErrUnverifiedProviderEmail):
		return "conflict"
	case errors.Is(err, domain.ErrProviderUnavailable):
		return "error"
	case isClientError(err):
		return "rejected"
	default:
		return "error"
	}
}

// isClientError reports whether err is a domain error caused by the request
// rather than by infrastructure.
func isClientError(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidEmailFormat, domain.ErrWeakPassword, domain.ErrInvalidAppSource, domain.ErrInvalidUsername,
		domain.ErrInvalidCredentials, domain.ErrLinkPasswordMismatch, domain.ErrGoogleSignInRequired,
		domain.ErrInvalidOrExpiredToken, domain.ErrInvalidOTP, domain.ErrInvalidRedirect,
		domain.ErrInvalidGrant, domain.ErrInvalidState, domain.ErrMissingProviderClaims,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
