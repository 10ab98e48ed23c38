package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/geosoft/accounts-api/internal/core/domain"
	"github.com/geosoft/accounts-api/internal/core/ports"
)

// OTPHandler serves one-time codes for the authenticated user.
type OTPHandler struct {
	service ports.OTPService
}

func NewOTPHandler(service ports.OTPService) *OTPHandler {
	return &OTPHandler{service: service}
}

type otpTypeRequest struct {
	Type string `json:"type" query:"type" validate:"required"`
}

type otpVerifyRequest struct {
	Code string `json:"code" validate:"required"`
	Type string `json:"type" validate:"required"`
}

type otpGenerateResponse struct {
	TokenID   string    `json:"tokenId"`
	ExpiresAt time.Time `json:"expiresAt"`
	Code      string    `json:"code,omitempty"`
}

type otpVerifyResponse struct {
	TokenID string            `json:"tokenId"`
	Type    domain.OTPPurpose `json:"type"`
}

type otpInvalidateResponse struct {
	Invalidated int64 `json:"invalidated"`
}

// Generate issues a new code, superseding the active one of the same type.
//
// @Summary      Generate an OTP
// @Tags         otp
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      otpTypeRequest  true  "email_verification or password_reset"
// @Success      201   {object}  Response{data=otpGenerateResponse}
// @Failure      400   {object}  Response
// @Failure      401   {object}  Response
// @Router       /otp/generate [post]
func (h *OTPHandler) Generate(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	var req otpTypeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	issued, err := h.service.Generate(c.Request().Context(), claims, domain.OTPPurpose(req.Type))
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "OTP sent to your email address", otpGenerateResponse{
		TokenID:   issued.Token.ID,
		ExpiresAt: issued.Token.ExpiresAt,
		Code:      issued.Code,
	})
}

// Verify consumes a code.
//
// @Summary      Verify an OTP
// @Tags         otp
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      otpVerifyRequest  true  "Code and type"
// @Success      200   {object}  Response{data=otpVerifyResponse}
// @Failure      400   {object}  Response
// @Failure      401   {object}  Response
// @Router       /otp/verify [post]
func (h *OTPHandler) Verify(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	var req otpVerifyRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	used, err := h.service.Verify(c.Request().Context(), claims.UserID, req.Code, domain.OTPPurpose(req.Type))
	recordAttempt("otp_verify", "", nil, err)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "OTP verified successfully", otpVerifyResponse{TokenID: used.ID, Type: used.Purpose})
}

// Invalidate retires every unused code of a type.
//
// @Summary      Invalidate OTPs
// @Tags         otp
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      otpTypeRequest  true  "email_verification or password_reset"
// @Success      200   {object}  Response{data=otpInvalidateResponse}
// @Failure      400   {object}  Response
// @Failure      401   {object}  Response
// @Router       /otp/invalidate [delete]
func (h *OTPHandler) Invalidate(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	var req otpTypeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	n, err := h.service.Invalidate(c.Request().Context(), claims.UserID, domain.OTPPurpose(req.Type))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "OTP tokens invalidated successfully", otpInvalidateResponse{Invalidated: n})
}
