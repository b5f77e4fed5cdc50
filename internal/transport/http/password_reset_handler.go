package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/karmakanban/karmakanban-backend/internal/domain"
	"github.com/karmakanban/karmakanban-backend/internal/otp"
	"github.com/karmakanban/karmakanban-backend/internal/service"
	"github.com/karmakanban/karmakanban-backend/internal/util"
)

// PasswordResetFlow is implemented by *service.PasswordResetService.
type PasswordResetFlow interface {
	RequestChallenge(ctx context.Context, email string) error
	ResendChallenge(ctx context.Context, email string) error
	ConfirmChallenge(ctx context.Context, email, code string) (*domain.ResetGrant, error)
	ValidateResetToken(ctx context.Context, token string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type PasswordResetHandler struct {
	resets PasswordResetFlow
}

func RegisterPasswordReset(e *echo.Echo, resets PasswordResetFlow) {
	handler := &PasswordResetHandler{resets: resets}

	g := e.Group("/api/v1/auth/password-reset")
	g.POST("/request", handler.request)
	g.POST("/resend", handler.resend)
	g.POST("/verify", handler.verify)
	g.POST("/validate", handler.validate)
	g.POST("/confirm", handler.confirm)
}

// request handles POST /api/v1/auth/password-reset/request
func (h *PasswordResetHandler) request(c echo.Context) error {
	return h.issue(c, h.resets.RequestChallenge)
}

// resend handles POST /api/v1/auth/password-reset/resend
func (h *PasswordResetHandler) resend(c echo.Context) error {
	return h.issue(c, h.resets.ResendChallenge)
}

func (h *PasswordResetHandler) issue(c echo.Context, send func(context.Context, string) error) error {
	var req PasswordResetRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}
	// The answer never depends on whether the account exists.
	_ = send(c.Request().Context(), req.Email)
	return c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// verify handles POST /api/v1/auth/password-reset/verify
func (h *PasswordResetHandler) verify(c echo.Context) error {
	var req PasswordResetVerifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error(validationMessage(err)))
	}

	grant, err := h.resets.ConfirmChallenge(c.Request().Context(), req.Email, req.OTP)
	if err != nil {
		var chErr *service.ChallengeError
		if errors.As(err, &chErr) {
			return challengeFailure(c, chErr)
		}
		if errors.Is(err, service.ErrStorageFailure) {
			return c.JSON(http.StatusServiceUnavailable, util.Error("password reset is temporarily unavailable"))
		}
		return c.JSON(http.StatusInternalServerError, util.Error("verification failed"))
	}
	return c.JSON(http.StatusOK, PasswordResetVerifyResponse{ResetToken: grant.Token, ExpiresAt: grant.ExpiresAt})
}

func challengeFailure(c echo.Context, chErr *service.ChallengeError) error {
	reason := string(chErr.Reason)
	msg := chErr.Unwrap().Error()
	switch chErr.Reason {
	case otp.ReasonMismatch:
		return c.JSON(http.StatusBadRequest, PasswordResetMismatchResponse{
			Error:             msg,
			Reason:            reason,
			RemainingAttempts: chErr.Remaining,
		})
	case otp.ReasonExpired:
		return c.JSON(http.StatusGone, util.ErrorWithReason(msg, reason))
	case otp.ReasonTooManyAttempts:
		return c.JSON(http.StatusTooManyRequests, util.ErrorWithReason(msg, reason))
	default:
		return c.JSON(http.StatusNotFound, util.ErrorWithReason(msg, string(otp.ReasonNotFound)))
	}
}

// validate handles POST /api/v1/auth/password-reset/validate
func (h *PasswordResetHandler) validate(c echo.Context) error {
	var req PasswordResetTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error(validationMessage(err)))
	}

	email, err := h.resets.ValidateResetToken(c.Request().Context(), req.Token)
	if err != nil {
		return tokenFailure(c, err)
	}
	return c.JSON(http.StatusOK, PasswordResetValidateResponse{Valid: true, Email: email})
}

// confirm handles POST /api/v1/auth/password-reset/confirm
func (h *PasswordResetHandler) confirm(c echo.Context) error {
	var req PasswordResetConfirmRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error(validationMessage(err)))
	}

	err := h.resets.ResetPassword(c.Request().Context(), req.Token, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordTooWeak):
			return c.JSON(http.StatusBadRequest, util.ErrorWithReason(err.Error(), "weak_password"))
		case errors.Is(err, service.ErrPasswordUpdateFailed):
			return c.JSON(http.StatusInternalServerError, util.Error("password could not be updated"))
		default:
			return tokenFailure(c, err)
		}
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

func tokenFailure(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrResetTokenNotFound):
		return c.JSON(http.StatusBadRequest, util.ErrorWithReason(err.Error(), "not_found"))
	case errors.Is(err, service.ErrResetTokenExpired):
		return c.JSON(http.StatusGone, util.ErrorWithReason(err.Error(), "expired"))
	case errors.Is(err, service.ErrResetTokenUsed):
		return c.JSON(http.StatusConflict, util.ErrorWithReason(err.Error(), "already_used"))
	case errors.Is(err, service.ErrStorageFailure):
		return c.JSON(http.StatusServiceUnavailable, util.Error("password reset is temporarily unavailable"))
	default:
		return c.JSON(http.StatusInternalServerError, util.Error("password reset failed"))
	}
}
