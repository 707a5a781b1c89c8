package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/example/laconfe/internal/services"
)

// PasswordResetHandler manages forgot-password endpoints.
type PasswordResetHandler struct {
	accounts *services.AccountService
}

// NewPasswordResetHandler constructs a PasswordResetHandler.
func NewPasswordResetHandler(accounts *services.AccountService) *PasswordResetHandler {
	return &PasswordResetHandler{accounts: accounts}
}

type requestResetRequest struct {
	Email  string `json:"email"`
	Locale string `json:"locale"`
}

// RequestReset stores a reset token and emails the reset link.
func (h *PasswordResetHandler) RequestReset(c *fiber.Ctx) error {
	var req requestResetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" {
		return fiber.NewError(fiber.StatusBadRequest, "email is required")
	}

	if err := h.accounts.RequestPasswordReset(c.UserContext(), req.Email, req.Locale); err != nil {
		if errors.Is(err, services.ErrUpstream) {
			log.Error().Err(err).Str("email", req.Email).Msg("[Auth] reset email failed")
			return fiber.NewError(fiber.StatusInternalServerError, "failed to send reset email")
		}
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "reset link sent",
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// ResetPassword sets a new password for the holder of a valid reset token.
func (h *PasswordResetHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.accounts.ResetPassword(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "password updated",
	})
}
