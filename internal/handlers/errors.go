package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/laconfe/internal/services"
)

// serviceError maps service sentinels to HTTP errors. Unknown errors fall
// through to the app error handler as 500s.
func serviceError(err error) error {
	switch {
	case errors.Is(err, services.ErrPaymentNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrRoomNotFound),
		errors.Is(err, services.ErrPromoNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrEmailTaken):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrWeakPassword),
		errors.Is(err, services.ErrMissingAccountField),
		errors.Is(err, services.ErrInvalidResetToken):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUpstream):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, services.ErrPersistence):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}

// ErrorHandler renders every error as {"error": message}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}

	return c.Status(code).JSON(fiber.Map{"error": msg})
}
