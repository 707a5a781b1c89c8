package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/example/laconfe/internal/config"
	"github.com/example/laconfe/internal/utils"
)

const userIDLocal = "userID"

// AuthMiddleware requires a Bearer JWT issued at login and stores the user id in locals.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scheme, token, found := strings.Cut(c.Get(fiber.HeaderAuthorization), " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing or malformed bearer token")
		}

		userID, err := utils.ParseToken(cfg.JWTSecret, strings.TrimSpace(token))
		if err != nil {
			log.Debug().Err(err).Str("path", c.Path()).Msg("rejected token")
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(userIDLocal, userID)
		return c.Next()
	}
}

// GetCurrentUserID returns the user id stored by AuthMiddleware.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(userIDLocal).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
