package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/laconfe/internal/database"
)

// Health reports whether the database is reachable.
func Health(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := database.Ping(db); err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "database unavailable")
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
