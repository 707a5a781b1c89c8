package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/laconfe/internal/services"
)

// CatalogHandler serves room inventory and promo lookups.
type CatalogHandler struct {
	ledger *services.LedgerService
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(ledger *services.LedgerService) *CatalogHandler {
	return &CatalogHandler{ledger: ledger}
}

// ListRooms returns every room type with its remaining inventory.
func (h *CatalogHandler) ListRooms(c *fiber.Ctx) error {
	rooms, err := h.ledger.ListRooms(c.UserContext())
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(rooms)
}

// GetPromo looks a promo code up case-insensitively.
func (h *CatalogHandler) GetPromo(c *fiber.Ctx) error {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "code is required")
	}

	promo, err := h.ledger.GetPromo(c.UserContext(), code)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(promo)
}
