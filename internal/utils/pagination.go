package utils

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const maxPageLimit = 100

// Pagination holds pagination parameters.
type Pagination struct {
	Page   int
	Limit  int
	Offset int
}

// ParsePagination reads page and limit query params with sane defaults.
func ParsePagination(c *fiber.Ctx) Pagination {
	return NewPagination(
		parseInt(c.Query("page", "1"), 1),
		parseInt(c.Query("limit", "20"), 20),
	)
}

// NewPagination clamps page and limit and computes the offset.
func NewPagination(page, limit int) Pagination {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if page <= 0 {
		page = 1
	}

	return Pagination{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

func parseInt(value string, fallback int) int {
	if parsed, err := strconv.Atoi(value); err == nil {
		return parsed
	}
	return fallback
}
