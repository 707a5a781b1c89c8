package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/laconfe/internal/middleware"
	"github.com/example/laconfe/internal/models"
	"github.com/example/laconfe/internal/services"
)

// AuthHandler bundles dependencies for account endpoints.
type AuthHandler struct {
	accounts *services.AccountService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(accounts *services.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type createUserRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Country   string `json:"country"`
	ClubName  string `json:"clubName"`
	Birthday  string `json:"birthday"`
	Password  string `json:"password"`
	Locale    string `json:"locale"`
}

// CreateUser creates a new account and sends the welcome email.
func (h *AuthHandler) CreateUser(c *fiber.Ctx) error {
	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	birthday, err := parseBirthday(req.Birthday)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid birthday")
	}

	user, err := h.accounts.Create(c.UserContext(), services.CreateUserInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Country:   req.Country,
		ClubName:  req.ClubName,
		Birthday:  birthday,
		Password:  req.Password,
		Locale:    req.Locale,
	})
	if err != nil {
		return serviceError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates an existing user.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "email and password are required")
	}

	user, token, err := h.accounts.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    userResponse(user),
		"token":   token,
	})
}

// Me returns the authenticated user's profile and plan state.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	user, err := h.accounts.GetByID(c.UserContext(), userID)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(userResponse(user))
}

func userResponse(user *models.User) fiber.Map {
	return fiber.Map{
		"id":              user.ID,
		"firstName":       user.FirstName,
		"lastName":        user.LastName,
		"email":           user.Email,
		"hasSelectedPlan": user.HasSelectedPlan,
		"selectedPlan":    user.SelectedPlan,
		"currentOrderId":  user.CurrentOrderID,
	}
}

func parseBirthday(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, fiber.ErrBadRequest
}
