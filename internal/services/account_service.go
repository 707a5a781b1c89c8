package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/example/laconfe/internal/models"
	"github.com/example/laconfe/internal/utils"
)

const resetTokenTTL = time.Hour

// AccountService owns user accounts: sign-up, login, password reset and the
// plan-selection state that payment reconciliation updates.
type AccountService struct {
	db          *gorm.DB
	mailer      Mailer
	jwtSecret   string
	tokenTTL    time.Duration
	frontendURL string
	now         func() time.Time
}

// NewAccountService constructs an AccountService.
func NewAccountService(db *gorm.DB, mailer Mailer, jwtSecret string, tokenTTL time.Duration, frontendURL string) *AccountService {
	return &AccountService{
		db:          db,
		mailer:      mailer,
		jwtSecret:   jwtSecret,
		tokenTTL:    tokenTTL,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		now:         time.Now,
	}
}

// CreateUserInput carries sign-up fields.
type CreateUserInput struct {
	FirstName string
	LastName  string
	Email     string
	Country   string
	ClubName  string
	Birthday  *time.Time
	Password  string
	Locale    string
}

// Create registers a new account and sends the welcome email.
// A failed email is logged; the account is still created.
func (s *AccountService) Create(ctx context.Context, in CreateUserInput) (*models.User, error) {
	email := models.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" || strings.TrimSpace(in.FirstName) == "" {
		return nil, ErrMissingAccountField
	}
	if len(in.Password) < 6 {
		return nil, ErrWeakPassword
	}

	if _, err := s.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		Country:      in.Country,
		ClubName:     in.ClubName,
		Birthday:     in.Birthday,
		PasswordHash: hash,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if err := s.mailer.Send(ctx, RegistrationEmail(in.Locale, user.Email, user.FirstName)); err != nil {
		log.Error().Err(err).Str("email", user.Email).Msg("[Account] registration email failed")
	}

	return &user, nil
}

// Login checks credentials and issues a JWT.
func (s *AccountService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !utils.CheckPassword(user.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := utils.GenerateToken(s.jwtSecret, user.ID, user.Email, s.tokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	return user, token, nil
}

// GetByID loads a user by primary key.
func (s *AccountService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return &user, nil
}

// GetByEmail loads a user by email, case-insensitively.
func (s *AccountService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, ErrUserNotFound
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return &user, nil
}

// SetCurrentOrder marks the gateway order the user is currently paying.
func (s *AccountService) SetCurrentOrder(ctx context.Context, userID uuid.UUID, mdOrder string) error {
	return s.updateUser(ctx, userID, map[string]any{"current_order_id": mdOrder})
}

// ClearCurrentOrder forgets the user's in-flight order if it is still mdOrder.
// A newer order started since then is left in place, as is plan selection.
func (s *AccountService) ClearCurrentOrder(ctx context.Context, userID uuid.UUID, mdOrder string) error {
	res := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND current_order_id = ?", userID, mdOrder).
		Update("current_order_id", nil)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, res.Error)
	}
	if res.RowsAffected == 0 {
		log.Debug().Str("user_id", userID.String()).Str("md_order", mdOrder).
			Msg("[Account] current order already replaced or cleared")
	}
	return nil
}

// CompletePlan records a paid plan and clears the in-flight order. It returns the updated user.
func (s *AccountService) CompletePlan(ctx context.Context, userID uuid.UUID, planID string) (*models.User, error) {
	if err := s.updateUser(ctx, userID, map[string]any{
		"has_selected_plan": true,
		"selected_plan":     planID,
		"current_order_id":  nil,
	}); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, userID)
}

// RequestPasswordReset stores a one-hour reset token and emails the reset link.
// Unknown emails return ErrUserNotFound so the handler can decide what to reveal.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email, locale string) error {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, err := utils.RandomToken(32)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	expiry := s.now().Add(resetTokenTTL)

	if err := s.updateUser(ctx, user.ID, map[string]any{
		"reset_token":        token,
		"reset_token_expiry": expiry,
	}); err != nil {
		return err
	}

	locale = NormalizeLocale(locale)
	link := fmt.Sprintf("%s/%s/reset-password?token=%s", s.frontendURL, locale, url.QueryEscape(token))
	if err := s.mailer.Send(ctx, PasswordResetEmail(locale, user.Email, user.FirstName, link)); err != nil {
		return err
	}
	return nil
}

// ResetPassword replaces the password of the user holding a valid reset token.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(token) == "" {
		return ErrInvalidResetToken
	}
	if len(newPassword) < 6 {
		return ErrWeakPassword
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("reset_token = ?", token).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if user.ResetTokenExpiry == nil || user.ResetTokenExpiry.Before(s.now()) {
		return ErrInvalidResetToken
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.updateUser(ctx, user.ID, map[string]any{
		"password_hash":      hash,
		"reset_token":        "",
		"reset_token_expiry": nil,
	})
}

func (s *AccountService) updateUser(ctx context.Context, userID uuid.UUID, updates map[string]any) error {
	res := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
