package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/example/laconfe/internal/models"
	"github.com/example/laconfe/internal/utils"
)

// PaymentStore persists gateway orders. Rows are created pending, mutated only by
// callback reconciliation and never deleted.
type PaymentStore struct {
	db *gorm.DB
}

// NewPaymentStore constructs a PaymentStore.
func NewPaymentStore(db *gorm.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

// Create inserts a new pending payment. The gateway order id must be set.
func (s *PaymentStore) Create(ctx context.Context, payment *models.Payment) error {
	if payment.MdOrder == "" {
		return fmt.Errorf("%w: mdOrder is required", ErrValidation)
	}
	payment.Status = models.PaymentPending
	if err := s.db.WithContext(ctx).Create(payment).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// FindByMdOrder returns the payment for a gateway order id.
func (s *PaymentStore) FindByMdOrder(ctx context.Context, mdOrder string) (*models.Payment, error) {
	if mdOrder == "" {
		return nil, ErrPaymentNotFound
	}

	var payment models.Payment
	if err := s.db.WithContext(ctx).Where("md_order = ?", mdOrder).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return &payment, nil
}

// RecordCallback stores the latest raw callback delivery without touching the lifecycle state.
func (s *PaymentStore) RecordCallback(ctx context.Context, mdOrder, operation, status string, payload []byte) error {
	res := s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("md_order = ?", mdOrder).
		Updates(map[string]any{
			"operation":        operation,
			"callback_status":  status,
			"callback_payload": datatypes.JSON(payload),
		})
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// Settle moves a pending payment to a terminal status. It is a conditional update on
// the pending state, so exactly one caller per order observes applied == true.
func (s *PaymentStore) Settle(ctx context.Context, mdOrder string, target models.PaymentStatus, at time.Time) (bool, error) {
	if target != models.PaymentSuccess && target != models.PaymentFailed {
		return false, fmt.Errorf("%w: invalid target status %q", ErrValidation, target)
	}

	res := s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("md_order = ? AND status = ?", mdOrder, models.PaymentPending).
		Updates(map[string]any{
			"status":     target,
			"settled_at": at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("%w: %v", ErrPersistence, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ListByEmail returns payments made with the given email, newest first.
func (s *PaymentStore) ListByEmail(ctx context.Context, email string, pg utils.Pagination) ([]models.Payment, int64, error) {
	query := s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("email = ?", models.NormalizeEmail(email)).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	payments := make([]models.Payment, 0)
	if err := query.
		Order("created_at desc").
		Limit(pg.Limit).
		Offset(pg.Offset).
		Find(&payments).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return payments, total, nil
}

// ListSuccessfulByUser returns a user's settled-successful payments, oldest first.
func (s *PaymentStore) ListSuccessfulByUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	payments := make([]models.Payment, 0)
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.PaymentSuccess).
		Order("created_at asc").
		Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return payments, nil
}
