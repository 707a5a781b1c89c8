package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/example/laconfe/internal/models"
)

// LedgerService owns the room inventory and promo redemption counters.
type LedgerService struct {
	db *gorm.DB
}

// NewLedgerService constructs a LedgerService.
func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// DecrementRoom takes one unit of the room type, floored at zero, and recomputes
// its availability flag. The update is a single statement so concurrent callers
// never lose a decrement. It returns the room as stored after the update.
func (s *LedgerService) DecrementRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Room{}).
			Where("room_id = ?", roomID).
			Updates(map[string]any{
				"remaining_count": gorm.Expr("CASE WHEN remaining_count > 0 THEN remaining_count - 1 ELSE 0 END"),
				"available":       gorm.Expr("CASE WHEN remaining_count > 1 THEN ? ELSE ? END", models.RoomAvailable, models.RoomUnavailable),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRoomNotFound
		}
		return tx.Where("room_id = ?", roomID).First(&room).Error
	})
	if err != nil {
		return nil, ledgerError(err)
	}
	return &room, nil
}

// DecrementPromo consumes one redemption of the code, clamped at zero.
func (s *LedgerService) DecrementPromo(ctx context.Context, code string) (*models.Promo, error) {
	code = models.NormalizePromoCode(code)
	if code == "" {
		return nil, ErrPromoNotFound
	}

	var promo models.Promo
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Promo{}).
			Where("code = ?", code).
			Update("remaining_uses", gorm.Expr("CASE WHEN remaining_uses > 0 THEN remaining_uses - 1 ELSE 0 END"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPromoNotFound
		}
		return tx.Where("code = ?", code).First(&promo).Error
	})
	if err != nil {
		return nil, ledgerError(err)
	}
	return &promo, nil
}

// ListRooms returns the full inventory ordered by room id.
func (s *LedgerService) ListRooms(ctx context.Context) ([]models.Room, error) {
	rooms := make([]models.Room, 0)
	if err := s.db.WithContext(ctx).Order("room_id asc").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return rooms, nil
}

// GetPromo looks a code up case-insensitively.
func (s *LedgerService) GetPromo(ctx context.Context, code string) (*models.Promo, error) {
	code = models.NormalizePromoCode(code)
	if code == "" {
		return nil, ErrPromoNotFound
	}

	var promo models.Promo
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&promo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromoNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return &promo, nil
}

func ledgerError(err error) error {
	if errors.Is(err, ErrRoomNotFound) || errors.Is(err, ErrPromoNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
