package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Promo is a discount code with a limited number of redemptions.
type Promo struct {
	BaseModel
	Code       string    `gorm:"uniqueIndex;not null" json:"code"`
	Amount     int       `gorm:"column:remaining_uses;not null;default:0" json:"amount"`
	Discount   float64   `json:"discount"`
	RoomType   string    `json:"roomType"`
	DateActive time.Time `json:"dateActive"`
}

// BeforeSave stores codes uppercase.
func (p *Promo) BeforeSave(tx *gorm.DB) error {
	p.Code = NormalizePromoCode(p.Code)
	return nil
}

// NormalizePromoCode trims and upper-cases a promo code.
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
