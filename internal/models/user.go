package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User is a conference attendee account.
type User struct {
	BaseModel
	FirstName        string     `json:"firstName"`
	LastName         string     `json:"lastName"`
	Email            string     `gorm:"uniqueIndex;not null" json:"email"`
	Country          string     `json:"country"`
	ClubName         string     `json:"clubName"`
	Birthday         *time.Time `json:"birthday,omitempty"`
	PasswordHash     string     `json:"-"`
	HasSelectedPlan  bool       `json:"hasSelectedPlan"`
	SelectedPlan     string     `json:"selectedPlan"`
	CurrentOrderID   *string    `json:"currentOrderId"`
	ResetToken       string     `gorm:"index" json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`
}

// BeforeSave keeps emails normalised so lookups can compare exactly.
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = NormalizeEmail(u.Email)
	return nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
