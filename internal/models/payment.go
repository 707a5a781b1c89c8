package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// PaymentStatus is the lifecycle state of a gateway order.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// Payment is one registration attempt at the bank gateway, keyed by the gateway order id.
// Rows are never deleted.
type Payment struct {
	BaseModel
	MdOrder         string         `gorm:"uniqueIndex;not null" json:"mdOrder"`
	OrderNumber     string         `json:"orderNumber"`
	UserID          uuid.UUID      `gorm:"type:uuid;index" json:"userId"`
	Email           string         `gorm:"index" json:"email"`
	Amount          float64        `json:"amount"`
	PlanID          string         `json:"planId"`
	SelectedRoom    string         `gorm:"index" json:"selectedRoom"`
	PromoCode       string         `json:"promoCode,omitempty"`
	Locale          string         `json:"locale"`
	Status          PaymentStatus  `gorm:"index;not null;default:pending" json:"status"`
	Operation       string         `json:"operation,omitempty"`
	CallbackStatus  string         `json:"callbackStatus,omitempty"`
	GatewayResponse datatypes.JSON `json:"gatewayResponse,omitempty"`
	CallbackPayload datatypes.JSON `json:"callbackPayload,omitempty"`
	SettledAt       *time.Time     `json:"settledAt,omitempty"`
}

// IsTerminal reports whether the payment has left the pending state.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentSuccess || p.Status == PaymentFailed
}
