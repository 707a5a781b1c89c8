package services

import "errors"

// Not-found errors. Handlers map these to 404.
var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrRoomNotFound    = errors.New("room not found")
	ErrPromoNotFound   = errors.New("promo not found")
)

var (
	// ErrValidation marks a request missing required identifying fields.
	ErrValidation = errors.New("validation failed")

	// ErrUpstream wraps failures of the bank gateway or the mail service.
	ErrUpstream = errors.New("upstream service failed")

	// ErrPersistence wraps store failures the caller may retry.
	ErrPersistence = errors.New("store unavailable")
)

// Account errors.
var (
	ErrEmailTaken          = errors.New("user already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidResetToken   = errors.New("invalid or expired reset token")
	ErrWeakPassword        = errors.New("password must be at least 6 characters")
	ErrMissingAccountField = errors.New("missing required fields")
)
