package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/example/laconfe/internal/models"
)

// Gateway callback status codes.
const (
	CallbackStatusSuccess = "1"
	CallbackStatusFailure = "0"
)

// CallbackLocker serialises concurrent deliveries for the same order.
// Acquire returns ok == false when another delivery holds the lock.
type CallbackLocker interface {
	Acquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// CallbackRequest is one bank notification. Raw holds every field as received.
type CallbackRequest struct {
	MdOrder     string
	OrderNumber string
	Operation   string
	Status      string
	Raw         map[string]string
}

// CallbackOutcome describes what reconciliation did with a delivery.
type CallbackOutcome struct {
	Payment *models.Payment
	// Target is the terminal status the callback asked for; empty for interim statuses.
	Target models.PaymentStatus
	// Applied is true only for the delivery that performed the transition.
	Applied bool
	// Duplicate is true when the transition had already been applied.
	Duplicate bool
}

// CallbackService is the only component that moves payments out of pending.
type CallbackService struct {
	payments *PaymentStore
	ledger   *LedgerService
	accounts *AccountService
	mailer   Mailer
	locker   CallbackLocker
	now      func() time.Time
}

// NewCallbackService constructs a CallbackService. locker may be nil.
func NewCallbackService(payments *PaymentStore, ledger *LedgerService, accounts *AccountService, mailer Mailer, locker CallbackLocker) *CallbackService {
	return &CallbackService{
		payments: payments,
		ledger:   ledger,
		accounts: accounts,
		mailer:   mailer,
		locker:   locker,
		now:      time.Now,
	}
}

// HandleCallback reconciles one bank callback.
//
// It returns ErrPaymentNotFound for unknown orders and ErrPersistence when the
// payment cannot be read or transitioned, both before any side effect. Once the
// transition is applied every downstream step is attempted and its failure is
// only logged, so the caller should acknowledge the delivery.
func (s *CallbackService) HandleCallback(ctx context.Context, cb CallbackRequest) (*CallbackOutcome, error) {
	mdOrder := strings.TrimSpace(cb.MdOrder)
	logger := log.With().
		Str("md_order", mdOrder).
		Str("order_number", cb.OrderNumber).
		Str("operation", cb.Operation).
		Str("status", cb.Status).
		Logger()

	logger.Info().Msg("[Callback] received")

	payment, err := s.payments.FindByMdOrder(ctx, mdOrder)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			logger.Warn().Msg("[Callback] payment not found")
		} else {
			logger.Error().Err(err).Msg("[Callback] payment lookup failed")
		}
		return nil, err
	}

	raw, err := json.Marshal(cb.Raw)
	if err != nil {
		raw = []byte("{}")
	}
	if err := s.payments.RecordCallback(ctx, mdOrder, cb.Operation, cb.Status, raw); err != nil {
		logger.Error().Err(err).Msg("[Callback] recording callback payload failed")
	} else {
		payment.Operation = cb.Operation
		payment.CallbackStatus = cb.Status
		payment.CallbackPayload = raw
	}

	outcome := &CallbackOutcome{Payment: payment, Target: targetStatus(cb.Status)}
	if outcome.Target == "" {
		logger.Info().Msg("[Callback] interim status, no transition")
		return outcome, nil
	}

	if payment.IsTerminal() {
		logger.Info().Str("current_status", string(payment.Status)).Msg("[Callback] payment already settled, skipping side effects")
		outcome.Duplicate = true
		return outcome, nil
	}

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, "callback:"+mdOrder)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("[Callback] lock unavailable, relying on status guard")
		case !ok:
			logger.Info().Msg("[Callback] another delivery is reconciling this order")
			outcome.Duplicate = true
			return outcome, nil
		default:
			defer release()
		}
	}

	settledAt := s.now()
	applied, err := s.payments.Settle(ctx, mdOrder, outcome.Target, settledAt)
	if err != nil {
		logger.Error().Err(err).Msg("[Callback] transition failed")
		return nil, err
	}
	if !applied {
		logger.Info().Str("current_status", string(payment.Status)).Msg("[Callback] transition already applied, skipping side effects")
		outcome.Duplicate = true
		return outcome, nil
	}

	outcome.Applied = true
	payment.Status = outcome.Target
	payment.SettledAt = &settledAt

	switch outcome.Target {
	case models.PaymentSuccess:
		s.applySuccess(ctx, payment)
	case models.PaymentFailed:
		s.applyFailure(ctx, payment)
	}

	logger.Info().Str("result", string(outcome.Target)).Msg("[Callback] reconciled")
	return outcome, nil
}

func (s *CallbackService) applySuccess(ctx context.Context, payment *models.Payment) {
	logger := log.With().Str("md_order", payment.MdOrder).Logger()

	if payment.PromoCode != "" {
		promo, err := s.ledger.DecrementPromo(ctx, payment.PromoCode)
		if err != nil {
			logger.Error().Err(err).Str("promo_code", payment.PromoCode).Msg("[Callback] promo decrement failed")
		} else {
			logger.Info().Str("promo_code", promo.Code).Int("remaining", promo.Amount).Msg("[Callback] promo redeemed")
		}
	}

	var room *models.Room
	if payment.SelectedRoom == "" {
		logger.Warn().Msg("[Callback] payment has no room selection")
	} else {
		r, err := s.ledger.DecrementRoom(ctx, payment.SelectedRoom)
		if err != nil {
			logger.Error().Err(err).Str("room_id", payment.SelectedRoom).Msg("[Callback] room decrement failed")
		} else {
			room = r
			logger.Info().Str("room_id", r.RoomID).Int("remaining", r.Count).Str("available", r.Available).Msg("[Callback] room reserved")
		}
	}

	user, err := s.accounts.CompletePlan(ctx, payment.UserID, payment.PlanID)
	if err != nil {
		logger.Error().Err(err).Str("user_id", payment.UserID.String()).Msg("[Callback] user plan update failed")
	}

	if user == nil || room == nil {
		logger.Warn().Bool("user_found", user != nil).Bool("room_found", room != nil).
			Msg("[Callback] confirmation email skipped")
		return
	}

	email := PaymentConfirmationEmail(payment, user, room, s.now())
	if err := s.mailer.Send(ctx, email); err != nil {
		logger.Error().Err(err).Str("to", user.Email).Msg("[Callback] confirmation email failed")
		return
	}
	logger.Info().Str("to", user.Email).Msg("[Callback] confirmation email sent")
}

func (s *CallbackService) applyFailure(ctx context.Context, payment *models.Payment) {
	if err := s.accounts.ClearCurrentOrder(ctx, payment.UserID, payment.MdOrder); err != nil {
		log.Error().Err(err).
			Str("md_order", payment.MdOrder).
			Str("user_id", payment.UserID.String()).
			Msg("[Callback] clearing current order failed")
	}
}

func targetStatus(status string) models.PaymentStatus {
	switch strings.TrimSpace(status) {
	case CallbackStatusSuccess:
		return models.PaymentSuccess
	case CallbackStatusFailure:
		return models.PaymentFailed
	default:
		return ""
	}
}
