package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"

	"github.com/example/laconfe/internal/models"
)

const redactedValue = "********"

// GatewayCredentials are the merchant credentials merged into every registration.
type GatewayCredentials struct {
	Username string
	Password string
}

// RegistrationResult is returned to the payer whatever happened to local persistence.
type RegistrationResult struct {
	SentPayload  map[string]any `json:"sentPayload"`
	BankResponse any            `json:"bankResponse"`
}

// RegistrationService forwards registrations to the bank and records pending payments.
type RegistrationService struct {
	gateway  BankGateway
	payments *PaymentStore
	accounts *AccountService
	creds    GatewayCredentials
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(gateway BankGateway, payments *PaymentStore, accounts *AccountService, creds GatewayCredentials) *RegistrationService {
	return &RegistrationService{
		gateway:  gateway,
		payments: payments,
		accounts: accounts,
		creds:    creds,
	}
}

// Register merges merchant credentials into the request, forwards it to the gateway
// and, when the gateway accepts the order, stores a pending payment keyed by the
// returned order id. Only gateway failures are returned as errors.
func (s *RegistrationService) Register(ctx context.Context, body map[string]any) (*RegistrationResult, error) {
	payload := make(map[string]any, len(body)+2)
	for k, v := range body {
		payload[k] = v
	}
	payload["userName"] = s.creds.Username
	payload["password"] = s.creds.Password

	fields := make(map[string]string, len(payload))
	for k, v := range payload {
		fields[k] = Stringify(v)
	}

	resp, err := s.gateway.Register(ctx, fields)
	if err != nil {
		log.Error().Err(err).Msg("[Register] gateway registration failed")
		return nil, err
	}

	if resp.Accepted() {
		if err := s.recordPending(ctx, body, resp); err != nil {
			log.Error().Err(err).Str("md_order", resp.OrderID).Msg("[Register] pending payment not persisted")
		}
	} else {
		log.Warn().
			Str("error_code", resp.ErrorCode).
			Str("error_message", resp.ErrorMessage).
			Msg("[Register] gateway rejected registration")
	}

	payload["password"] = redactedValue
	return &RegistrationResult{
		SentPayload:  payload,
		BankResponse: resp.Raw,
	}, nil
}

func (s *RegistrationService) recordPending(ctx context.Context, body map[string]any, resp *GatewayResponse) error {
	clientID := stringField(body, "clientId")
	planID := stringField(body, "planId")
	if clientID == "" || planID == "" {
		return fmt.Errorf("%w: clientId and planId are required", ErrValidation)
	}
	userID, err := uuid.Parse(clientID)
	if err != nil {
		return fmt.Errorf("%w: clientId %q is not a valid id", ErrValidation, clientID)
	}

	email := models.NormalizeEmail(stringField(body, "email"))
	if email == "" {
		if user, err := s.accounts.GetByID(ctx, userID); err == nil {
			email = user.Email
		}
	}

	amount, _ := strconv.ParseFloat(stringField(body, "amount"), 64)

	payment := models.Payment{
		MdOrder:         resp.OrderID,
		OrderNumber:     stringField(body, "orderNumber"),
		UserID:          userID,
		Email:           email,
		Amount:          amount,
		PlanID:          planID,
		SelectedRoom:    stringField(body, "selectedRoom"),
		PromoCode:       models.NormalizePromoCode(stringField(body, "promoCode")),
		Locale:          NormalizeLocale(stringField(body, "locale")),
		GatewayResponse: datatypes.JSON(resp.Raw),
	}
	if err := s.payments.Create(ctx, &payment); err != nil {
		return err
	}

	if err := s.accounts.SetCurrentOrder(ctx, userID, resp.OrderID); err != nil {
		log.Warn().Err(err).Str("md_order", resp.OrderID).Str("user_id", userID.String()).
			Msg("[Register] could not set current order on user")
	}

	log.Info().
		Str("md_order", payment.MdOrder).
		Str("user_id", userID.String()).
		Str("plan_id", planID).
		Str("room_id", strings.TrimSpace(payment.SelectedRoom)).
		Msg("[Register] pending payment created")
	return nil
}
